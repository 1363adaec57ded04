// Package asr turns uploaded speech into text.
package asr

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrNoSpeech is returned by a Recognizer that heard nothing it could
// transcribe. The pipeline maps it to an empty transcript.
var ErrNoSpeech = errors.New("no speech recognized")

// Recognizer transcribes a mono 16 kHz WAV file.
type Recognizer interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// Lazy defers building the recognizer (typically a model load) until the
// first call and reuses it afterwards. A failed build is retried on the
// next call.
type Lazy struct {
	mu    sync.Mutex
	build func() (Recognizer, error)
	rec   Recognizer
}

func NewLazy(build func() (Recognizer, error)) *Lazy {
	return &Lazy{build: build}
}

func (l *Lazy) get() (Recognizer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rec != nil {
		return l.rec, nil
	}
	rec, err := l.build()
	if err != nil {
		return nil, err
	}
	l.rec = rec
	return rec, nil
}

func (l *Lazy) Transcribe(ctx context.Context, wavPath string) (string, error) {
	rec, err := l.get()
	if err != nil {
		return "", err
	}
	return rec.Transcribe(ctx, wavPath)
}

// Loaded reports whether the recognizer has been built.
func (l *Lazy) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rec != nil
}

func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.rec.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
