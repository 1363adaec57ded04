package tts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
)

// Failover prefers primary and switches to fallback when primary fails.
// Once fallback is active it stays active until fallback itself fails,
// then primary is tried again.
type Failover struct {
	primary        Synthesizer
	fallback       Synthesizer
	fallbackActive atomic.Bool
}

func NewFailover(primary, fallback Synthesizer) *Failover {
	return &Failover{primary: primary, fallback: fallback}
}

// Audio is buffered so a failed primary never leaves partial bytes in w.
func (f *Failover) Synthesize(ctx context.Context, text string, w io.Writer) error {
	first, second := f.primary, f.fallback
	if f.fallbackActive.Load() {
		first, second = f.fallback, f.primary
	}

	var buf bytes.Buffer
	firstErr := first.Synthesize(ctx, text, &buf)
	if firstErr == nil {
		_, err := buf.WriteTo(w)
		return err
	}
	if ctx.Err() != nil {
		return firstErr
	}

	buf.Reset()
	if err := second.Synthesize(ctx, text, &buf); err != nil {
		return errors.Join(firstErr, err)
	}
	f.fallbackActive.Store(second == f.fallback)
	_, err := buf.WriteTo(w)
	return err
}
