//go:build !whisper

package asr

import (
	"context"
	"errors"
)

const NativeAvailable = false

var errNativeUnavailable = errors.New("native whisper support not compiled in; rebuild with -tags whisper")

type Native struct{}

func NewNative(_, _ string) (*Native, error) {
	return nil, errNativeUnavailable
}

func (*Native) Transcribe(context.Context, string) (string, error) {
	return "", errNativeUnavailable
}

func (*Native) Close() error { return nil }
