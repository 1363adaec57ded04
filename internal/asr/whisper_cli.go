package asr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

type WhisperCLIConfig struct {
	CLI       string
	ModelPath string
	Language  string
	Threads   int
}

// WhisperCLI runs the whisper.cpp command line tool once per file.
type WhisperCLI struct {
	cliPath   string
	modelPath string
	language  string
	threads   int
}

func NewWhisperCLI(cfg WhisperCLIConfig) (*WhisperCLI, error) {
	cli := strings.TrimSpace(cfg.CLI)
	if cli == "" {
		cli = "whisper-cli"
	}
	cliPath, err := exec.LookPath(cli)
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp CLI not found (%s)", cli)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("whisper.cpp model not found: %s", cfg.ModelPath)
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = "en"
	}
	threads := cfg.Threads
	if threads < 0 {
		return nil, fmt.Errorf("whisper threads must be >= 0")
	}
	if threads == 0 {
		threads = runtime.NumCPU()
		if threads > 8 {
			threads = 8
		}
		if threads < 2 {
			threads = 2
		}
	}
	return &WhisperCLI{
		cliPath:   cliPath,
		modelPath: cfg.ModelPath,
		language:  language,
		threads:   threads,
	}, nil
}

func (w *WhisperCLI) Transcribe(ctx context.Context, wavPath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "speakwell-whisper-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)
	outPrefix := filepath.Join(tmpDir, "out")

	args := []string{
		"-m", w.modelPath,
		"-f", wavPath,
		"-l", w.language,
		"-t", strconv.Itoa(w.threads),
		"-otxt",
		"-of", outPrefix,
		"-nt",
	}
	cmd := exec.CommandContext(ctx, w.cliPath, args...)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		// whisper.cpp is chatty on stderr.
		if len(detail) > 8<<10 {
			detail = strings.TrimSpace(detail[len(detail)-(8<<10):])
		}
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("whisper.cpp failed: %s", detail)
	}

	b, err := os.ReadFile(outPrefix + ".txt")
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(b))
	if text == "" || isBlankMarker(text) {
		return "", ErrNoSpeech
	}
	return text, nil
}

// whisper.cpp emits bracketed markers for silent input.
func isBlankMarker(text string) bool {
	switch strings.ToUpper(text) {
	case "[BLANK_AUDIO]", "[SILENCE]", "(SILENCE)":
		return true
	default:
		return false
	}
}
