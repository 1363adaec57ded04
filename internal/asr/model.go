package asr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// ModelPath maps a model name ("base", "small.en", ...) or an explicit
// ggml file path to a location inside cacheDir.
func ModelPath(name, cacheDir string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "base"
	}
	if strings.HasSuffix(name, ".bin") {
		if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
			return name, nil
		}
	} else {
		name = "ggml-" + name + ".bin"
	}
	if strings.TrimSpace(cacheDir) == "" {
		cacheDir = "models"
	}
	if !filepath.IsAbs(cacheDir) {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		cacheDir = filepath.Join(wd, cacheDir)
	}
	return filepath.Join(cacheDir, name), nil
}

// EnsureModel downloads the ggml model into place when it is missing.
func EnsureModel(ctx context.Context, modelPath string) error {
	if _, err := os.Stat(modelPath); err == nil {
		return nil
	}
	filename := filepath.Base(modelPath)
	if !strings.HasPrefix(filename, "ggml-") || !strings.HasSuffix(filename, ".bin") {
		return fmt.Errorf("whisper model %q missing and not downloadable: expected ggml-*.bin", modelPath)
	}
	if err := os.MkdirAll(filepath.Dir(modelPath), 0o755); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelBaseURL+filename, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download whisper model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("download whisper model: HTTP %d %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	tmpPath := modelPath + ".download"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(tmpPath)
		return copyErr
	case closeErr != nil:
		_ = os.Remove(tmpPath)
		return closeErr
	case n == 0:
		_ = os.Remove(tmpPath)
		return fmt.Errorf("downloaded empty whisper model")
	}
	if err := os.Rename(tmpPath, modelPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
