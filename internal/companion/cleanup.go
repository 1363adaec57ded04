package companion

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrFilenameRequired = errors.New("Filename required")
	ErrInvalidFilename  = errors.New("Invalid filename")
)

// ValidateFilename accepts a bare file name ending in .mp3.
func ValidateFilename(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrFilenameRequired
	}
	if filepath.Base(name) != name || strings.ContainsAny(name, `/\`) || !strings.HasSuffix(name, replyExt) {
		return "", ErrInvalidFilename
	}
	return name, nil
}

// CleanupAudio deletes a reply file once the browser has played it.
// A file that is already gone is not an error.
func (s *Service) CleanupAudio(raw string) error {
	name, err := ValidateFilename(raw)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.cfg.AudioDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
