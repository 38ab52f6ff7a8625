package syncer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileWatermark persists the last-synced timestamp as a decimal string of
// epoch seconds in a small text file.
type FileWatermark struct {
	Path string
}

// DefaultWatermarkPath returns <UserConfigDir>/readersync/last_synced.
func DefaultWatermarkPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(dir, "readersync", "last_synced"), nil
}

// Load returns the stored watermark, or 0 if the file does not exist yet.
func (w FileWatermark) Load() (int64, error) {
	data, err := os.ReadFile(w.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read watermark: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	ts, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse watermark %s: %w", w.Path, err)
	}
	return ts, nil
}

// Save replaces the watermark file atomically.
func (w FileWatermark) Save(ts int64) error {
	dir := filepath.Dir(w.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create watermark dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".last_synced-*")
	if err != nil {
		return fmt.Errorf("failed to create watermark temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(strconv.FormatInt(ts, 10)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write watermark: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write watermark: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.Path); err != nil {
		return fmt.Errorf("failed to commit watermark: %w", err)
	}
	return nil
}
