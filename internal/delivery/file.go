package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// maxSuffix bounds the _1.._N names tried on collision
const maxSuffix = 99

// FileConfig configures a FileWriter
type FileConfig struct {
	Directory string
	// Prefix starts every generated name, e.g. "speech" or an input file's base name.
	Prefix         string
	AllowOverwrite bool
	// Disambiguate appends _1, _2, ... when a name is taken instead of failing.
	Disambiguate bool
}

// FileWriter persists text as .txt files in a directory
type FileWriter struct {
	config FileConfig
	now    func() time.Time
}

// NewFileWriter creates a file writer
func NewFileWriter(cfg FileConfig) *FileWriter {
	if cfg.Directory == "" {
		cfg.Directory = "transcriptions"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "speech"
	}
	return &FileWriter{config: cfg, now: time.Now}
}

// Name returns the sink name
func (w *FileWriter) Name() string { return ModeFile }

// Dir returns the output directory
func (w *FileWriter) Dir() string { return w.config.Directory }

// DeliverText writes text to a new timestamped file
func (w *FileWriter) DeliverText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := w.Write(text)
	return err
}

// FocusedWindow is not meaningful for files
func (w *FileWriter) FocusedWindow() (Window, error) {
	return Window{}, ErrUnsupported
}

// Write stores text under <prefix>_<timestamp>.txt and returns the path
func (w *FileWriter) Write(text string) (string, error) {
	return w.WriteNamed(fmt.Sprintf("%s_%s", w.config.Prefix, w.now().Format("20060102_150405")), text)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// WriteNamed stores text under base + ".txt". An existing file is never
// replaced unless AllowOverwrite is set.
func (w *FileWriter) WriteNamed(base, text string) (string, error) {
	base = unsafeName.ReplaceAllString(base, "_")
	if base == "" || base == "." || base == ".." {
		return "", fmt.Errorf("invalid file name %q", base)
	}
	if err := os.MkdirAll(w.config.Directory, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(w.config.Directory, base+".txt")
	if w.config.AllowOverwrite {
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		return path, nil
	}

	err := createExclusive(path, text)
	if err == nil {
		return path, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return "", err
	}
	if !w.config.Disambiguate {
		return "", fmt.Errorf("%w: %s", ErrFileExists, path)
	}

	for i := 1; i <= maxSuffix; i++ {
		candidate := filepath.Join(w.config.Directory, fmt.Sprintf("%s_%d.txt", base, i))
		err := createExclusive(candidate, text)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: no free name for %s", ErrFileExists, path)
}

func createExclusive(path, text string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
