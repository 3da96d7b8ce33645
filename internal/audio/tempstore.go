package audio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TempStore keeps segment WAV files in a scratch directory and removes
// them once they are older than maxAge.
type TempStore struct {
	dir    string
	maxAge time.Duration
	logger *slog.Logger
}

// NewTempStore creates the directory if needed. An empty dir selects a
// folder under the system temp directory.
func NewTempStore(dir string, maxAge time.Duration, logger *slog.Logger) (*TempStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "lemonfox-voice")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory %s: %w", dir, err)
	}
	return &TempStore{dir: dir, maxAge: maxAge, logger: logger}, nil
}

// Dir returns the scratch directory
func (t *TempStore) Dir() string {
	return t.dir
}

// Save encodes the segment and writes it, returning the file path
func (t *TempStore) Save(seg *Segment) (string, error) {
	data, err := seg.WAV()
	if err != nil {
		return "", fmt.Errorf("failed to encode segment %s: %w", seg.ID, err)
	}
	path := filepath.Join(t.dir, seg.FileName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write segment %s: %w", path, err)
	}
	return path, nil
}

// Cleanup removes speech_*.wav files older than maxAge relative to now
// and returns how many were removed.
func (t *TempStore) Cleanup(now time.Time) (int, error) {
	if t.maxAge <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read temp directory %s: %w", t.dir, err)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "speech_") || !strings.HasSuffix(name, ".wav") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < t.maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(t.dir, name)); err != nil {
			t.logger.Warn("Failed to remove temp file",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		t.logger.Debug("Removed old temp files", slog.Int("count", removed), slog.String("dir", t.dir))
	}
	return removed, nil
}
