package transcription

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SavedResult is the document written by SaveResult
type SavedResult struct {
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
	Text      string          `json:"text"`
	Response  json.RawMessage `json:"response,omitempty"`
}

// SaveResult writes result to dir as transcription_YYYYmmdd_HHMMSS.json.
// Existing files are never replaced; a numeric suffix is added instead.
func SaveResult(dir, source string, result *Result, now time.Time) (string, error) {
	if result == nil {
		return "", errors.New("result is nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	doc := SavedResult{
		Source:    source,
		CreatedAt: now,
		Text:      result.Text,
		Response:  result.Raw,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}

	base := "transcription_" + now.Format("20060102_150405")
	for i := 0; i < 100; i++ {
		name := base + ".json"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.json", base, i)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create result file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write result file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close result file: %w", err)
		}
		return path, nil
	}

	return "", fmt.Errorf("no free file name for %s in %s", base, dir)
}
