package transcription

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Result is a transcription returned by the API
type Result struct {
	Text     string          `json:"text"`
	Language string          `json:"language,omitempty"`
	Duration float64         `json:"duration,omitempty"`
	Segments []ResultSegment `json:"segments,omitempty"`
	// Raw is the unmodified response body.
	Raw json.RawMessage `json:"-"`
}

// ResultSegment is a timed piece of a verbose transcription
type ResultSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// parseResult decodes a response body. Plain text formats are used as is;
// JSON bodies are decoded and the text is taken from textPath.
func parseResult(body []byte, format, textPath string) (*Result, error) {
	if format == "text" {
		return &Result{Text: strings.TrimSpace(string(body)), Raw: json.RawMessage(strconv.Quote(string(body)))}, nil
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	res.Raw = append(json.RawMessage(nil), body...)

	if textPath != "" && textPath != "text" {
		text, err := extractText(body, textPath)
		if err != nil {
			return nil, err
		}
		res.Text = text
	}
	res.Text = strings.TrimSpace(res.Text)

	return &res, nil
}

// bracketIndex matches "[N]" array indexes in a text path
var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// extractText follows a dot path such as "results[0].alternatives[0].transcript"
// or "results.0.alternatives.0.transcript" and returns the value found there.
func extractText(body []byte, path string) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("failed to parse response JSON: invalid document")
	}

	v := gjson.GetBytes(body, bracketIndex.ReplaceAllString(path, ".$1"))
	if !v.Exists() {
		return "", fmt.Errorf("text path %q: not found", path)
	}
	switch v.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return v.String(), nil
	default:
		return "", fmt.Errorf("text path %q: value is not a string", path)
	}
}
