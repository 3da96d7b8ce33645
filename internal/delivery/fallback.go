package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Fallback delivers to a primary sink and persists the text to a file
// when the primary fails.
type Fallback struct {
	primary  Sink
	file     *FileWriter
	logger   *slog.Logger
	recorder Recorder
}

// NewFallback wraps primary
func NewFallback(primary Sink, file *FileWriter, logger *slog.Logger, rec Recorder) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Fallback{primary: primary, file: file, logger: logger, recorder: rec}
}

// Name returns the primary sink's name
func (f *Fallback) Name() string { return sinkName(f.primary) }

// DeliverText tries the primary sink, then the file. It only fails when
// both destinations fail.
func (f *Fallback) DeliverText(ctx context.Context, text string) error {
	name := sinkName(f.primary)

	err := f.primary.DeliverText(ctx, text)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	f.logger.Warn("Text delivery failed, saving to file",
		slog.String("sink", name),
		slog.String("error", err.Error()))

	path, ferr := f.file.Write(text)
	if ferr != nil {
		f.recorder.RecordDelivery(ModeFile, "error")
		return fmt.Errorf("deliver via %s: %w", name, errors.Join(err, ferr))
	}
	f.recorder.RecordDelivery(ModeFile, "fallback")

	f.logger.Info("Text saved to file", slog.String("path", path))
	return nil
}

// FocusedWindow delegates to the primary sink
func (f *Fallback) FocusedWindow() (Window, error) {
	return f.primary.FocusedWindow()
}
