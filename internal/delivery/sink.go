package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrUnsupported is returned by operations the current platform cannot perform
	ErrUnsupported = errors.New("delivery: not supported on this platform")
	// ErrFileExists is returned when a file name is taken and disambiguation is off
	ErrFileExists = errors.New("delivery: file already exists")
)

// Window identifies the window that has keyboard focus
type Window struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Process string `json:"process,omitempty"`
}

// Sink is a destination for recognized text
type Sink interface {
	DeliverText(ctx context.Context, text string) error
	FocusedWindow() (Window, error)
}

// Recorder receives delivery outcomes
type Recorder interface {
	RecordDelivery(sink, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordDelivery(string, string) {}

// Delivery modes
const (
	ModeInject    = "inject"
	ModeClipboard = "clipboard"
	ModeFile      = "file"
	ModeNone      = "none"
)

// Options selects and configures a sink
type Options struct {
	Mode             string
	Directory        string
	FilePrefix       string
	AllowOverwrite   bool
	RestoreClipboard bool
	PasteDelay       time.Duration
	FallbackToFile   bool
}

// New builds the sink for opts.Mode. Non-file modes are wrapped in a
// Fallback when opts.FallbackToFile is set.
func New(opts Options, logger *slog.Logger, rec Recorder) (Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	file := NewFileWriter(FileConfig{
		Directory:      opts.Directory,
		Prefix:         opts.FilePrefix,
		AllowOverwrite: opts.AllowOverwrite,
		Disambiguate:   true,
	})

	var primary Sink
	switch opts.Mode {
	case ModeFile:
		return Instrument(file, rec), nil
	case ModeNone:
		return Discard{}, nil
	case ModeClipboard:
		primary = NewClipboard()
	case ModeInject, "":
		primary = NewInjector(InjectorConfig{
			RestoreClipboard: opts.RestoreClipboard,
			PasteDelay:       opts.PasteDelay,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown delivery mode %q", opts.Mode)
	}

	primary = Instrument(primary, rec)
	if !opts.FallbackToFile {
		return primary, nil
	}
	return NewFallback(primary, file, logger, rec), nil
}

// Discard drops all text
type Discard struct{}

func (Discard) DeliverText(context.Context, string) error { return nil }

func (Discard) FocusedWindow() (Window, error) { return Window{}, ErrUnsupported }

func (Discard) Name() string { return ModeNone }

func sinkName(s Sink) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}

// Instrument reports the outcome of every delivery to rec
func Instrument(s Sink, rec Recorder) Sink {
	if rec == nil {
		return s
	}
	return &instrumented{Sink: s, rec: rec}
}

type instrumented struct {
	Sink
	rec Recorder
}

func (i *instrumented) Name() string { return sinkName(i.Sink) }

func (i *instrumented) DeliverText(ctx context.Context, text string) error {
	err := i.Sink.DeliverText(ctx, text)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	i.rec.RecordDelivery(i.Name(), outcome)
	return err
}
