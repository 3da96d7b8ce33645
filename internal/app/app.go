package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/audio"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/config"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/delivery"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/hotkey"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/notify"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/pipeline"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/transcription"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/vad"
)

// Modes accepted by Run. An empty mode shows the interactive menu.
const (
	ModeURL        = "url"
	ModeFile       = "file"
	ModeContinuous = "continuous"
	ModeRecord     = "record"
	ModeListen     = "listen"
)

// ErrBusy is returned when a mode is started while another one runs
var ErrBusy = errors.New("app: another mode is active")

// Transcriber is the part of the transcription client the shell uses
type Transcriber interface {
	TranscribeURL(ctx context.Context, audioURL string, opts transcription.Options) (*transcription.Result, error)
	TranscribeFile(ctx context.Context, path string, opts transcription.Options) (*transcription.Result, error)
	TranscribeAudio(ctx context.Context, filename string, data []byte, opts transcription.Options) (*transcription.Result, error)
	Stats() transcription.ClientStats
}

// Deps are the collaborators of the shell. Transcriber is always required;
// Source, Classifier and Sink are needed by the microphone modes.
type Deps struct {
	Transcriber Transcriber
	// Source is the microphone. It is opened once per capture session.
	Source     audio.Source
	Classifier vad.Classifier
	// Sink receives text in record and listen modes.
	Sink delivery.Sink
	// Files stores continuous-mode transcripts. Defaults to the output directory.
	Files     *delivery.FileWriter
	TempStore *audio.TempStore
	Notifier  *notify.Notifier
	// Hotkeys is optional; terminal commands are always accepted.
	Hotkeys          hotkey.Listener
	Recorder         pipeline.Recorder
	DeliveryRecorder delivery.Recorder
}

// App is the command and control shell
type App struct {
	config *config.Config
	deps   Deps
	logger *slog.Logger

	in        io.Reader
	lines     chan string
	inputOnce sync.Once

	outMu sync.Mutex
	out   io.Writer

	mu       sync.Mutex
	mode     string
	pipeline *pipeline.Pipeline
}

// New creates the shell. Commands are read from in and messages written to out.
func New(cfg *config.Config, deps Deps, logger *slog.Logger, in io.Reader, out io.Writer) (*App, error) {
	if deps.Transcriber == nil {
		return nil, errors.New("app: transcriber is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.New(false, logger)
	}
	if deps.Files == nil {
		deps.Files = delivery.NewFileWriter(delivery.FileConfig{
			Directory:      cfg.Output.Directory,
			AllowOverwrite: cfg.Output.AllowOverwrite,
			Disambiguate:   true,
		})
	}

	return &App{
		config: cfg,
		deps:   deps,
		logger: logger,
		in:     in,
		lines:  make(chan string),
		out:    out,
	}, nil
}

// Run executes one mode, or the menu when mode is empty. arg is the URL or
// file path for the url and file modes.
func (a *App) Run(ctx context.Context, mode, arg string) error {
	a.cleanupTemp()

	switch mode {
	case "":
		return a.Menu(ctx)
	case ModeURL:
		if arg == "" {
			return errors.New("url mode requires -url")
		}
		_, err := a.TranscribeURL(ctx, arg)
		return err
	case ModeFile:
		if arg == "" {
			return errors.New("file mode requires -file")
		}
		_, err := a.TranscribeFile(ctx, arg)
		return err
	case ModeContinuous:
		return a.RunContinuous(ctx)
	case ModeRecord:
		return a.RunRecord(ctx)
	case ModeListen:
		return a.RunListen(ctx)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// Menu shows the interactive menu until the user exits, input ends or ctx is done
func (a *App) Menu(ctx context.Context) error {
	for {
		a.printf("\n=== LemonFox Transcription ===\n" +
			"1. Transcribe audio from URL\n" +
			"2. Transcribe local audio file\n" +
			"3. Start voice-activated transcription (continuous)\n" +
			"4. Voice recording mode\n" +
			"5. Voice listening mode\n" +
			"6. Exit\n" +
			"==============================\n")

		choice, err := a.prompt(ctx, "\nEnter your choice (1-6): ")
		if err != nil {
			return nil
		}

		switch choice {
		case "1":
			url, err := a.prompt(ctx, "Enter the URL of the audio file: ")
			if err != nil {
				return nil
			}
			if url == "" {
				a.printf("URL cannot be empty.\n")
				continue
			}
			_, err = a.TranscribeURL(ctx, url)
			a.reportError(err)
		case "2":
			path, err := a.prompt(ctx, "Enter the path to the audio file: ")
			if err != nil {
				return nil
			}
			if path == "" {
				a.printf("File path cannot be empty.\n")
				continue
			}
			_, err = a.TranscribeFile(ctx, path)
			a.reportError(err)
		case "3":
			a.reportError(a.RunContinuous(ctx))
		case "4":
			a.reportError(a.RunRecord(ctx))
		case "5":
			a.reportError(a.RunListen(ctx))
		case "6":
			a.printf("Goodbye.\n")
			return nil
		case "":
		default:
			a.printf("Invalid choice. Please enter a number between 1 and 6.\n")
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// Mode returns the active mode, or "" when idle
func (a *App) Mode() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// PipelineStats returns the stats of the current or last listening pipeline
func (a *App) PipelineStats() (pipeline.Stats, bool) {
	a.mu.Lock()
	pl := a.pipeline
	a.mu.Unlock()

	if pl == nil {
		return pipeline.Stats{}, false
	}
	return pl.Stats(), true
}

// TranscriptionStats returns the client statistics
func (a *App) TranscriptionStats() transcription.ClientStats {
	return a.deps.Transcriber.Stats()
}

// session marks mode as active for the duration of fn
func (a *App) session(ctx context.Context, mode string, fn func(context.Context) error) error {
	a.mu.Lock()
	if a.mode != "" {
		active := a.mode
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBusy, active)
	}
	a.mode = mode
	a.mu.Unlock()

	a.logger.Info("Mode started", slog.String("mode", mode))
	defer func() {
		a.mu.Lock()
		a.mode = ""
		a.mu.Unlock()
		a.logger.Info("Mode finished", slog.String("mode", mode))
	}()

	return fn(ctx)
}

func (a *App) requireMicrophone() error {
	if a.deps.Source == nil || a.deps.Classifier == nil || a.deps.Sink == nil {
		return errors.New("microphone modes are not available")
	}
	return nil
}

// startInput begins reading lines from the input. The reader goroutine
// lives until input ends.
func (a *App) startInput() {
	a.inputOnce.Do(func() {
		go func() {
			defer close(a.lines)
			scanner := bufio.NewScanner(a.in)
			for scanner.Scan() {
				a.lines <- scanner.Text()
			}
		}()
	})
}

// readLine returns the next input line, or io.EOF once input has ended
func (a *App) readLine(ctx context.Context) (string, error) {
	a.startInput()
	select {
	case line, ok := <-a.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *App) prompt(ctx context.Context, msg string) (string, error) {
	a.printf("%s", msg)
	return a.readLine(ctx)
}

// modeInput merges global hotkeys with terminal commands for one mode.
// Terminal lines are taken only when the mode asks for its next event, so
// input meant for the menu stays queued once the mode returns.
type modeInput struct {
	app     *App
	hotkeys chan hotkey.Event
	lines   <-chan string
}

// commands starts the global hotkey listener, if any, until ctx is done
func (a *App) commands(ctx context.Context) *modeInput {
	a.startInput()
	c := &modeInput{app: a, lines: a.lines}

	if a.deps.Hotkeys != nil {
		c.hotkeys = make(chan hotkey.Event, 8)
		go func() {
			if err := a.deps.Hotkeys.Listen(ctx, c.hotkeys); err != nil {
				a.logger.Warn("Global hotkeys unavailable, use terminal commands",
					slog.String("error", err.Error()))
			}
		}()
	}
	return c
}

// parse turns a terminal line into an event. It returns the zero Event
// for lines that are not commands and once input has ended.
func (c *modeInput) parse(line string, ok bool) hotkey.Event {
	if !ok {
		c.lines = nil
		return hotkey.Event{}
	}
	action, known := hotkey.ParseCommand(line)
	if !known {
		if strings.TrimSpace(line) != "" {
			c.app.printf("Commands: r = toggle recording, l = toggle listening, c = cancel, q = back\n")
		}
		return hotkey.Event{}
	}
	return hotkey.Event{Action: action, At: time.Now()}
}

func (a *App) cleanupTemp() {
	if a.deps.TempStore == nil {
		return
	}
	removed, err := a.deps.TempStore.Cleanup(time.Now())
	if err != nil {
		a.logger.Warn("Temp cleanup failed", slog.String("dir", a.deps.TempStore.Dir()), slog.String("error", err.Error()))
		return
	}
	if removed > 0 {
		a.logger.Info("Removed stale temporary audio", slog.Int("files", removed))
	}
}

func (a *App) reportError(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	a.logger.Error("Operation failed", slog.String("error", err.Error()))
	a.printf("Error: %v\n", err)
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}
