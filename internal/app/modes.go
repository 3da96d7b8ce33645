package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/audio"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/delivery"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/hotkey"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/pipeline"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/transcription"
)

// TranscribeURL transcribes a remote audio file, prints the text and saves
// the response. It returns the path of the saved response.
func (a *App) TranscribeURL(ctx context.Context, audioURL string) (string, error) {
	res, err := a.deps.Transcriber.TranscribeURL(ctx, audioURL, transcription.Options{})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe %s: %w", audioURL, err)
	}
	return a.saveResult(audioURL, res)
}

// TranscribeFile transcribes a local audio file, prints the text and saves
// the response. It returns the path of the saved response.
func (a *App) TranscribeFile(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}
	a.logWAVInfo(path)

	res, err := a.deps.Transcriber.TranscribeFile(ctx, path, transcription.Options{})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe %s: %w", path, err)
	}
	return a.saveResult(path, res)
}

// logWAVInfo logs the format of a local WAV file before it is uploaded
func (a *App) logWAVInfo(path string) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	info, err := audio.ReadWAVInfo(f)
	if err != nil {
		a.logger.Warn("Unreadable WAV header", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	a.logger.Info("Uploading audio file",
		slog.String("path", path),
		slog.Int("sample_rate", info.SampleRate),
		slog.Int("channels", info.Channels),
		slog.Duration("duration", info.Duration))
}

func (a *App) saveResult(source string, res *transcription.Result) (string, error) {
	if strings.TrimSpace(res.Text) == "" {
		a.printf("No text found in transcription response.\n")
		return "", nil
	}

	a.printf("\nTranscription result:\n%s\n\n", res.Text)

	path, err := transcription.SaveResult(a.config.Output.Directory, source, res, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to save transcription: %w", err)
	}
	a.printf("Transcription saved to: %s\n", path)
	a.logger.Info("Transcription saved", slog.String("source", source), slog.String("path", path))
	return path, nil
}

// RunContinuous listens with voice activity detection and writes every
// segment transcript to its own file until quit or cancel.
func (a *App) RunContinuous(ctx context.Context) error {
	if err := a.requireMicrophone(); err != nil {
		return err
	}
	return a.session(ctx, ModeContinuous, func(ctx context.Context) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		pl, err := a.newPipeline(delivery.Instrument(a.deps.Files, a.deps.DeliveryRecorder))
		if err != nil {
			return err
		}

		cmds := a.commands(ctx)
		done := make(chan error, 1)
		go func() { done <- pl.Run(ctx) }()

		a.printf("Listening for speech. Transcripts are saved to %s. Enter q to stop.\n", a.deps.Files.Dir())
		a.deps.Notifier.Notify("Voice activation started")
		defer a.deps.Notifier.Notify("Voice activation stopped")

		for {
			var ev hotkey.Event
			select {
			case err := <-done:
				return err
			case ev = <-cmds.hotkeys:
			case line, ok := <-cmds.lines:
				ev = cmds.parse(line, ok)
			}
			if ev.Action == hotkey.ActionQuit || ev.Action == hotkey.ActionCancel {
				pl.Stop()
				return <-done
			}
		}
	})
}

// RunListen toggles a voice activated pipeline on the toggle-listening
// action. Each detected segment is transcribed and delivered to the sink.
func (a *App) RunListen(ctx context.Context) error {
	if err := a.requireMicrophone(); err != nil {
		return err
	}
	return a.session(ctx, ModeListen, func(ctx context.Context) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var (
			pl   *pipeline.Pipeline
			done chan error
		)
		stop := func() {
			if pl == nil {
				return
			}
			pl.Stop()
			if err := <-done; err != nil {
				a.reportError(err)
			}
			pl, done = nil, nil
			a.printf("Listening stopped.\n")
			a.deps.Notifier.Notify("Listening stopped")
		}
		defer stop()

		cmds := a.commands(ctx)
		a.printf("Listening mode. Press %s or enter l to start and stop listening, q to go back.\n",
			a.config.Hotkeys.ToggleListening)

		for {
			var ev hotkey.Event
			select {
			case <-ctx.Done():
				return nil
			case err := <-done:
				// the source ended the session
				pl, done = nil, nil
				if err != nil {
					a.reportError(err)
					a.deps.Notifier.Notify("Listening stopped: microphone unavailable")
					continue
				}
				a.printf("Listening stopped.\n")
			case ev = <-cmds.hotkeys:
			case line, ok := <-cmds.lines:
				ev = cmds.parse(line, ok)
			}

			switch ev.Action {
			case hotkey.ActionToggleListening:
				if pl != nil {
					stop()
					continue
				}
				next, err := a.newPipeline(a.deps.Sink)
				if err != nil {
					return err
				}
				pl, done = next, make(chan error, 1)
				go func(p *pipeline.Pipeline, done chan<- error) { done <- p.Run(ctx) }(pl, done)
				a.printf("Listening...\n")
				a.deps.Notifier.Notify("Listening started")
			case hotkey.ActionCancel:
				stop()
			case hotkey.ActionQuit:
				return nil
			}
		}
	})
}

// recording is an open push-to-record capture
type recording struct {
	rec    *audio.Recording
	cancel context.CancelFunc
	done   chan struct{}
	// err is the capture error, valid once done is closed
	err error
	// ended is set when the source stopped before the user did
	ended bool
}

// wait stops the capture and returns its error
func (r *recording) wait() error {
	r.cancel()
	<-r.done
	return r.err
}

// RunRecord captures everything between two toggle-recording actions,
// then transcribes and delivers it as one segment.
func (a *App) RunRecord(ctx context.Context) error {
	if err := a.requireMicrophone(); err != nil {
		return err
	}
	return a.session(ctx, ModeRecord, func(ctx context.Context) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var current *recording
		defer func() {
			if current != nil {
				current.wait()
			}
		}()

		cmds := a.commands(ctx)
		a.printf("Recording mode. Press %s or enter r to start and stop recording, c to cancel, q to go back.\n",
			a.config.Hotkeys.ToggleRecording)

		for {
			var ev hotkey.Event
			var captureDone <-chan struct{}
			if current != nil && !current.ended {
				captureDone = current.done
			}

			select {
			case <-ctx.Done():
				return nil
			case <-captureDone:
				if current.err == nil {
					current.ended = true
					continue
				}
				a.reportError(current.err)
				current = nil
				a.deps.Notifier.Notify("Recording stopped: microphone unavailable")
			case ev = <-cmds.hotkeys:
			case line, ok := <-cmds.lines:
				ev = cmds.parse(line, ok)
			}

			switch ev.Action {
			case hotkey.ActionToggleRecording:
				if current == nil {
					current = a.startRecording(ctx)
					a.printf("Recording...\n")
					a.deps.Notifier.Notify("Recording started")
					continue
				}
				r := current
				current = nil
				if err := r.wait(); err != nil {
					a.reportError(err)
					continue
				}
				a.finishRecording(ctx, r.rec)
			case hotkey.ActionCancel:
				if current != nil {
					current.wait()
					current = nil
					a.printf("Recording cancelled.\n")
					a.deps.Notifier.Notify("Recording cancelled")
				}
			case hotkey.ActionQuit:
				return nil
			}
		}
	})
}

func (a *App) finishRecording(ctx context.Context, rec *audio.Recording) {
	seg, err := rec.Finish()
	if errors.Is(err, audio.ErrEmptyRecording) {
		a.printf("Nothing was recorded.\n")
		return
	}
	if err != nil {
		a.reportError(err)
		return
	}

	a.printf("Recording finished (%s), transcribing...\n", seg.Duration.Round(10*time.Millisecond))
	a.deps.Notifier.Notify("Recording finished")
	if _, err := a.transcribeSegment(ctx, seg); err != nil {
		a.reportError(err)
	}
}

// startRecording opens the microphone and appends frames until the
// recording is stopped
func (a *App) startRecording(ctx context.Context) *recording {
	ctx, cancel := context.WithCancel(ctx)
	r := &recording{
		rec:    audio.NewRecording(a.format()),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	frames := make(chan audio.Frame, a.config.Audio.DeviceBufferFrames)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(frames)
		if err := a.deps.Source.Stream(gctx, frames); err != nil {
			return fmt.Errorf("audio source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		for frame := range frames {
			if err := r.rec.Append(frame); err != nil {
				a.logger.Warn("Frame dropped from recording", slog.Uint64("seq", frame.Seq), slog.String("error", err.Error()))
			}
		}
		return nil
	})
	go func() {
		r.err = g.Wait()
		close(r.done)
	}()

	return r
}

// transcribeSegment uploads a finished recording and delivers its text.
// A failed upload keeps the audio in the temp store.
func (a *App) transcribeSegment(ctx context.Context, seg *audio.Segment) (string, error) {
	wav, err := seg.WAV()
	if err != nil {
		return "", fmt.Errorf("failed to encode recording: %w", err)
	}

	res, err := a.deps.Transcriber.TranscribeAudio(ctx, seg.FileName(), wav, transcription.Options{})
	if err != nil {
		retained := a.retain(seg)
		a.logger.Error("Recording transcription failed",
			slog.String("segment_id", seg.ID),
			slog.String("kind", transcription.ErrorKind(err)),
			slog.String("retained", retained),
			slog.String("error", err.Error()),
		)
		a.deps.Notifier.Notify("Transcription failed")
		if retained != "" {
			return "", fmt.Errorf("%w (audio kept at %s)", err, retained)
		}
		return "", err
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		a.printf("Empty transcription.\n")
		a.deps.Notifier.Notify("Empty result")
		return "", nil
	}
	a.printf("> %s\n", text)

	if w, err := a.deps.Sink.FocusedWindow(); err == nil {
		a.logger.Debug("Delivering text", slog.String("window", w.Title), slog.String("process", w.Process))
	}
	if err := a.deps.Sink.DeliverText(ctx, text); err != nil {
		a.deps.Notifier.Notify("Text delivery failed")
		return text, fmt.Errorf("failed to deliver text: %w", err)
	}
	a.deps.Notifier.Notify("Text delivered")
	return text, nil
}

func (a *App) retain(seg *audio.Segment) string {
	if !a.config.Output.KeepFailedSegments || a.deps.TempStore == nil {
		return ""
	}
	path, err := a.deps.TempStore.Save(seg)
	if err != nil {
		a.logger.Warn("Failed to retain recording", slog.String("segment_id", seg.ID), slog.String("error", err.Error()))
		return ""
	}
	return path
}

func (a *App) format() audio.Format {
	return audio.Format{
		SampleRate:    a.config.Audio.SampleRate,
		FrameDuration: a.config.Audio.GetFrameDuration(),
	}
}

// newPipeline builds a listening pipeline delivering to sink and makes it
// the one reported by PipelineStats
func (a *App) newPipeline(sink delivery.Sink) (*pipeline.Pipeline, error) {
	cfg := a.config
	pl, err := pipeline.New(pipeline.Config{
		Segmenter: audio.SegmenterConfig{
			Format:           a.format(),
			SilenceThreshold: cfg.VAD.GetSilenceThreshold(),
			MaxDuration:      cfg.VAD.GetMaxSegmentDuration(),
			MinSpeechFrames:  cfg.VAD.MinSpeechFrames,
		},
		Workers:     cfg.Transcription.MaxConcurrent,
		Ordered:     cfg.Transcription.Ordered,
		QueueSize:   cfg.Transcription.QueueSize,
		FrameBuffer: cfg.Audio.DeviceBufferFrames,
		KeepFailed:  cfg.Output.KeepFailedSegments,
	}, pipeline.Deps{
		Source:      a.deps.Source,
		Classifier:  a.deps.Classifier,
		Transcriber: a.deps.Transcriber,
		Sink:        sink,
		TempStore:   a.deps.TempStore,
		Recorder:    a.deps.Recorder,
		OnResult:    a.printResult,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	a.mu.Lock()
	a.pipeline = pl
	a.mu.Unlock()
	return pl, nil
}

func (a *App) printResult(res pipeline.Result) {
	switch {
	case res.Err != nil && res.RetainedPath != "":
		a.printf("Segment failed (%s), audio kept at %s\n", transcription.ErrorKind(res.Err), res.RetainedPath)
	case res.Err != nil:
		a.printf("Segment failed (%s)\n", transcription.ErrorKind(res.Err))
	case res.Text != "":
		a.printf("> %s\n", res.Text)
	}
}
