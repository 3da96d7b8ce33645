package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/audio"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/delivery"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/transcription"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/vad"
)

// ErrAlreadyRunning is returned by Run while a session is active
var ErrAlreadyRunning = errors.New("pipeline: already running")

// Transcriber uploads one audio file
type Transcriber interface {
	TranscribeAudio(ctx context.Context, filename string, data []byte, opts transcription.Options) (*transcription.Result, error)
}

// Recorder receives pipeline events, typically Prometheus metrics
type Recorder interface {
	RecordFrame(speech bool)
	RecordSegment(duration time.Duration, forced bool)
	RecordQueueDrop()
	SetQueueDepth(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordFrame(bool)                  {}
func (nopRecorder) RecordSegment(time.Duration, bool) {}
func (nopRecorder) RecordQueueDrop()                  {}
func (nopRecorder) SetQueueDepth(int)                 {}

// Result is the outcome of one segment
type Result struct {
	Segment *audio.Segment
	Text    string
	// Err is set when transcription failed.
	Err error
	// DeliveryErr is set when the text could not be delivered.
	DeliveryErr error
	// RetainedPath is where the WAV was kept after a failed upload.
	RetainedPath string
}

// Config contains pipeline configuration
type Config struct {
	Segmenter audio.SegmenterConfig
	// Workers is the number of concurrent uploads; Ordered forces one.
	Workers   int
	Ordered   bool
	QueueSize int
	// FrameBuffer is the channel capacity between the source and the capture loop.
	FrameBuffer int
	// KeepFailed stores the WAV of segments whose upload failed.
	KeepFailed bool
	Options    transcription.Options
}

// Deps are the collaborators of a pipeline. Source, Classifier,
// Transcriber and Sink are required.
type Deps struct {
	Source      audio.Source
	Classifier  vad.Classifier
	Transcriber Transcriber
	Sink        delivery.Sink
	TempStore   *audio.TempStore
	Recorder    Recorder
	// OnResult is called from a worker goroutine after each segment.
	OnResult func(Result)
}

// Pipeline captures, segments, transcribes and delivers speech
type Pipeline struct {
	config    Config
	deps      Deps
	segmenter *audio.Segmenter
	logger    *slog.Logger
	vadStats  vad.Stats

	running  atomic.Bool
	stopping atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	queue  *Queue
	// stopPending is set by a Stop that arrived before Run
	stopPending bool

	// Statistics
	framesProcessed   atomic.Uint64
	invalidFrames     atomic.Uint64
	segmentsQueued    atomic.Uint64
	segmentsDropped   atomic.Uint64
	segmentsFailed    atomic.Uint64
	segmentsRetained  atomic.Uint64
	transcribed       atomic.Uint64
	emptyResults      atomic.Uint64
	delivered         atomic.Uint64
	deliveryFailed    atomic.Uint64
	lastTranscription atomic.Int64
}

// Stats represents pipeline statistics
type Stats struct {
	Running           bool                 `json:"running"`
	Segmenter         audio.SegmenterStats `json:"segmenter"`
	VAD               vad.StatsSnapshot    `json:"vad"`
	FramesProcessed   uint64               `json:"frames_processed"`
	InvalidFrames     uint64               `json:"invalid_frames"`
	QueueLength       int                  `json:"queue_length"`
	SegmentsQueued    uint64               `json:"segments_queued"`
	SegmentsDropped   uint64               `json:"segments_dropped"`
	SegmentsFailed    uint64               `json:"segments_failed"`
	SegmentsRetained  uint64               `json:"segments_retained"`
	Transcribed       uint64               `json:"transcribed"`
	EmptyResults      uint64               `json:"empty_results"`
	Delivered         uint64               `json:"delivered"`
	DeliveryFailed    uint64               `json:"delivery_failed"`
	LastTranscription time.Time            `json:"last_transcription,omitempty"`
}

// New creates a pipeline
func New(config Config, deps Deps, logger *slog.Logger) (*Pipeline, error) {
	if deps.Source == nil || deps.Classifier == nil || deps.Transcriber == nil || deps.Sink == nil {
		return nil, errors.New("pipeline: source, classifier, transcriber and sink are required")
	}

	segmenter, err := audio.NewSegmenter(config.Segmenter)
	if err != nil {
		return nil, fmt.Errorf("failed to create segmenter: %w", err)
	}

	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Ordered {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 8
	}
	if config.FrameBuffer <= 0 {
		config.FrameBuffer = 64
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		config:    config,
		deps:      deps,
		segmenter: segmenter,
		logger:    logger,
	}, nil
}

// Run listens until ctx is done, Stop is called or the source fails.
// Segments already queued are still transcribed before Run returns unless
// ctx is cancelled. Only a source failure is returned as an error.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)
	p.stopping.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := NewQueue(p.config.QueueSize)
	p.mu.Lock()
	if p.stopPending {
		p.stopPending = false
		p.mu.Unlock()
		p.logger.Info("Listening stopped before it started")
		return nil
	}
	p.cancel = cancel
	p.queue = queue
	p.mu.Unlock()

	p.logger.Info("Listening started",
		slog.Int("workers", p.config.Workers),
		slog.Int("queue_size", p.config.QueueSize),
		slog.Int("silence_frames", p.segmenter.SilenceFramesToClose()),
	)

	var workers errgroup.Group
	for i := 0; i < p.config.Workers; i++ {
		workers.Go(func() error {
			p.worker(ctx, queue)
			return nil
		})
	}

	frames := make(chan audio.Frame, p.config.FrameBuffer)
	capture, captureCtx := errgroup.WithContext(runCtx)
	capture.Go(func() error {
		defer close(frames)
		if err := p.deps.Source.Stream(captureCtx, frames); err != nil {
			return fmt.Errorf("audio source: %w", err)
		}
		return nil
	})
	capture.Go(func() error {
		p.captureLoop(captureCtx, frames, queue)
		return nil
	})

	err := capture.Wait()
	queue.Close()
	workers.Wait()
	p.abandon(queue)

	p.mu.Lock()
	p.cancel = nil
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("Listening session aborted", slog.String("error", err.Error()))
		return err
	}

	p.logger.Info("Listening stopped",
		slog.Uint64("segments_queued", p.segmentsQueued.Load()),
		slog.Uint64("transcribed", p.transcribed.Load()),
		slog.Uint64("failed", p.segmentsFailed.Load()),
	)
	return nil
}

// Stop ends the session. The utterance being recorded is discarded. A Stop
// issued before Run makes that Run return at once.
func (p *Pipeline) Stop() {
	p.stopping.Store(true)

	p.mu.Lock()
	cancel := p.cancel
	if cancel == nil {
		p.stopPending = true
	}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Running reports whether Run is active
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// captureLoop owns the segmenter for the lifetime of a session
func (p *Pipeline) captureLoop(ctx context.Context, frames <-chan audio.Frame, queue *Queue) {
	for frame := range frames {
		if p.stopping.Load() {
			continue
		}

		speech, err := p.deps.Classifier.Classify(frame.Samples)
		if err != nil {
			p.invalidFrames.Add(1)
			p.logger.Warn("Frame rejected by classifier",
				slog.Uint64("seq", frame.Seq),
				slog.String("error", err.Error()))
			continue
		}
		p.framesProcessed.Add(1)
		p.vadStats.Record(speech)
		p.deps.Recorder.RecordFrame(speech)

		seg, err := p.segmenter.Push(frame, speech)
		if err != nil {
			p.invalidFrames.Add(1)
			p.logger.Warn("Frame rejected by segmenter",
				slog.Uint64("seq", frame.Seq),
				slog.String("error", err.Error()))
			continue
		}
		if seg != nil {
			p.enqueue(queue, seg)
		}
	}

	// the source has finished; decide what happens to an open utterance
	if p.stopping.Load() || ctx.Err() != nil {
		if p.segmenter.Stop() {
			p.logger.Info("Discarded unfinished utterance")
		}
		return
	}
	if seg := p.segmenter.Flush(); seg != nil {
		p.enqueue(queue, seg)
	}
}

func (p *Pipeline) enqueue(queue *Queue, seg *audio.Segment) {
	p.deps.Recorder.RecordSegment(seg.Duration, seg.Forced)

	p.logger.Info("Speech segment detected",
		slog.String("segment_id", seg.ID),
		slog.Duration("duration", seg.Duration),
		slog.Int("speech_frames", seg.SpeechFrames),
		slog.Bool("forced", seg.Forced),
	)

	evicted, err := queue.Push(seg)
	if err != nil {
		p.logger.Warn("Segment not queued", slog.String("segment_id", seg.ID), slog.String("error", err.Error()))
		return
	}
	p.segmentsQueued.Add(1)
	if evicted != nil {
		p.segmentsDropped.Add(1)
		p.deps.Recorder.RecordQueueDrop()
		p.logger.Warn("Upload queue full, dropped oldest segment",
			slog.String("segment_id", evicted.ID),
			slog.Duration("duration", evicted.Duration),
			slog.String("path", p.retain(evicted)),
		)
	}
	p.deps.Recorder.SetQueueDepth(queue.Len())
}

func (p *Pipeline) worker(ctx context.Context, queue *Queue) {
	for {
		seg, err := queue.Pop(ctx)
		if err != nil {
			return
		}
		p.deps.Recorder.SetQueueDepth(queue.Len())
		p.process(ctx, seg)
	}
}

// process transcribes and delivers one segment. Every outcome is logged
// and reported; nothing is dropped silently.
func (p *Pipeline) process(ctx context.Context, seg *audio.Segment) {
	res := Result{Segment: seg}
	defer func() {
		if p.deps.OnResult != nil {
			p.deps.OnResult(res)
		}
	}()

	wav, err := seg.WAV()
	if err != nil {
		p.segmentsFailed.Add(1)
		res.Err = fmt.Errorf("failed to encode segment: %w", err)
		p.logger.Error("Segment encoding failed", slog.String("segment_id", seg.ID), slog.String("error", err.Error()))
		return
	}

	result, err := p.deps.Transcriber.TranscribeAudio(ctx, seg.FileName(), wav, p.config.Options)
	if err != nil {
		p.segmentsFailed.Add(1)
		res.Err = err
		res.RetainedPath = p.retain(seg)
		p.logger.Error("Segment transcription failed",
			slog.String("segment_id", seg.ID),
			slog.String("kind", transcription.ErrorKind(err)),
			slog.String("retained", res.RetainedPath),
			slog.String("error", err.Error()),
		)
		return
	}

	p.lastTranscription.Store(time.Now().UnixNano())
	res.Text = strings.TrimSpace(result.Text)
	if res.Text == "" {
		p.emptyResults.Add(1)
		p.logger.Info("Empty transcription", slog.String("segment_id", seg.ID))
		return
	}
	p.transcribed.Add(1)

	p.logger.Info("Segment transcribed",
		slog.String("segment_id", seg.ID),
		slog.Duration("duration", seg.Duration),
		slog.Int("text_length", len(res.Text)),
	)

	if err := p.deps.Sink.DeliverText(ctx, res.Text); err != nil {
		p.deliveryFailed.Add(1)
		res.DeliveryErr = err
		p.logger.Warn("Text delivery failed", slog.String("segment_id", seg.ID), slog.String("error", err.Error()))
		return
	}
	p.delivered.Add(1)
}

// abandon retains segments left in the queue when ctx ended the workers early
func (p *Pipeline) abandon(queue *Queue) {
	for {
		seg, err := queue.Pop(context.Background())
		if err != nil {
			return
		}
		p.segmentsFailed.Add(1)
		p.logger.Warn("Segment abandoned at shutdown",
			slog.String("segment_id", seg.ID),
			slog.String("retained", p.retain(seg)))
	}
}

// retain keeps a segment's audio in the temp store and returns its path
func (p *Pipeline) retain(seg *audio.Segment) string {
	if !p.config.KeepFailed || p.deps.TempStore == nil {
		return ""
	}
	path, err := p.deps.TempStore.Save(seg)
	if err != nil {
		p.logger.Warn("Failed to retain segment audio", slog.String("segment_id", seg.ID), slog.String("error", err.Error()))
		return ""
	}
	p.segmentsRetained.Add(1)
	return path
}

// Stats returns current pipeline statistics
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	queue := p.queue
	p.mu.Unlock()

	queueLen := 0
	if queue != nil {
		queueLen = queue.Len()
	}

	var last time.Time
	if ns := p.lastTranscription.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}

	return Stats{
		Running:           p.running.Load(),
		Segmenter:         p.segmenter.Stats(),
		VAD:               p.vadStats.Snapshot(),
		FramesProcessed:   p.framesProcessed.Load(),
		InvalidFrames:     p.invalidFrames.Load(),
		QueueLength:       queueLen,
		SegmentsQueued:    p.segmentsQueued.Load(),
		SegmentsDropped:   p.segmentsDropped.Load(),
		SegmentsFailed:    p.segmentsFailed.Load(),
		SegmentsRetained:  p.segmentsRetained.Load(),
		Transcribed:       p.transcribed.Load(),
		EmptyResults:      p.emptyResults.Load(),
		Delivered:         p.delivered.Load(),
		DeliveryFailed:    p.deliveryFailed.Load(),
		LastTranscription: last,
	}
}
