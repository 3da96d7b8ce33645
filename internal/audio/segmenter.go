package audio

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SegmentState represents the current state of the segmentation process
type SegmentState int32

const (
	StateIdle SegmentState = iota
	StateRecording
	StateTrailingSilence
)

func (s SegmentState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTrailingSilence:
		return "trailing_silence"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// SegmenterConfig contains configuration for the segmentation process
type SegmenterConfig struct {
	Format Format
	// SilenceThreshold is the continuous silence that closes an utterance.
	SilenceThreshold time.Duration
	// MaxDuration force-closes an utterance, zero disables the limit.
	MaxDuration time.Duration
	// MinSpeechFrames is the least number of speech frames an utterance
	// needs to be emitted. Values below one are treated as one.
	MinSpeechFrames int
}

// SilenceFrames returns the number of consecutive silence frames that close
// an utterance: ceil(threshold / frame duration), at least one.
func SilenceFrames(threshold, frame time.Duration) int {
	if frame <= 0 || threshold <= 0 {
		return 1
	}
	return int((threshold + frame - 1) / frame)
}

// Segmenter turns a stream of classified frames into utterance segments.
//
// Push, Flush and Stop must be called from one goroutine. State and
// Stats may be read from any goroutine.
type Segmenter struct {
	config        SegmenterConfig
	silenceFrames int
	maxFrames     int
	minSpeech     int

	buffer       *UtteranceBuffer
	silenceCount int

	state    atomic.Int32
	buffered atomic.Int64

	emitted       atomic.Uint64
	discarded     atomic.Uint64
	forced        atomic.Uint64
	totalDuration atomic.Int64
}

// SegmenterStats represents segmenter statistics
type SegmenterStats struct {
	State            string        `json:"state"`
	SegmentsEmitted  uint64        `json:"segments_emitted"`
	SegmentsDropped  uint64        `json:"segments_discarded"`
	SegmentsForced   uint64        `json:"segments_forced"`
	BufferedFrames   int64         `json:"buffered_frames"`
	SilenceFrames    int           `json:"silence_frames_to_close"`
	TotalDuration    time.Duration `json:"total_duration"`
	AvgSegmentLength float64       `json:"avg_segment_duration_sec"`
}

// NewSegmenter creates a segmenter in the idle state
func NewSegmenter(config SegmenterConfig) (*Segmenter, error) {
	if err := config.Format.Validate(); err != nil {
		return nil, err
	}
	if config.SilenceThreshold <= 0 {
		return nil, fmt.Errorf("silence threshold must be positive, got %v", config.SilenceThreshold)
	}
	if config.MaxDuration < 0 {
		return nil, fmt.Errorf("max duration cannot be negative, got %v", config.MaxDuration)
	}

	s := &Segmenter{
		config:        config,
		silenceFrames: SilenceFrames(config.SilenceThreshold, config.Format.FrameDuration),
		minSpeech:     max(config.MinSpeechFrames, 1),
		buffer:        NewUtteranceBuffer(),
	}
	if config.MaxDuration > 0 {
		s.maxFrames = max(int(config.MaxDuration/config.Format.FrameDuration), 1)
	}
	return s, nil
}

// Push feeds one classified frame. It returns a segment when the frame
// completes an utterance and nil otherwise.
func (s *Segmenter) Push(frame Frame, speech bool) (*Segment, error) {
	if len(frame.Samples) != s.config.Format.FrameSize() {
		return nil, fmt.Errorf("%w: expected %d samples, got %d",
			ErrInvalidFrame, s.config.Format.FrameSize(), len(frame.Samples))
	}

	switch s.State() {
	case StateIdle:
		if !speech {
			return nil, nil
		}
		s.buffer.Reset()
		s.buffer.Append(frame, true)
		s.setState(StateRecording)

	case StateRecording:
		s.buffer.Append(frame, speech)
		if !speech {
			s.silenceCount = 1
			s.setState(StateTrailingSilence)
		}

	case StateTrailingSilence:
		s.buffer.Append(frame, speech)
		if speech {
			s.silenceCount = 0
			s.setState(StateRecording)
		} else {
			s.silenceCount++
		}
	}
	s.buffered.Store(int64(s.buffer.Len()))

	if s.State() == StateTrailingSilence && s.silenceCount >= s.silenceFrames {
		if s.buffer.SpeechFrames() < s.minSpeech {
			s.discard()
			return nil, nil
		}
		return s.finalize(false), nil
	}

	if s.maxFrames > 0 && s.buffer.Len() >= s.maxFrames {
		if s.buffer.SpeechFrames() < s.minSpeech {
			s.discard()
			return nil, nil
		}
		return s.finalize(true), nil
	}

	return nil, nil
}

// Flush closes the open utterance, if any, as if enough silence had
// followed it. Used when the input ends.
func (s *Segmenter) Flush() *Segment {
	if s.State() == StateIdle {
		return nil
	}
	if s.buffer.SpeechFrames() < s.minSpeech {
		s.discard()
		return nil
	}
	return s.finalize(false)
}

// Stop discards the open utterance and returns to idle. It reports whether
// anything was discarded.
func (s *Segmenter) Stop() bool {
	if s.State() == StateIdle {
		return false
	}
	s.discard()
	return true
}

// finalize converts the buffered utterance into a segment and resets
func (s *Segmenter) finalize(forced bool) *Segment {
	samples, frames := s.buffer.SpeechSpan()
	seg := &Segment{
		ID:           uuid.NewString(),
		StartedAt:    s.buffer.StartTime(),
		Duration:     time.Duration(frames) * s.config.Format.FrameDuration,
		SampleRate:   s.config.Format.SampleRate,
		Samples:      samples,
		Frames:       frames,
		SpeechFrames: s.buffer.SpeechFrames(),
		Forced:       forced,
	}

	s.emitted.Add(1)
	if forced {
		s.forced.Add(1)
	}
	s.totalDuration.Add(int64(seg.Duration))
	s.reset()

	return seg
}

func (s *Segmenter) discard() {
	s.discarded.Add(1)
	s.reset()
}

// reset clears the buffer for the next utterance
func (s *Segmenter) reset() {
	s.buffer.Reset()
	s.silenceCount = 0
	s.buffered.Store(0)
	s.setState(StateIdle)
}

func (s *Segmenter) setState(st SegmentState) {
	s.state.Store(int32(st))
}

// State returns the current state
func (s *Segmenter) State() SegmentState {
	return SegmentState(s.state.Load())
}

// IsIdle returns whether no utterance is open
func (s *Segmenter) IsIdle() bool {
	return s.State() == StateIdle
}

// SilenceFramesToClose returns the configured closing run length
func (s *Segmenter) SilenceFramesToClose() int {
	return s.silenceFrames
}

// Stats returns current segmenter statistics
func (s *Segmenter) Stats() SegmenterStats {
	emitted := s.emitted.Load()
	total := time.Duration(s.totalDuration.Load())

	avg := float64(0)
	if emitted > 0 {
		avg = total.Seconds() / float64(emitted)
	}

	return SegmenterStats{
		State:            s.State().String(),
		SegmentsEmitted:  emitted,
		SegmentsDropped:  s.discarded.Load(),
		SegmentsForced:   s.forced.Load(),
		BufferedFrames:   s.buffered.Load(),
		SilenceFrames:    s.silenceFrames,
		TotalDuration:    total,
		AvgSegmentLength: avg,
	}
}
