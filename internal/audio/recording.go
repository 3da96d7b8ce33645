package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyRecording is returned when a recording is finished without audio.
var ErrEmptyRecording = errors.New("recording contains no audio")

// Recording collects every frame between start and stop of a push-to-record
// session. No voice activity decision is applied.
type Recording struct {
	format Format
	buffer *UtteranceBuffer
}

// NewRecording creates an empty recording
func NewRecording(format Format) *Recording {
	return &Recording{format: format, buffer: NewUtteranceBuffer()}
}

// Append adds a captured frame
func (r *Recording) Append(frame Frame) error {
	if len(frame.Samples) != r.format.FrameSize() {
		return fmt.Errorf("%w: expected %d samples, got %d",
			ErrInvalidFrame, r.format.FrameSize(), len(frame.Samples))
	}
	r.buffer.Append(frame, true)
	return nil
}

// Duration returns the recorded length so far
func (r *Recording) Duration() time.Duration {
	return time.Duration(r.buffer.Len()) * r.format.FrameDuration
}

// Finish converts the recording into a segment
func (r *Recording) Finish() (*Segment, error) {
	if r.buffer.Len() == 0 {
		return nil, ErrEmptyRecording
	}
	seg := &Segment{
		ID:           uuid.NewString(),
		StartedAt:    r.buffer.StartTime(),
		Duration:     r.Duration(),
		SampleRate:   r.format.SampleRate,
		Samples:      r.buffer.Samples(),
		Frames:       r.buffer.Len(),
		SpeechFrames: r.buffer.SpeechFrames(),
	}
	r.buffer.Reset()
	return seg, nil
}
