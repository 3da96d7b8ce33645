package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFrame is returned when a frame does not match the configured format.
var ErrInvalidFrame = errors.New("invalid audio frame")

// Format describes the capture format shared by every frame of a session.
// Samples are always signed 16-bit mono PCM.
type Format struct {
	SampleRate    int
	FrameDuration time.Duration
}

// FrameSize returns the number of samples in one frame
func (f Format) FrameSize() int {
	return int(int64(f.SampleRate) * int64(f.FrameDuration) / int64(time.Second))
}

// Validate checks the format against the rates and frame lengths
// the voice activity classifier accepts.
func (f Format) Validate() error {
	switch f.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return fmt.Errorf("unsupported sample rate %d Hz", f.SampleRate)
	}

	switch f.FrameDuration {
	case 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond:
	default:
		return fmt.Errorf("unsupported frame duration %v (want 10, 20 or 30ms)", f.FrameDuration)
	}

	return nil
}

// Frame is one fixed-duration block of PCM samples. Frames are not
// modified after capture.
type Frame struct {
	Samples   []int16
	Seq       uint64
	Timestamp time.Time
}

// NewFrame copies samples into a frame after checking its length.
func NewFrame(f Format, seq uint64, ts time.Time, samples []int16) (Frame, error) {
	if len(samples) != f.FrameSize() {
		return Frame{}, fmt.Errorf("%w: expected %d samples, got %d", ErrInvalidFrame, f.FrameSize(), len(samples))
	}
	return Frame{
		Samples:   append([]int16(nil), samples...),
		Seq:       seq,
		Timestamp: ts,
	}, nil
}

// SplitFrames cuts samples into frames of the given format. The last frame
// is zero padded.
func SplitFrames(f Format, samples []int16, start time.Time) []Frame {
	size := f.FrameSize()
	if size <= 0 {
		return nil
	}
	frames := make([]Frame, 0, (len(samples)+size-1)/size)
	for off, seq := 0, uint64(0); off < len(samples); off, seq = off+size, seq+1 {
		buf := make([]int16, size)
		copy(buf, samples[off:])
		frames = append(frames, Frame{
			Samples:   buf,
			Seq:       seq,
			Timestamp: start.Add(time.Duration(seq) * f.FrameDuration),
		})
	}
	return frames
}
