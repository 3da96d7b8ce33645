package audio

import (
	"context"
	"math"
	"time"
)

// SliceSource replays prepared frames. It is used for file input and tests.
type SliceSource struct {
	Frames []Frame
	// Pace delays each frame to mimic a live device; zero sends as fast
	// as the consumer reads.
	Pace time.Duration
	// Err is returned after the last frame, simulating a device failure.
	Err error
}

// Stream implements Source
func (s *SliceSource) Stream(ctx context.Context, out chan<- Frame) error {
	for _, f := range s.Frames {
		if s.Pace > 0 {
			select {
			case <-time.After(s.Pace):
			case <-ctx.Done():
				return nil
			}
		}
		select {
		case out <- f:
		case <-ctx.Done():
			return nil
		}
	}
	return s.Err
}

// Tone generates a sine wave at the given peak amplitude
func Tone(f Format, freq float64, amplitude float64, d time.Duration) []int16 {
	n := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / float64(f.SampleRate)
		out[i] = int16(amplitude * math.Sin(2*math.Pi*freq*t))
	}
	return out
}

// Silence generates d worth of zero samples
func Silence(f Format, d time.Duration) []int16 {
	return make([]int16, int(int64(f.SampleRate)*int64(d)/int64(time.Second)))
}
