package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// ErrDeviceBusy is returned when the microphone is opened a second time.
var ErrDeviceBusy = errors.New("audio device is already open")

// DeviceError reports a failure of the capture device. It ends a session.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Source produces frames into out until ctx is cancelled or the source
// fails. It never closes out; the caller does once Stream returns.
type Source interface {
	Stream(ctx context.Context, out chan<- Frame) error
}

// Device captures frames from the default PortAudio input device.
// Only one stream may be open at a time.
type Device struct {
	format Format
	logger *slog.Logger
	open   atomic.Bool

	framesRead atomic.Uint64
	overflows  atomic.Uint64
}

// NewDevice creates a capture device for the given format
func NewDevice(format Format, logger *slog.Logger) (*Device, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture format: %w", err)
	}
	return &Device{format: format, logger: logger}, nil
}

// Stream opens the microphone and delivers one frame per read until ctx
// is done. It fails with ErrDeviceBusy if a stream is already open.
func (d *Device) Stream(ctx context.Context, out chan<- Frame) error {
	if !d.open.CompareAndSwap(false, true) {
		return ErrDeviceBusy
	}
	defer d.open.Store(false)

	if err := portaudio.Initialize(); err != nil {
		return &DeviceError{Op: "initialize", Err: err}
	}
	defer portaudio.Terminate()

	in := make([]int16, d.format.FrameSize())
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(d.format.SampleRate), len(in), in)
	if err != nil {
		return &DeviceError{Op: "open", Err: err}
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return &DeviceError{Op: "start", Err: err}
	}
	defer stream.Stop()

	d.logger.Info("Microphone stream opened",
		slog.Int("sample_rate", d.format.SampleRate),
		slog.Duration("frame_duration", d.format.FrameDuration),
		slog.Int("frame_size", len(in)),
	)

	var seq uint64
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				d.overflows.Add(1)
				d.logger.Warn("Microphone input overflowed", slog.Uint64("seq", seq))
				continue
			}
			return &DeviceError{Op: "read", Err: err}
		}

		frame := Frame{
			Samples:   append([]int16(nil), in...),
			Seq:       seq,
			Timestamp: time.Now(),
		}
		seq++
		d.framesRead.Add(1)

		select {
		case out <- frame:
		case <-ctx.Done():
			return nil
		}
	}
}

// IsOpen reports whether a stream is currently open
func (d *Device) IsOpen() bool {
	return d.open.Load()
}

// DeviceStats represents capture statistics
type DeviceStats struct {
	Open       bool   `json:"open"`
	FramesRead uint64 `json:"frames_read"`
	Overflows  uint64 `json:"overflows"`
}

// Stats returns capture statistics
func (d *Device) Stats() DeviceStats {
	return DeviceStats{
		Open:       d.open.Load(),
		FramesRead: d.framesRead.Load(),
		Overflows:  d.overflows.Load(),
	}
}
