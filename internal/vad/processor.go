package vad

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/audio"
)

// ErrInvalidFrame is returned for frames that do not match the classifier's
// sample rate and frame duration. Frames are never padded or truncated.
var ErrInvalidFrame = errors.New("vad: invalid frame")

// Classifier decides whether one frame contains speech
type Classifier interface {
	Classify(frame []int16) (bool, error)
}

// aggressivenessThresholds maps levels 0..3 to normalized RMS thresholds.
// Higher levels reject more background noise and miss more quiet speech.
var aggressivenessThresholds = [4]float64{0.004, 0.008, 0.015, 0.025}

// ThresholdFor returns the RMS threshold used for an aggressiveness level
func ThresholdFor(aggressiveness int) (float64, error) {
	if aggressiveness < 0 || aggressiveness >= len(aggressivenessThresholds) {
		return 0, fmt.Errorf("aggressiveness must be between 0 and 3, got %d", aggressiveness)
	}
	return aggressivenessThresholds[aggressiveness], nil
}

// Config contains classifier configuration
type Config struct {
	SampleRate     int
	FrameDuration  time.Duration
	Aggressiveness int
	// Threshold overrides the aggressiveness level when positive.
	Threshold float64
}

// EnergyClassifier classifies frames by their RMS energy
type EnergyClassifier struct {
	threshold      float64
	aggressiveness int
	frameSize      int
	sampleRate     int
}

// NewEnergyClassifier validates the configuration and builds a classifier
func NewEnergyClassifier(cfg Config) (*EnergyClassifier, error) {
	format := audio.Format{SampleRate: cfg.SampleRate, FrameDuration: cfg.FrameDuration}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	threshold, err := ThresholdFor(cfg.Aggressiveness)
	if err != nil {
		return nil, err
	}

	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", cfg.Threshold)
	}
	if cfg.Threshold > 0 {
		threshold = cfg.Threshold
	}

	return &EnergyClassifier{
		threshold:      threshold,
		aggressiveness: cfg.Aggressiveness,
		frameSize:      format.FrameSize(),
		sampleRate:     cfg.SampleRate,
	}, nil
}

// Classify reports whether the frame's energy reaches the threshold
func (c *EnergyClassifier) Classify(frame []int16) (bool, error) {
	if len(frame) != c.frameSize {
		return false, fmt.Errorf("%w: expected %d samples at %d Hz, got %d",
			ErrInvalidFrame, c.frameSize, c.sampleRate, len(frame))
	}
	return Energy(frame) >= c.threshold, nil
}

// Threshold returns the effective RMS threshold
func (c *EnergyClassifier) Threshold() float64 {
	return c.threshold
}

// FrameSize returns the number of samples a frame must contain
func (c *EnergyClassifier) FrameSize() int {
	return c.frameSize
}

// Energy returns the RMS of the samples normalized to 0..1 of full scale
func Energy(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum/float64(len(samples))) / 32768.0
}

// Stats counts classifier decisions. The zero value is ready to use.
type Stats struct {
	total atomic.Uint64
	voice atomic.Uint64
}

// StatsSnapshot represents classifier statistics
type StatsSnapshot struct {
	TotalFrames     uint64  `json:"total_frames"`
	VoiceFrames     uint64  `json:"voice_frames"`
	VoicePercentage float64 `json:"voice_percentage"`
}

// Record counts one decision
func (s *Stats) Record(speech bool) {
	s.total.Add(1)
	if speech {
		s.voice.Add(1)
	}
}

// Snapshot returns current statistics
func (s *Stats) Snapshot() StatsSnapshot {
	total := s.total.Load()
	voice := s.voice.Load()

	pct := float64(0)
	if total > 0 {
		pct = float64(voice) / float64(total) * 100
	}
	return StatsSnapshot{TotalFrames: total, VoiceFrames: voice, VoicePercentage: pct}
}

// Reset clears the counters
func (s *Stats) Reset() {
	s.total.Store(0)
	s.voice.Store(0)
}
