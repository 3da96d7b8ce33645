package audio

import (
	"fmt"
	"time"
)

// Segment is a finalized utterance ready for transcription. It is not
// modified after it leaves the segmenter.
type Segment struct {
	ID           string        `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	SampleRate   int           `json:"sample_rate"`
	Samples      []int16       `json:"-"`
	Frames       int           `json:"frames"`
	SpeechFrames int           `json:"speech_frames"`
	// Forced is set when the segment was cut by the maximum duration
	// instead of trailing silence.
	Forced bool `json:"forced"`
}

// WAV encodes the segment as a mono 16-bit WAV file
func (s *Segment) WAV() ([]byte, error) {
	return EncodeWAV(s.Samples, s.SampleRate)
}

// FileName returns the name used when the segment is written to disk
func (s *Segment) FileName() string {
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("speech_%s_%s.wav", s.StartedAt.Format("20060102_150405"), id)
}
