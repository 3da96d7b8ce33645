package audio

import "time"

// UtteranceBuffer accumulates the frames of one utterance in capture order.
// It is owned by a single goroutine and is not safe for concurrent use.
type UtteranceBuffer struct {
	frames       []Frame
	speechFrames int
	lastSpeech   int // index of the last speech frame, -1 when none
}

// NewUtteranceBuffer creates an empty buffer
func NewUtteranceBuffer() *UtteranceBuffer {
	return &UtteranceBuffer{lastSpeech: -1}
}

// Append adds a frame and records whether it was classified as speech
func (b *UtteranceBuffer) Append(f Frame, speech bool) {
	b.frames = append(b.frames, f)
	if speech {
		b.speechFrames++
		b.lastSpeech = len(b.frames) - 1
	}
}

// Len returns the number of buffered frames
func (b *UtteranceBuffer) Len() int {
	return len(b.frames)
}

// SpeechFrames returns how many buffered frames were speech
func (b *UtteranceBuffer) SpeechFrames() int {
	return b.speechFrames
}

// HasSpeech reports whether at least one buffered frame was speech
func (b *UtteranceBuffer) HasSpeech() bool {
	return b.speechFrames > 0
}

// StartTime returns the timestamp of the first frame
func (b *UtteranceBuffer) StartTime() time.Time {
	if len(b.frames) == 0 {
		return time.Time{}
	}
	return b.frames[0].Timestamp
}

// Samples concatenates every buffered frame
func (b *UtteranceBuffer) Samples() []int16 {
	return b.concat(len(b.frames))
}

// SpeechSpan concatenates the frames up to and including the last speech
// frame, dropping any trailing silence.
func (b *UtteranceBuffer) SpeechSpan() ([]int16, int) {
	n := b.lastSpeech + 1
	return b.concat(n), n
}

func (b *UtteranceBuffer) concat(n int) []int16 {
	size := 0
	for _, f := range b.frames[:n] {
		size += len(f.Samples)
	}
	out := make([]int16, 0, size)
	for _, f := range b.frames[:n] {
		out = append(out, f.Samples...)
	}
	return out
}

// Reset drops all frames while keeping the backing array
func (b *UtteranceBuffer) Reset() {
	for i := range b.frames {
		b.frames[i] = Frame{}
	}
	b.frames = b.frames[:0]
	b.speechFrames = 0
	b.lastSpeech = -1
}
