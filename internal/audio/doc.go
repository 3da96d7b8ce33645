// Package audio handles microphone capture, utterance segmentation and WAV encoding.
// Frames are read from PortAudio (or any Source), fed with their speech decision into
// the Segmenter state machine, and finalized utterances are emitted as Segments.
package audio
