// Package pipeline runs a continuous listening session.
// One capture goroutine reads frames, classifies them and feeds the segmenter;
// closed utterances go through a bounded queue to upload workers that
// transcribe each segment and deliver the text.
package pipeline
