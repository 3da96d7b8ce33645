// Package vad provides frame-level voice activity detection.
// A Classifier answers speech or silence for exactly one frame; the energy classifier
// compares normalized RMS against a threshold chosen by an aggressiveness level 0-3.
package vad
