// ABOUTME: Streaming rate conversion package using interpolation
// ABOUTME: Pulls input on demand and converts at a ratio that may change per call
// Package resample provides streaming playback-rate conversion.
//
// A Converter pulls input frames from a callback as it needs them and
// produces output at a ratio expressed as output frames per input frame.
// A ratio below 1.0 consumes input faster (higher pitch, shorter sound).
// The ratio can change between calls without discontinuity in the
// interpolation position.
//
// Example:
//
//	conv, err := resample.New(clip.ReadBlock, resample.Linear, 2)
//	n, err := conv.Read(0.5, block)
package resample
