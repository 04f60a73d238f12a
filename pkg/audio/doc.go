// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and 16-bit sample helpers
// Package audio provides the audio types shared by sound sources, the rate
// converter and output devices.
//
// Everything downstream of a source works on interleaved signed 16-bit
// little-endian samples (S16_LE). The helpers here narrow wider samples,
// up-mix mono and pack samples for byte-oriented sinks.
//
// Example:
//
//	format := audio.Format{
//	    Codec:      "wav",
//	    SampleRate: 44100,
//	    Channels:   2,
//	    BitDepth:   16,
//	}
//
//	block := make([]int16, 1024*format.Channels)
package audio
