// ABOUTME: Audio type definitions
// ABOUTME: Defines sample formats and 16-bit PCM helpers shared by sources and outputs
package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// 16-bit audio range constants
	Max16Bit = 32767
	Min16Bit = -32768

	// BytesPerSample is the size of one S16_LE sample
	BytesPerSample = 2
)

// Format describes a PCM stream
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// String implements fmt.Stringer
func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch %dbit", f.Codec, f.SampleRate, f.Channels, f.BitDepth)
}

// FrameBytes returns the size in bytes of one interleaved 16-bit frame
func (f Format) FrameBytes() int {
	return f.Channels * BytesPerSample
}

// Duration returns the play time of n frames
func (f Format) Duration(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Clamp16 saturates a wider sample into the int16 range
func Clamp16(v int) int16 {
	if v > Max16Bit {
		return Max16Bit
	}
	if v < Min16Bit {
		return Min16Bit
	}
	return int16(v)
}

// SampleToInt16 narrows a sample of the given bit depth to 16 bits
func SampleToInt16(sample int32, bitDepth int) int16 {
	switch {
	case bitDepth > 16:
		return int16(sample >> (bitDepth - 16))
	case bitDepth < 16:
		return int16(sample << (16 - bitDepth))
	default:
		return int16(sample)
	}
}

// MonoToStereo duplicates each mono sample into an interleaved L/R pair.
// dst must hold 2*len(src) samples. Returns the number of samples written.
func MonoToStereo(dst, src []int16) int {
	n := len(src)
	if len(dst)/2 < n {
		n = len(dst) / 2
	}
	for i := 0; i < n; i++ {
		dst[2*i] = src[i]
		dst[2*i+1] = src[i]
	}
	return n * 2
}

// PutInt16LE encodes samples as little-endian bytes into dst.
// Returns the number of bytes written.
func PutInt16LE(dst []byte, samples []int16) int {
	n := len(samples)
	if len(dst)/BytesPerSample < n {
		n = len(dst) / BytesPerSample
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(samples[i]))
	}
	return n * BytesPerSample
}
