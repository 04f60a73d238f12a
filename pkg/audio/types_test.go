// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversion and channel helpers
package audio

import (
	"testing"
	"time"
)

func TestClamp16(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int16
	}{
		{"zero", 0, 0},
		{"positive", 1200, 1200},
		{"negative", -1200, -1200},
		{"over max", 40000, Max16Bit},
		{"under min", -40000, Min16Bit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Clamp16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		depth    int
		expected int16
	}{
		{"16bit passthrough", -1234, 16, -1234},
		{"24bit positive", 100 << 8, 24, 100},
		{"24bit negative", -100 << 8, 24, -100},
		{"8bit widened", 1, 8, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input, tt.depth)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestMonoToStereo(t *testing.T) {
	src := []int16{1, -2, 3}
	dst := make([]int16, 6)

	n := MonoToStereo(dst, src)
	if n != 6 {
		t.Fatalf("expected 6 samples written, got %d", n)
	}

	want := []int16{1, 1, -2, -2, 3, 3}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], dst[i])
		}
	}

	// Short destination truncates
	short := make([]int16, 3)
	if n := MonoToStereo(short, src); n != 2 {
		t.Errorf("expected 2 samples into short buffer, got %d", n)
	}
}

func TestPutInt16LE(t *testing.T) {
	buf := make([]byte, 4)
	n := PutInt16LE(buf, []int16{0x0102, -1})
	if n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}
	want := []byte{0x02, 0x01, 0xFF, 0xFF}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("byte %d: expected %#x, got %#x", i, want[i], buf[i])
		}
	}
}

func TestFormatDuration(t *testing.T) {
	f := Format{Codec: "pcm", SampleRate: 44100, Channels: 2, BitDepth: 16}
	if d := f.Duration(44100); d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}
	if f.FrameBytes() != 4 {
		t.Errorf("expected 4 bytes per frame, got %d", f.FrameBytes())
	}
	if (Format{}).Duration(10) != 0 {
		t.Error("expected zero duration for zero sample rate")
	}
}
