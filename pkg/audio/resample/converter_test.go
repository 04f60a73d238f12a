// ABOUTME: Tests for the pull-driven rate converter
// ABOUTME: Checks output lengths per ratio, interpolation, reset and ratio validation
package resample

import (
	"errors"
	"testing"
)

// rampSource yields frames whose every channel equals the frame index
type rampSource struct {
	frames   int
	channels int
	pos      int
	pulls    int
}

func (r *rampSource) pull(dst []int16) int {
	r.pulls++
	want := len(dst) / r.channels
	n := min(want, r.frames-r.pos)
	for i := 0; i < n; i++ {
		for ch := 0; ch < r.channels; ch++ {
			dst[i*r.channels+ch] = int16(r.pos + i)
		}
	}
	r.pos += n
	return n
}

func drain(t *testing.T, c *Converter, ratio float64, block int) int {
	t.Helper()
	buf := make([]int16, block*c.Channels())
	total := 0
	for {
		n, err := c.Read(ratio, buf)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		total += n
		if n < block {
			return total
		}
	}
}

func TestConverterOutputLength(t *testing.T) {
	tests := []struct {
		name     string
		ratio    float64
		frames   int
		expected int
	}{
		{"unity", 1.0, 1000, 1000},
		{"half", 0.5, 1000, 500},
		{"double", 2.0, 1000, 2000},
		{"quarter", 0.25, 1000, 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &rampSource{frames: tt.frames, channels: 2}
			c, err := New(src.pull, Linear, 2)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			got := drain(t, c, tt.ratio, 128)
			if got < tt.expected-2 || got > tt.expected+2 {
				t.Errorf("expected ~%d frames, got %d", tt.expected, got)
			}
		})
	}
}

func TestConverterUnityIsIdentity(t *testing.T) {
	src := &rampSource{frames: 300, channels: 1}
	c, err := New(src.pull, Linear, 1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out := make([]int16, 300)
	n, err := c.Read(1.0, out)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 300 {
		t.Fatalf("expected 300 frames, got %d", n)
	}
	for i := 0; i < n; i++ {
		if out[i] != int16(i) {
			t.Fatalf("frame %d: expected %d, got %d", i, i, out[i])
		}
	}
}

func TestConverterInterpolates(t *testing.T) {
	src := &rampSource{frames: 10, channels: 1}
	c, err := New(src.pull, Linear, 1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Ramp input scaled by 100 so the midpoint survives integer truncation
	scaled := func(dst []int16) int {
		n := src.pull(dst)
		for i := 0; i < n; i++ {
			dst[i] *= 100
		}
		return n
	}
	c.pull = scaled

	out := make([]int16, 4)
	if _, err := c.Read(2.0, out); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := []int16{0, 50, 100, 150}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("frame %d: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestConverterZeroOrderHold(t *testing.T) {
	src := &rampSource{frames: 10, channels: 1}
	c, err := New(src.pull, ZeroOrderHold, 1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out := make([]int16, 4)
	if _, err := c.Read(2.0, out); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := []int16{0, 0, 1, 1}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("frame %d: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestConverterReset(t *testing.T) {
	src := &rampSource{frames: 1000, channels: 1}
	c, err := New(src.pull, Linear, 1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out := make([]int16, 64)
	if _, err := c.Read(0.7, out); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	src.pos = 0
	c.Reset()

	n, err := c.Read(1.0, out)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 64 || out[0] != 0 || out[63] != 63 {
		t.Errorf("expected fresh ramp after reset, got n=%d first=%d last=%d", n, out[0], out[63])
	}
}

func TestConverterBadRatio(t *testing.T) {
	src := &rampSource{frames: 10, channels: 1}
	c, err := New(src.pull, Linear, 1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, r := range []float64{0, -1, MaxRatio * 2} {
		if _, err := c.Read(r, make([]int16, 4)); !errors.Is(err, ErrBadRatio) {
			t.Errorf("ratio %g: expected ErrBadRatio, got %v", r, err)
		}
	}
}

func TestConverterEmptyInput(t *testing.T) {
	src := &rampSource{frames: 0, channels: 2}
	c, err := New(src.pull, Linear, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	n, err := c.Read(1.0, make([]int16, 16))
	if err != nil || n != 0 {
		t.Errorf("expected 0 frames and no error, got %d, %v", n, err)
	}
}

func TestNewValidation(t *testing.T) {
	src := &rampSource{frames: 1, channels: 1}
	if _, err := New(nil, Linear, 1); err == nil {
		t.Error("expected error for nil pull")
	}
	if _, err := New(src.pull, Linear, 0); err == nil {
		t.Error("expected error for zero channels")
	}
	if _, err := New(src.pull, Quality(9), 1); err == nil {
		t.Error("expected error for unknown quality")
	}
}

func TestParseQuality(t *testing.T) {
	tests := []struct {
		input    string
		expected Quality
		wantErr  bool
	}{
		{"linear", Linear, false},
		{"", Linear, false},
		{"zoh", ZeroOrderHold, false},
		{"sinc", Linear, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q, err := ParseQuality(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if q != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, q)
			}
		})
	}
}

func TestConverterSetRatio(t *testing.T) {
	src := &rampSource{frames: 1000, channels: 1}
	c, err := New(src.pull, Linear, 1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.SetRatio(0); !errors.Is(err, ErrBadRatio) {
		t.Errorf("expected ErrBadRatio, got %v", err)
	}
	if c.Ratio() != 1.0 {
		t.Errorf("expected ratio unchanged after rejected set, got %g", c.Ratio())
	}

	if err := c.SetRatio(2.0); err != nil {
		t.Fatalf("SetRatio failed: %v", err)
	}
	buf := make([]int16, 4)
	n, err := c.ReadCurrent(buf)
	if err != nil || n != 4 {
		t.Fatalf("ReadCurrent: n=%d err=%v", n, err)
	}
	// Ratio 2 emits two frames per input frame; halfway points truncate down
	want := []int16{0, 0, 1, 1}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("frame %d: expected %d, got %d", i, want[i], buf[i])
		}
	}
}
