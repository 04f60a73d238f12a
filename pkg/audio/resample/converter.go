// ABOUTME: Pull-driven rate converter with variable ratio
// ABOUTME: Interpolates between adjacent input frames to stretch or squeeze playback
package resample

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinRatio and MaxRatio bound the conversion ratio
	MinRatio = 1.0 / 256.0
	MaxRatio = 256.0

	// frames requested from the pull callback per refill
	pullFrames = 256
)

// ErrBadRatio is returned for ratios outside [MinRatio, MaxRatio]
var ErrBadRatio = errors.New("conversion ratio out of range")

// PullFunc fills dst with interleaved frames and returns the number of
// frames written. Fewer frames than requested marks the end of input.
type PullFunc func(dst []int16) int

// Quality selects the interpolation method
type Quality int

const (
	// ZeroOrderHold repeats the previous input frame
	ZeroOrderHold Quality = iota
	// Linear interpolates between neighbouring input frames
	Linear
)

func (q Quality) String() string {
	switch q {
	case ZeroOrderHold:
		return "zero-order-hold"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// ParseQuality maps a config string to a Quality
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "zoh", "zero-order-hold":
		return ZeroOrderHold, nil
	case "linear", "":
		return Linear, nil
	default:
		return Linear, fmt.Errorf("unknown converter quality %q", s)
	}
}

// Converter converts a pulled stream at a caller-supplied ratio
type Converter struct {
	pull     PullFunc
	quality  Quality
	channels int
	ratio    float64

	in       []int16
	inFrames int
	inPos    int
	srcDone  bool

	prev     []int16
	next     []int16
	position float64 // fractional position between prev and next
	primed   bool
	tail     bool // input exhausted, next holds the last frame
	drained  bool
}

// New creates a converter reading from pull
func New(pull PullFunc, quality Quality, channels int) (*Converter, error) {
	if pull == nil {
		return nil, errors.New("pull function is required")
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if quality != ZeroOrderHold && quality != Linear {
		return nil, fmt.Errorf("unsupported quality %v", quality)
	}
	return &Converter{
		pull:     pull,
		quality:  quality,
		channels: channels,
		ratio:    1.0,
		in:       make([]int16, pullFrames*channels),
		prev:     make([]int16, channels),
		next:     make([]int16, channels),
	}, nil
}

// Ratio returns the ratio used by the last Read
func (c *Converter) Ratio() float64 { return c.ratio }

// Channels returns the interleave width
func (c *Converter) Channels() int { return c.channels }

// SetRatio changes the ratio in one step, with no ramp from the old one.
// ReadCurrent uses it; Read overrides it per call.
func (c *Converter) SetRatio(ratio float64) error {
	if ratio < MinRatio || ratio > MaxRatio || math.IsNaN(ratio) {
		return fmt.Errorf("%w: %g", ErrBadRatio, ratio)
	}
	c.ratio = ratio
	return nil
}

// ReadCurrent reads at the ratio last set by SetRatio or Read
func (c *Converter) ReadCurrent(dst []int16) (int, error) {
	return c.Read(c.ratio, dst)
}

// Read produces up to len(dst)/channels output frames at the given ratio.
// Returns fewer frames only when input has run out.
func (c *Converter) Read(ratio float64, dst []int16) (int, error) {
	if ratio < MinRatio || ratio > MaxRatio || math.IsNaN(ratio) {
		return 0, fmt.Errorf("%w: %g", ErrBadRatio, ratio)
	}
	c.ratio = ratio

	if !c.primed {
		c.prime()
	}
	if c.drained {
		return 0, nil
	}

	step := 1.0 / ratio
	want := len(dst) / c.channels
	out := 0
	for out < want {
		frame := dst[out*c.channels : (out+1)*c.channels]
		c.interpolate(frame)
		out++

		c.position += step
		for c.position >= 1.0 {
			c.position -= 1.0
			if c.tail {
				c.drained = true
				return out, nil
			}
			copy(c.prev, c.next)
			if !c.fetch(c.next) {
				copy(c.next, c.prev)
				c.tail = true
			}
		}
	}
	return out, nil
}

// Reset discards interpolation history and buffered input so the next
// Read starts fresh from the pull callback.
func (c *Converter) Reset() {
	c.inFrames = 0
	c.inPos = 0
	c.srcDone = false
	c.position = 0
	c.primed = false
	c.tail = false
	c.drained = false
	for i := range c.prev {
		c.prev[i] = 0
		c.next[i] = 0
	}
}

// Close releases buffers. The converter must not be used afterwards.
func (c *Converter) Close() error {
	c.in = nil
	c.pull = nil
	c.drained = true
	c.primed = true
	return nil
}

func (c *Converter) prime() {
	c.primed = true
	if !c.fetch(c.prev) {
		c.drained = true
		return
	}
	if !c.fetch(c.next) {
		copy(c.next, c.prev)
		c.tail = true
	}
}

func (c *Converter) interpolate(dst []int16) {
	if c.quality == ZeroOrderHold {
		copy(dst, c.prev)
		return
	}
	frac := c.position
	for ch := 0; ch < c.channels; ch++ {
		a := float64(c.prev[ch])
		b := float64(c.next[ch])
		dst[ch] = int16(a + (b-a)*frac)
	}
}

// fetch copies the next input frame into dst
func (c *Converter) fetch(dst []int16) bool {
	if c.inPos >= c.inFrames {
		if c.srcDone || c.pull == nil {
			return false
		}
		c.inFrames = c.pull(c.in)
		c.inPos = 0
		if c.inFrames < pullFrames {
			c.srcDone = true
		}
		if c.inFrames == 0 {
			return false
		}
	}
	copy(dst, c.in[c.inPos*c.channels:(c.inPos+1)*c.channels])
	c.inPos++
	return true
}
