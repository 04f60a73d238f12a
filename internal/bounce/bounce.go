// ABOUTME: Sawtooth playback-rate modulation for the bounce effect
// ABOUTME: Lowers the conversion ratio a fixed step per block and wraps at a floor
package bounce

import (
	"errors"
	"fmt"

	"github.com/maxmbed/sample-trig/pkg/audio/resample"
)

// Params tune the sawtooth
type Params struct {
	BaseRatio      float64
	Floor          float64
	StepMultiplier float64
}

// DefaultParams returns the stock sawtooth settings
func DefaultParams() Params {
	return Params{
		BaseRatio:      1.0,
		Floor:          0.05,
		StepMultiplier: 1.0,
	}
}

// Validate checks that the sawtooth can make progress
func (p Params) Validate() error {
	if p.BaseRatio <= 0 || p.BaseRatio > resample.MaxRatio {
		return fmt.Errorf("base ratio must be in (0, %g], got %g", resample.MaxRatio, p.BaseRatio)
	}
	// Every ratio Process uses stays above the floor, so the floor keeps
	// the converter in range
	if p.Floor < resample.MinRatio || p.Floor >= p.BaseRatio {
		return fmt.Errorf("floor must be in [%g, %g), got %g", resample.MinRatio, p.BaseRatio, p.Floor)
	}
	if p.StepMultiplier <= 0 {
		return fmt.Errorf("step multiplier must be positive, got %g", p.StepMultiplier)
	}
	return nil
}

// Converter is the rate converter a Modulator drives
type Converter interface {
	Read(ratio float64, dst []int16) (int, error)
	Reset()
}

// Modulator holds the current ratio and advances it once per block
type Modulator struct {
	params Params
	conv   Converter

	ratio      float64
	step       float64
	totalSteps float64
	wraps      int
}

// New creates a modulator over conv
func New(params Params, conv Converter) (*Modulator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errors.New("converter is required")
	}
	return &Modulator{
		params: params,
		conv:   conv,
		ratio:  params.BaseRatio,
	}, nil
}

// Setup derives the step size from the block timing and sound length:
// the ratio walks from base to zero in as many blocks as the sound lasts.
func (m *Modulator) Setup(periodFrames, sampleRate, totalFrames int) error {
	if periodFrames <= 0 || sampleRate <= 0 {
		return fmt.Errorf("invalid block timing: period=%d rate=%d", periodFrames, sampleRate)
	}

	frameTime := float64(periodFrames) / float64(sampleRate)
	sampleTime := float64(totalFrames) / float64(sampleRate)
	totalSteps := sampleTime / frameTime
	if totalSteps <= 0 {
		return fmt.Errorf("sound too short to modulate: %d frames", totalFrames)
	}

	m.totalSteps = totalSteps
	m.step = m.params.BaseRatio / totalSteps * m.params.StepMultiplier
	m.ratio = m.params.BaseRatio
	return nil
}

// Process converts one block at the current ratio, then lowers the ratio.
// Returns the frames produced; fewer than requested means end of stream.
func (m *Modulator) Process(dst []int16) (int, error) {
	n, err := m.conv.Read(m.ratio, dst)
	if err != nil {
		return n, fmt.Errorf("convert at ratio %g: %w", m.ratio, err)
	}

	m.ratio -= m.step
	if m.ratio <= m.params.Floor {
		m.ratio = m.params.BaseRatio
		m.wraps++
	}
	return n, nil
}

// Reset restores the base ratio and clears converter history
func (m *Modulator) Reset() {
	m.ratio = m.params.BaseRatio
	m.conv.Reset()
}

func (m *Modulator) Ratio() float64      { return m.ratio }
func (m *Modulator) Step() float64       { return m.step }
func (m *Modulator) TotalSteps() float64 { return m.totalSteps }
func (m *Modulator) Wraps() int          { return m.wraps }
func (m *Modulator) Params() Params      { return m.params }
