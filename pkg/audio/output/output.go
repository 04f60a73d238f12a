// ABOUTME: Audio output interface definition
// ABOUTME: Common device interface, state machine states and backend selection
package output

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrClosed is returned by operations on a closed device
	ErrClosed = errors.New("device closed")
	// ErrNotPrepared is returned when a device has not been configured
	ErrNotPrepared = errors.New("device not prepared")
	// ErrTimeout is returned when the consumer stops making room
	ErrTimeout = errors.New("timed out waiting for device")
)

// State is the playback state of a device
type State int

const (
	Unconfigured State = iota
	Prepared
	Running
	XRun
	Suspended
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "UNCONFIGURED"
	case Prepared:
		return "PREPARED"
	case Running:
		return "RUNNING"
	case XRun:
		return "XRUN"
	case Suspended:
		return "SUSPENDED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Stats counts device activity
type Stats struct {
	FramesWritten int64
	Underruns     int64
	Recoveries    int64
	Drops         int64
}

// Device represents a per-voice playback stream of interleaved S16_LE frames
type Device interface {
	// WaitForRoom blocks until at least one period can be written
	WaitForRoom() error

	// Write queues a block and returns the frames accepted. Underruns and
	// suspends are recovered internally.
	Write(block []int16) int

	// State returns the current playback state
	State() State

	// DropPending discards queued audio and re-prepares the device
	DropPending() error

	// Close drains queued audio and releases the device
	Close() error

	PeriodFrames() int
	SampleRate() int
	Channels() int
	Stats() Stats
}

// Backend names
const (
	BackendOto  = "oto"
	BackendNull = "null"
	BackendALSA = "alsa"
)

// Config describes how to open a device
type Config struct {
	Backend      string
	Name         string // ALSA PCM name
	SampleRate   int
	PeriodFrames int
	Periods      int
	WaitTimeout  time.Duration
}

// DefaultConfig returns the stock device settings
func DefaultConfig() Config {
	return Config{
		Backend:      BackendOto,
		Name:         "default",
		SampleRate:   44100,
		PeriodFrames: 1024,
		Periods:      4,
		WaitTimeout:  2 * time.Second,
	}
}

// Validate checks the config for impossible values
func (c Config) Validate() error {
	switch c.Backend {
	case BackendOto, BackendNull, BackendALSA:
	default:
		return fmt.Errorf("unknown output backend %q (supported: oto, null, alsa)", c.Backend)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", c.SampleRate)
	}
	if c.PeriodFrames <= 0 {
		return fmt.Errorf("invalid period size %d", c.PeriodFrames)
	}
	if c.Periods < 2 {
		return fmt.Errorf("need at least 2 periods, got %d", c.Periods)
	}
	return nil
}

// closeSlack covers sink teardown after the playback bounds
const closeSlack = 50 * time.Millisecond

// RingTime is how long a full ring of Periods periods plays
func (c Config) RingTime() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.PeriodFrames*c.Periods) * time.Second / time.Duration(c.SampleRate)
}

// CloseTimeout bounds Close on any backend: the ring drains within one
// ring time plus WaitTimeout, then the sink plays out at most one more ring.
func (c Config) CloseTimeout() time.Duration {
	wait := c.WaitTimeout
	if wait <= 0 {
		wait = DefaultConfig().WaitTimeout
	}
	return 2*c.RingTime() + wait + closeSlack
}

// Open creates a device for the given channel count on the configured backend
func Open(cfg Config, channels int) (Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultConfig().WaitTimeout
	}

	switch cfg.Backend {
	case BackendNull:
		return openNull(cfg, channels)
	case BackendALSA:
		return openALSA(cfg, channels)
	default:
		return openOto(cfg, channels)
	}
}
