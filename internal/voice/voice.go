// ABOUTME: Per-voice playback engine running in its own goroutine
// ABOUTME: Streams a source to a device block by block with retrigger and stop handling
package voice

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxmbed/sample-trig/internal/bounce"
	"github.com/maxmbed/sample-trig/internal/command"
	"github.com/maxmbed/sample-trig/pkg/audio/output"
	"github.com/maxmbed/sample-trig/pkg/audio/resample"
	"github.com/maxmbed/sample-trig/pkg/audio/source"
)

// DefaultIdleTimeout is how long an idle voice waits before re-checking its channel
const DefaultIdleTimeout = 60 * time.Second

// State is the voice's position in its lifecycle
type State int32

const (
	Init State = iota
	IdleWait
	Streaming
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case IdleWait:
		return "idle"
	case Streaming:
		return "streaming"
	case ShuttingDown:
		return "shutting down"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// OpenFunc opens the playback device for a voice
type OpenFunc func(channels int) (output.Device, error)

// Config holds voice settings
type Config struct {
	IdleTimeout time.Duration
	OpenDevice  OpenFunc
	// Bounce enables rate modulation when non-nil
	Bounce  *bounce.Params
	Quality resample.Quality
}

// Stats counts voice activity
type Stats struct {
	Sessions   int64
	Retriggers int64
	Blocks     int64
	Frames     int64
	Aborts     int64
}

// Voice owns one source, one device and one command channel.
// Only the voice goroutine touches them; other goroutines may read State,
// Stats and LastCommand.
type Voice struct {
	id  int
	ch  *command.Channel
	src source.Source
	cfg Config

	dev    output.Device
	conv   *resample.Converter
	mod    *bounce.Modulator
	block  []int16
	period int

	state      atomic.Int32
	sessions   atomic.Int64
	retriggers atomic.Int64
	blocks     atomic.Int64
	frames     atomic.Int64
	aborts     atomic.Int64
	last       atomic.Pointer[command.Command]

	startOnce sync.Once
	ready     chan error
	done      chan struct{}
}

// New creates a voice. It takes ownership of ch and src.
func New(id int, ch *command.Channel, src source.Source, cfg Config) (*Voice, error) {
	if ch == nil || src == nil {
		return nil, errors.New("voice needs a channel and a source")
	}
	if cfg.OpenDevice == nil {
		return nil, errors.New("voice needs a device opener")
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Bounce != nil {
		if err := cfg.Bounce.Validate(); err != nil {
			return nil, fmt.Errorf("voice %d bounce: %w", id, err)
		}
	}

	v := &Voice{
		id:    id,
		ch:    ch,
		src:   src,
		cfg:   cfg,
		ready: make(chan error, 1),
		done:  make(chan struct{}),
	}
	v.state.Store(int32(Init))
	return v, nil
}

// Start launches the voice goroutine. Later calls do nothing.
func (v *Voice) Start() {
	v.startOnce.Do(func() {
		go v.run()
	})
}

func (v *Voice) ID() int                   { return v.id }
func (v *Voice) Channel() *command.Channel { return v.ch }
func (v *Voice) State() State              { return State(v.state.Load()) }

// Name returns the source name when it has one
func (v *Voice) Name() string {
	if named, ok := v.src.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("voice %d", v.id)
}

// Ready delivers the result of opening the device
func (v *Voice) Ready() <-chan error { return v.ready }

// Done is closed when the voice goroutine has returned
func (v *Voice) Done() <-chan struct{} { return v.done }

// Wait blocks until the voice goroutine has returned
func (v *Voice) Wait() { <-v.done }

// LastCommand returns the most recent command the voice acted on
func (v *Voice) LastCommand() (command.Command, bool) {
	cmd := v.last.Load()
	if cmd == nil {
		return command.Command{}, false
	}
	return *cmd, true
}

func (v *Voice) Stats() Stats {
	return Stats{
		Sessions:   v.sessions.Load(),
		Retriggers: v.retriggers.Load(),
		Blocks:     v.blocks.Load(),
		Frames:     v.frames.Load(),
		Aborts:     v.aborts.Load(),
	}
}

func (v *Voice) setState(s State) {
	v.state.Store(int32(s))
}

func (v *Voice) remember(cmd command.Command) {
	v.last.Store(&cmd)
}

func (v *Voice) run() {
	defer close(v.done)

	if err := v.init(); err != nil {
		log.Printf("Trig %d: %v", v.id, err)
		v.release()
		v.setState(Terminated)
		v.ready <- err
		return
	}
	v.ready <- nil

	v.loop()
	v.shutdown()
}

func (v *Voice) init() error {
	channels := v.src.Format().Channels
	dev, err := v.cfg.OpenDevice(channels)
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	v.dev = dev
	v.period = dev.PeriodFrames()
	v.block = make([]int16, v.period*channels)

	if v.cfg.Bounce != nil {
		if err := v.initBounce(channels); err != nil {
			dev.Close()
			v.dev = nil
			return err
		}
	}

	log.Printf("Trig %d: ready (%s, %d frames, period %d, state %s)",
		v.id, v.Name(), v.src.Frames(), v.period, dev.State())
	return nil
}

func (v *Voice) initBounce(channels int) error {
	conv, err := resample.New(v.src.ReadBlock, v.cfg.Quality, channels)
	if err != nil {
		return fmt.Errorf("create converter: %w", err)
	}
	mod, err := bounce.New(*v.cfg.Bounce, conv)
	if err != nil {
		return err
	}
	if err := mod.Setup(v.period, v.dev.SampleRate(), v.src.Frames()); err != nil {
		return fmt.Errorf("bounce setup: %w", err)
	}
	v.conv = conv
	v.mod = mod
	log.Printf("Trig %d: bounce step %.6f over %.1f blocks", v.id, mod.Step(), mod.TotalSteps())
	return nil
}

func (v *Voice) loop() {
	v.setState(IdleWait)
	for {
		switch v.State() {
		case IdleWait:
			v.setState(v.idleWait())
		case Streaming:
			v.setState(v.stream())
		default:
			return
		}
	}
}

func (v *Voice) idleWait() State {
	cmd, ok, err := v.ch.Pull(v.cfg.IdleTimeout)
	if err != nil {
		if errors.Is(err, command.ErrClosed) {
			log.Printf("Trig %d: channel closed while idle", v.id)
			return ShuttingDown
		}
		log.Printf("Trig %d: pull failed: %v", v.id, err)
		return IdleWait
	}
	if !ok {
		return IdleWait
	}

	v.remember(cmd)
	switch cmd.Kind {
	case command.Stop:
		return ShuttingDown
	case command.Start:
		v.beginSession()
		return Streaming
	default:
		log.Printf("Trig %d: ignoring %s", v.id, cmd.Kind)
		return IdleWait
	}
}

// beginSession starts playback from a clean, silent device
func (v *Voice) beginSession() {
	if st := v.dev.State(); st != output.Prepared {
		log.Printf("Trig %d: device %s, dropping before play", v.id, st)
		if err := v.dev.DropPending(); err != nil {
			log.Printf("Trig %d: drop failed: %v", v.id, err)
		}
	}
	v.rewind()
	v.sessions.Add(1)
	log.Printf("Trig %d: play", v.id)
}

func (v *Voice) stream() State {
	channels := v.src.Format().Channels
	for {
		n, err := v.readBlock()
		if err != nil {
			log.Printf("Trig %d: read failed, aborting: %v", v.id, err)
			v.abort()
			return IdleWait
		}
		endOfStream := n < v.period

		if n > 0 {
			if err := v.waitForRoom(); err != nil {
				log.Printf("Trig %d: device not ready, aborting: %v", v.id, err)
				v.abort()
				return IdleWait
			}
			if written := v.dev.Write(v.block[:n*channels]); written < n {
				log.Printf("Trig %d: short write %d/%d frames", v.id, written, n)
			}
			v.blocks.Add(1)
			v.frames.Add(int64(n))
		}

		cmd, ok, err := v.ch.Pull(0)
		if err != nil {
			if errors.Is(err, command.ErrClosed) {
				return ShuttingDown
			}
			log.Printf("Trig %d: poll failed: %v", v.id, err)
		}
		if ok {
			v.remember(cmd)
			switch cmd.Kind {
			case command.Stop:
				return ShuttingDown
			case command.Start:
				v.retrigger()
				continue
			}
		}

		if endOfStream {
			v.rewind()
			log.Printf("Trig %d: end of sample", v.id)
			return IdleWait
		}
	}
}

func (v *Voice) readBlock() (int, error) {
	if v.mod != nil {
		return v.mod.Process(v.block)
	}
	return v.src.ReadBlock(v.block), nil
}

// waitForRoom gets one drop+prepare retry
func (v *Voice) waitForRoom() error {
	err := v.dev.WaitForRoom()
	if err == nil {
		return nil
	}
	log.Printf("Trig %d: wait for room: %v, dropping", v.id, err)
	if derr := v.dev.DropPending(); derr != nil {
		return errors.Join(err, derr)
	}
	return v.dev.WaitForRoom()
}

func (v *Voice) retrigger() {
	v.retriggers.Add(1)
	log.Printf("Trig %d: retrigger", v.id)
	v.rewind()
	if v.dev.State() == output.Running {
		if err := v.dev.DropPending(); err != nil {
			log.Printf("Trig %d: drop failed: %v", v.id, err)
		}
	}
}

func (v *Voice) abort() {
	v.aborts.Add(1)
	v.rewind()
}

func (v *Voice) rewind() {
	v.src.Rewind()
	if v.mod != nil {
		v.mod.Reset()
	}
}

// shutdown releases everything, then acknowledges with Exited
func (v *Voice) shutdown() {
	v.setState(ShuttingDown)
	log.Printf("Trig %d: shutting down", v.id)

	if err := v.src.Close(); err != nil {
		log.Printf("Trig %d: close source: %v", v.id, err)
	}
	if v.conv != nil {
		v.conv.Close()
	}
	if err := v.dev.Close(); err != nil {
		log.Printf("Trig %d: close device: %v", v.id, err)
	}
	if err := v.ch.Close(); err != nil {
		log.Printf("Trig %d: close channel: %v", v.id, err)
	}

	if err := v.ch.Push(command.Command{Kind: command.Exited, Value: v.id}); err != nil {
		log.Printf("Trig %d: post exited: %v", v.id, err)
	}
	v.setState(Terminated)
	log.Printf("Trig %d: exited", v.id)
}

// release frees what init left behind; no Exited is posted
func (v *Voice) release() {
	if err := v.src.Close(); err != nil {
		log.Printf("Trig %d: close source: %v", v.id, err)
	}
	if err := v.ch.Close(); err != nil {
		log.Printf("Trig %d: close channel: %v", v.id, err)
	}
}
