// ABOUTME: Routes external triggers to voices and runs the group shutdown
// ABOUTME: Maps keys to voice indices and joins every voice on exit
package dispatch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/maxmbed/sample-trig/internal/command"
)

var (
	// ErrUnknownVoice is returned for indices outside the voice set
	ErrUnknownVoice = errors.New("unknown voice")
	// ErrShutdown is returned once the group shutdown has begun
	ErrShutdown = errors.New("dispatcher shut down")
)

const (
	// DefaultKeys maps keys to voices 0..5 in order
	DefaultKeys = "qsdfgh"
	// DefaultExitKey requests the group shutdown
	DefaultExitKey = 'x'
	// DefaultShutdownTimeout bounds the wait for each voice's Exited
	DefaultShutdownTimeout = time.Second

	ctrlC = 0x03
)

// Voice is the part of a voice the dispatcher needs
type Voice interface {
	ID() int
	Channel() *command.Channel
	Done() <-chan struct{}
}

// Config holds dispatcher settings
type Config struct {
	Keys            string
	ExitKey         rune
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the stock key map
func DefaultConfig() Config {
	return Config{
		Keys:            DefaultKeys,
		ExitKey:         DefaultExitKey,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Dispatcher owns the voice set and posts commands to it
type Dispatcher struct {
	voices []Voice
	keys   map[rune]int
	cfg    Config

	mu       sync.Mutex
	stopping bool

	quitOnce sync.Once
	quit     chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a dispatcher over voices, which it keeps in index order
func New(voices []Voice, cfg Config) (*Dispatcher, error) {
	if cfg.Keys == "" {
		cfg.Keys = DefaultKeys
	}
	if cfg.ExitKey == 0 {
		cfg.ExitKey = DefaultExitKey
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	keys := make(map[rune]int)
	for i, r := range []rune(cfg.Keys) {
		if r == cfg.ExitKey {
			return nil, fmt.Errorf("key %q is both a trigger and the exit key", r)
		}
		if _, dup := keys[r]; dup {
			return nil, fmt.Errorf("key %q mapped twice", r)
		}
		keys[r] = i
	}

	return &Dispatcher{
		voices: voices,
		keys:   keys,
		cfg:    cfg,
		quit:   make(chan struct{}),
	}, nil
}

// Len returns the number of voices
func (d *Dispatcher) Len() int { return len(d.voices) }

// Voices returns the voice set in index order
func (d *Dispatcher) Voices() []Voice { return d.voices }

// KeyFor returns the trigger key of voice idx
func (d *Dispatcher) KeyFor(idx int) (rune, bool) {
	keys := []rune(d.cfg.Keys)
	if idx < 0 || idx >= len(keys) {
		return 0, false
	}
	return keys[idx], true
}

// ExitKey returns the key that requests shutdown
func (d *Dispatcher) ExitKey() rune { return d.cfg.ExitKey }

// Trigger posts Start to voice idx, blocking while its queue is full.
// Indices outside the voice set are rejected before any channel is touched.
func (d *Dispatcher) Trigger(idx int) error {
	v, err := d.target(idx)
	if err != nil {
		return err
	}
	return v.Channel().Push(command.Command{Kind: command.Start, Value: v.ID()})
}

// TryTrigger is Trigger without blocking: a full queue returns
// command.ErrFull and the press is dropped.
func (d *Dispatcher) TryTrigger(idx int) error {
	v, err := d.target(idx)
	if err != nil {
		return err
	}
	return v.Channel().TryPush(command.Command{Kind: command.Start, Value: v.ID()})
}

func (d *Dispatcher) target(idx int) (Voice, error) {
	if idx < 0 || idx >= len(d.voices) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrUnknownVoice, idx, len(d.voices))
	}

	d.mu.Lock()
	stopping := d.stopping
	d.mu.Unlock()
	if stopping {
		return nil, ErrShutdown
	}
	return d.voices[idx], nil
}

// HandleKey maps one key press to an action. quit is true when the key
// requests the group shutdown.
func (d *Dispatcher) HandleKey(r rune) (quit bool, err error) {
	return d.handleKey(r, d.Trigger)
}

// TryHandleKey is HandleKey for callers that must not block, such as
// the TUI event loop
func (d *Dispatcher) TryHandleKey(r rune) (quit bool, err error) {
	return d.handleKey(r, d.TryTrigger)
}

func (d *Dispatcher) handleKey(r rune, trigger func(int) error) (bool, error) {
	switch r {
	case '\n', '\r':
		return false, nil
	case d.cfg.ExitKey, ctrlC:
		d.RequestQuit()
		return true, nil
	}

	idx, ok := d.keys[r]
	if !ok {
		return false, nil
	}
	return false, trigger(idx)
}

// RequestQuit signals Quit without running the shutdown itself
func (d *Dispatcher) RequestQuit() {
	d.quitOnce.Do(func() {
		log.Printf("Dispatcher: quit requested")
		close(d.quit)
	})
}

// Quit is closed once a quit has been requested
func (d *Dispatcher) Quit() <-chan struct{} { return d.quit }

// ReadKeys reads single characters from r until a quit key, EOF or an
// error. EOF requests a quit.
func (d *Dispatcher) ReadKeys(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		ch, _, err := br.ReadRune()
		if err != nil {
			d.RequestQuit()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read keys: %w", err)
		}

		quit, err := d.HandleKey(ch)
		if err != nil {
			log.Printf("Dispatcher: key %q: %v", ch, err)
		}
		if quit {
			return nil
		}
	}
}

// Shutdown stops every voice: Stop is posted to all of them first, then
// each is awaited for Exited and joined, in index order. Later calls
// return the first result.
func (d *Dispatcher) Shutdown() error {
	d.shutdownOnce.Do(func() {
		d.mu.Lock()
		d.stopping = true
		d.mu.Unlock()
		d.RequestQuit()
		d.shutdownErr = d.shutdown()
	})
	return d.shutdownErr
}

func (d *Dispatcher) shutdown() error {
	log.Printf("Dispatcher: stopping %d voices", len(d.voices))

	signalled := make([]bool, len(d.voices))
	var errs []error
	for i, v := range d.voices {
		if isDone(v) {
			continue
		}
		if err := v.Channel().TryPush(command.Command{Kind: command.Stop, Value: v.ID()}); err != nil {
			if errors.Is(err, command.ErrFull) {
				// Voice is busy; a blocking push still lands once it polls
				err = v.Channel().Push(command.Command{Kind: command.Stop, Value: v.ID()})
			}
			if errors.Is(err, command.ErrClosed) {
				// Exited on its own (device open failure); join only
				continue
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("voice %d: %w", i, err))
				continue
			}
		}
		signalled[i] = true
	}

	for i, v := range d.voices {
		if signalled[i] {
			resp, ok := v.Channel().AwaitResponse(d.cfg.ShutdownTimeout)
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("voice %d: no exit acknowledgement within %v", i, d.cfg.ShutdownTimeout))
			case resp.Kind != command.Exited:
				errs = append(errs, fmt.Errorf("voice %d: unexpected response %s", i, resp.Kind))
			}
		}
		<-v.Done()
		log.Printf("Dispatcher: voice %d joined", i)
	}

	return errors.Join(errs...)
}

func isDone(v Voice) bool {
	select {
	case <-v.Done():
		return true
	default:
		return false
	}
}
