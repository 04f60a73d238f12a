// ABOUTME: Ring-buffered PCM device implementing the playback state machine
// ABOUTME: Shared by the oto and null backends; sinks consume frames through pull
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sink is a consumer that drains a PCM through pull
type sink interface {
	close() error
}

// PCM is a playback device backed by a ring of Periods periods.
// The writer side is meant for one goroutine; pull may run on another.
type PCM struct {
	id          string
	name        string
	sampleRate  int
	channels    int
	period      int
	periods     int
	waitTimeout time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	ring     *ringBuffer
	state    State
	draining bool
	closed   bool
	stats    Stats
	sink     sink
}

func newPCM(cfg Config, channels int) *PCM {
	p := &PCM{
		id:          uuid.NewString()[:8],
		name:        cfg.Backend,
		sampleRate:  cfg.SampleRate,
		channels:    channels,
		period:      cfg.PeriodFrames,
		periods:     cfg.Periods,
		waitTimeout: cfg.WaitTimeout,
		ring:        newRingBuffer(cfg.PeriodFrames * cfg.Periods * channels),
		state:       Prepared,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *PCM) attach(s sink) {
	p.mu.Lock()
	p.sink = s
	p.mu.Unlock()
}

func (p *PCM) String() string {
	return fmt.Sprintf("%s/%s", p.name, p.id)
}

func (p *PCM) ringTime() time.Duration {
	return time.Duration(p.period*p.periods) * time.Second / time.Duration(p.sampleRate)
}

func (p *PCM) PeriodFrames() int { return p.period }
func (p *PCM) SampleRate() int   { return p.sampleRate }
func (p *PCM) Channels() int     { return p.channels }

func (p *PCM) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *PCM) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// QueuedFrames returns the number of frames waiting to be played
func (p *PCM) QueuedFrames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ring.available() / p.channels
}

func (p *PCM) wake() {
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// WaitForRoom blocks until a full period fits in the ring. It returns
// immediately when the device is not running since Write will recover it.
func (p *PCM) WaitForRoom() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.state == Unconfigured {
		return ErrNotPrepared
	}

	need := p.period * p.channels
	if p.ring.free() >= need || p.state != Running {
		return nil
	}

	deadline := time.Now().Add(p.waitTimeout)
	timer := time.AfterFunc(p.waitTimeout, p.wake)
	defer timer.Stop()

	for p.ring.free() < need && p.state == Running && !p.closed {
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s after %v", ErrTimeout, p, p.waitTimeout)
		}
		p.cond.Wait()
	}
	if p.closed {
		return ErrClosed
	}
	return nil
}

// Write queues whole frames from block and returns the number accepted.
// A device in XRUN or SUSPENDED is re-prepared first.
func (p *PCM) Write(block []int16) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.state == Unconfigured {
		return 0
	}

	switch p.state {
	case XRun:
		log.Printf("Output %s: underrun, re-preparing", p)
		p.prepareLocked()
		p.stats.Recoveries++
	case Suspended:
		log.Printf("Output %s: suspended, recovering", p)
		p.prepareLocked()
		p.stats.Recoveries++
	}

	room := p.ring.free() / p.channels
	frames := min(len(block)/p.channels, room)
	n := p.ring.write(block[:frames*p.channels]) / p.channels

	if n > 0 && p.state == Prepared {
		p.state = Running
	}
	p.stats.FramesWritten += int64(n)
	p.cond.Broadcast()
	return n
}

// DropPending discards queued frames and returns to PREPARED
func (p *PCM) DropPending() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.state == Unconfigured {
		return ErrNotPrepared
	}
	p.prepareLocked()
	p.stats.Drops++
	p.cond.Broadcast()
	return nil
}

// Prepare resets the device to PREPARED without counting a drop
func (p *PCM) Prepare() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.prepareLocked()
	p.cond.Broadcast()
	return nil
}

// Suspend moves the device into SUSPENDED, as a system power event would
func (p *PCM) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.state = Suspended
	p.cond.Broadcast()
}

// Resume brings a suspended device back to PREPARED
func (p *PCM) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.state != Suspended {
		return nil
	}
	p.prepareLocked()
	p.cond.Broadcast()
	return nil
}

func (p *PCM) prepareLocked() {
	p.ring.reset()
	p.draining = false
	p.state = Prepared
}

// Close waits for queued frames to play out, then stops the sink
func (p *PCM) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}

	if p.state == Running && p.ring.available() > 0 {
		p.draining = true
		limit := p.ringTime() + p.waitTimeout
		deadline := time.Now().Add(limit)
		timer := time.AfterFunc(limit, p.wake)
		for p.ring.available() > 0 && p.state == Running && time.Now().Before(deadline) {
			p.cond.Wait()
		}
		timer.Stop()
		if p.ring.available() > 0 {
			log.Printf("Output %s: closed with %d frames undrained", p, p.ring.available()/p.channels)
		}
	}

	p.closed = true
	p.draining = false
	p.state = Unconfigured
	p.ring.reset()
	p.cond.Broadcast()
	s := p.sink
	p.mu.Unlock()

	if s != nil {
		return s.close()
	}
	return nil
}

// pull moves up to len(dst)/channels queued frames into dst and returns
// the frame count. The caller plays silence for the remainder. An empty
// ring while running and not draining is an underrun.
func (p *PCM) pull(dst []int16) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.cond.Broadcast()

	if p.state != Running {
		return 0
	}

	frames := len(dst) / p.channels
	n := p.ring.read(dst[:frames*p.channels]) / p.channels
	if n == 0 && frames > 0 && !p.draining {
		p.state = XRun
		p.stats.Underruns++
	}
	return n
}
