// ABOUTME: Named bounded FIFO channels with blocking push and timed pull
// ABOUTME: Requests and responses share a name but never a queue
package command

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// MaxNameLen bounds channel names
const MaxNameLen = 16

// ChannelName returns the conventional name of a voice channel
func ChannelName(prefix string, id int) string {
	return fmt.Sprintf("%s_%d", prefix, id)
}

// Namespace holds open channels by name
type Namespace struct {
	depth int

	mu       sync.Mutex
	channels map[string]*Channel
}

// NewNamespace creates an empty namespace whose channels queue depth messages
func NewNamespace(depth int) *Namespace {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Namespace{
		depth:    depth,
		channels: make(map[string]*Channel),
	}
}

// Open creates the named channel or attaches to the existing one
func (ns *Namespace) Open(name string) (*Channel, error) {
	if !strings.HasPrefix(name, "/") || len(name) < 2 {
		return nil, fmt.Errorf("invalid channel name %q: must start with /", name)
	}
	if len(name) > MaxNameLen {
		return nil, fmt.Errorf("invalid channel name %q: longer than %d bytes", name, MaxNameLen)
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ch, ok := ns.channels[name]; ok {
		return ch, nil
	}

	ch := &Channel{
		name:      name,
		ns:        ns,
		requests:  make(chan Command, ns.depth),
		responses: make(chan Command, ns.depth),
		done:      make(chan struct{}),
	}
	ns.channels[name] = ch
	return ch, nil
}

// Lookup returns the channel if it is still linked
func (ns *Namespace) Lookup(name string) (*Channel, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ch, ok := ns.channels[name]
	return ch, ok
}

// Names lists linked channel names
func (ns *Namespace) Names() []string {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	names := make([]string, 0, len(ns.channels))
	for name := range ns.channels {
		names = append(names, name)
	}
	return names
}

func (ns *Namespace) unlink(ch *Channel) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if cur, ok := ns.channels[ch.name]; ok && cur == ch {
		delete(ns.channels, ch.name)
	}
}

// Channel is a bounded FIFO of commands. Start and Stop travel on the
// request queue; Exited travels on the response queue.
type Channel struct {
	name string
	ns   *Namespace

	requests  chan Command
	responses chan Command

	closeOnce sync.Once
	done      chan struct{}
}

func (c *Channel) Name() string { return c.name }

// Len returns the number of queued requests
func (c *Channel) Len() int { return len(c.requests) }

// Closed reports whether Close has been called
func (c *Channel) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Push stamps cmd and enqueues it. Requests block while the queue is full.
func (c *Channel) Push(cmd Command) error {
	cmd.Timestamp = time.Now()

	if !cmd.Kind.IsRequest() {
		return c.respond(cmd)
	}

	if c.Closed() {
		return fmt.Errorf("push %s on %s: %w", cmd.Kind, c.name, ErrClosed)
	}

	log.Printf("Command push %s: %s", c.name, cmd)
	select {
	case c.requests <- cmd:
		return nil
	case <-c.done:
		return fmt.Errorf("push %s on %s: %w", cmd.Kind, c.name, ErrClosed)
	}
}

// TryPush enqueues a request without blocking
func (c *Channel) TryPush(cmd Command) error {
	cmd.Timestamp = time.Now()

	if !cmd.Kind.IsRequest() {
		return c.respond(cmd)
	}
	if c.Closed() {
		return fmt.Errorf("push %s on %s: %w", cmd.Kind, c.name, ErrClosed)
	}

	select {
	case c.requests <- cmd:
		log.Printf("Command push %s: %s", c.name, cmd)
		return nil
	default:
		return fmt.Errorf("push %s on %s: %w", cmd.Kind, c.name, ErrFull)
	}
}

// responses stay writable after Close so a voice can report its exit
func (c *Channel) respond(cmd Command) error {
	select {
	case c.responses <- cmd:
		log.Printf("Command post %s: %s", c.name, cmd)
		return nil
	default:
		return fmt.Errorf("post %s on %s: %w", cmd.Kind, c.name, ErrFull)
	}
}

// Pull dequeues the next request. A zero timeout polls; a negative
// timeout waits indefinitely. ok is false when the timeout expires.
func (c *Channel) Pull(timeout time.Duration) (cmd Command, ok bool, err error) {
	if c.Closed() {
		return Command{}, false, fmt.Errorf("pull on %s: %w", c.name, ErrClosed)
	}

	if timeout == 0 {
		select {
		case cmd = <-c.requests:
			log.Printf("Command pull %s: %s", c.name, cmd)
			return cmd, true, nil
		default:
			return Command{}, false, nil
		}
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case cmd = <-c.requests:
		log.Printf("Command pull %s: %s", c.name, cmd)
		return cmd, true, nil
	case <-expired:
		return Command{}, false, nil
	case <-c.done:
		return Command{}, false, fmt.Errorf("pull on %s: %w", c.name, ErrClosed)
	}
}

// AwaitResponse waits for the next response such as Exited
func (c *Channel) AwaitResponse(timeout time.Duration) (Command, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case cmd := <-c.responses:
		return cmd, true
	case <-timer.C:
		return Command{}, false
	}
}

// Close stops accepting requests and unlinks the name. Blocked pushers
// return ErrClosed.
func (c *Channel) Close() error {
	err := fmt.Errorf("close %s: %w", c.name, ErrClosed)
	c.closeOnce.Do(func() {
		close(c.done)
		c.ns.unlink(c)
		err = nil
	})
	return err
}
