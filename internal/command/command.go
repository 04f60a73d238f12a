// ABOUTME: Command messages exchanged between the dispatcher and voices
// ABOUTME: Tagged request/response kinds with payload and timestamp
package command

import (
	"errors"
	"fmt"
	"time"
)

// DefaultDepth is the number of messages a channel queues before Push blocks
const DefaultDepth = 10

var (
	// ErrClosed is returned when the channel has been closed
	ErrClosed = errors.New("command channel closed")
	// ErrFull is returned by non-blocking pushes on a full queue
	ErrFull = errors.New("command channel full")
)

// Kind identifies a command
type Kind int

const (
	// Start (re)starts playback of a voice
	Start Kind = iota
	// Stop shuts a voice down
	Stop
	// Exited is posted by a voice once its resources are released
	Exited
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Stop:
		return "stop"
	case Exited:
		return "exited"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsRequest reports whether the kind travels dispatcher to voice
func (k Kind) IsRequest() bool {
	return k == Start || k == Stop
}

// Command is a single message on a channel
type Command struct {
	Kind      Kind
	Value     int
	Aux       int
	Timestamp time.Time
}

func (c Command) String() string {
	return fmt.Sprintf("%s(%d,%d)@%s", c.Kind, c.Value, c.Aux, c.Timestamp.Format("15:04:05.000"))
}

// Age returns how long ago the command was pushed
func (c Command) Age() time.Duration {
	if c.Timestamp.IsZero() {
		return 0
	}
	return time.Since(c.Timestamp)
}
