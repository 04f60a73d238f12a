// ABOUTME: Tests for trigger dispatch and group shutdown
// ABOUTME: Uses stub voices that answer Stop with Exited over real channels
package dispatch

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maxmbed/sample-trig/internal/command"
)

type stubVoice struct {
	id     int
	ch     *command.Channel
	done   chan struct{}
	starts atomic.Int32
	silent bool // exit without acknowledging
}

func (v *stubVoice) ID() int                   { return v.id }
func (v *stubVoice) Channel() *command.Channel { return v.ch }
func (v *stubVoice) Done() <-chan struct{}     { return v.done }

func (v *stubVoice) run() {
	defer close(v.done)
	for {
		cmd, ok, err := v.ch.Pull(time.Second)
		if err != nil {
			return
		}
		if !ok {
			continue
		}
		switch cmd.Kind {
		case command.Start:
			v.starts.Add(1)
		case command.Stop:
			v.ch.Close()
			if !v.silent {
				v.ch.Push(command.Command{Kind: command.Exited, Value: v.id})
			}
			return
		}
	}
}

func newStubs(t *testing.T, ns *command.Namespace, n int) []*stubVoice {
	t.Helper()
	stubs := make([]*stubVoice, n)
	for i := range stubs {
		ch, err := ns.Open(command.ChannelName("/trigger", i))
		if err != nil {
			t.Fatalf("open channel: %v", err)
		}
		stubs[i] = &stubVoice{id: i, ch: ch, done: make(chan struct{})}
	}
	return stubs
}

func startAll(stubs []*stubVoice) []Voice {
	voices := make([]Voice, len(stubs))
	for i, s := range stubs {
		go s.run()
		voices[i] = s
	}
	return voices
}

func newDispatcher(t *testing.T, voices []Voice) *Dispatcher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ShutdownTimeout = 200 * time.Millisecond
	d, err := New(voices, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func waitStarts(t *testing.T, v *stubVoice, want int32) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for v.starts.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("voice %d: expected %d starts, got %d", v.id, want, v.starts.Load())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTriggerOutOfRange(t *testing.T) {
	ns := command.NewNamespace(0)
	stubs := newStubs(t, ns, 2)
	voices := make([]Voice, len(stubs))
	for i, s := range stubs {
		voices[i] = s
	}
	d := newDispatcher(t, voices)

	for _, idx := range []int{-1, 2, 5} {
		if err := d.Trigger(idx); !errors.Is(err, ErrUnknownVoice) {
			t.Errorf("Trigger(%d): expected ErrUnknownVoice, got %v", idx, err)
		}
	}
	for i, s := range stubs {
		if s.ch.Len() != 0 {
			t.Errorf("voice %d: expected untouched channel, got %d queued", i, s.ch.Len())
		}
	}
}

func TestTryHandleKeyFullQueue(t *testing.T) {
	ns := command.NewNamespace(2)
	stubs := newStubs(t, ns, 1)
	d := newDispatcher(t, []Voice{stubs[0]})

	// Nobody pulls, so the third press finds the queue full
	for i := 0; i < 2; i++ {
		if _, err := d.TryHandleKey('q'); err != nil {
			t.Fatalf("press %d: %v", i, err)
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.TryHandleKey('q')
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, command.ErrFull) {
			t.Errorf("expected ErrFull, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("TryHandleKey blocked on a full queue")
	}

	if quit, err := d.TryHandleKey('x'); !quit || err != nil {
		t.Errorf("expected quit from exit key, got %v %v", quit, err)
	}
	if err := d.TryTrigger(3); !errors.Is(err, ErrUnknownVoice) {
		t.Errorf("expected ErrUnknownVoice, got %v", err)
	}
}

func TestHandleKey(t *testing.T) {
	ns := command.NewNamespace(0)
	stubs := newStubs(t, ns, 2)
	d := newDispatcher(t, startAll(stubs))
	defer d.Shutdown()

	tests := []struct {
		name    string
		key     rune
		quit    bool
		wantErr error
	}{
		{"voice 0", 'q', false, nil},
		{"voice 1", 's', false, nil},
		{"newline ignored", '\n', false, nil},
		{"unknown ignored", 'z', false, nil},
		{"beyond voice count", 'h', false, ErrUnknownVoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quit, err := d.HandleKey(tt.key)
			if quit != tt.quit {
				t.Errorf("expected quit=%v, got %v", tt.quit, quit)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	waitStarts(t, stubs[0], 1)
	waitStarts(t, stubs[1], 1)

	quit, err := d.HandleKey('x')
	if !quit || err != nil {
		t.Errorf("expected exit key to quit, got quit=%v err=%v", quit, err)
	}
	select {
	case <-d.Quit():
	default:
		t.Error("expected Quit to be closed")
	}
}

func TestReadKeys(t *testing.T) {
	ns := command.NewNamespace(0)
	stubs := newStubs(t, ns, 3)
	d := newDispatcher(t, startAll(stubs))
	defer d.Shutdown()

	if err := d.ReadKeys(strings.NewReader("qq\ns d\nxq")); err != nil {
		t.Fatalf("ReadKeys failed: %v", err)
	}

	waitStarts(t, stubs[0], 2)
	waitStarts(t, stubs[1], 1)
	waitStarts(t, stubs[2], 1)

	// Keys after the exit key are not read
	time.Sleep(10 * time.Millisecond)
	if got := stubs[0].starts.Load(); got != 2 {
		t.Errorf("expected 2 starts on voice 0, got %d", got)
	}
}

func TestReadKeysEOFQuits(t *testing.T) {
	d := newDispatcher(t, nil)
	if err := d.ReadKeys(strings.NewReader("q")); err != nil {
		t.Fatalf("ReadKeys failed: %v", err)
	}
	select {
	case <-d.Quit():
	default:
		t.Error("expected EOF to request quit")
	}
}

func TestShutdownJoinsAll(t *testing.T) {
	ns := command.NewNamespace(0)
	stubs := newStubs(t, ns, 4)
	d := newDispatcher(t, startAll(stubs))

	if err := d.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	for i, s := range stubs {
		select {
		case <-s.done:
		default:
			t.Errorf("voice %d not joined", i)
		}
	}
	if names := ns.Names(); len(names) != 0 {
		t.Errorf("expected every channel unlinked, got %v", names)
	}

	if err := d.Trigger(0); !errors.Is(err, ErrShutdown) {
		t.Errorf("expected ErrShutdown after shutdown, got %v", err)
	}
	if err := d.Shutdown(); err != nil {
		t.Errorf("expected repeated Shutdown to return the first result, got %v", err)
	}
}

func TestShutdownSkipsExitedVoice(t *testing.T) {
	ns := command.NewNamespace(0)
	stubs := newStubs(t, ns, 2)

	// Voice 1 died during setup
	stubs[1].ch.Close()
	close(stubs[1].done)

	go stubs[0].run()
	d := newDispatcher(t, []Voice{stubs[0], stubs[1]})

	if err := d.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestShutdownMissingAcknowledgement(t *testing.T) {
	ns := command.NewNamespace(0)
	stubs := newStubs(t, ns, 2)
	stubs[1].silent = true
	d := newDispatcher(t, startAll(stubs))

	err := d.Shutdown()
	if err == nil || !strings.Contains(err.Error(), "voice 1") {
		t.Fatalf("expected error naming voice 1, got %v", err)
	}
	<-stubs[1].done
}

func TestNewRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"duplicate", Config{Keys: "qq", ExitKey: 'x'}},
		{"exit key in map", Config{Keys: "qx", ExitKey: 'x'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(nil, tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestKeyFor(t *testing.T) {
	d := newDispatcher(t, nil)
	if r, ok := d.KeyFor(2); !ok || r != 'd' {
		t.Errorf("expected 'd' for voice 2, got %q %v", r, ok)
	}
	if _, ok := d.KeyFor(6); ok {
		t.Error("expected no key beyond the key map")
	}
}
