// ABOUTME: Tests for the remote trigger endpoint and client
// ABOUTME: Runs the server under httptest against a recording controller
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeController struct {
	mu        sync.Mutex
	voices    int
	triggered []int
	quits     int
}

func (f *fakeController) Trigger(idx int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < 0 || idx >= f.voices {
		return fmt.Errorf("unknown voice: %d", idx)
	}
	f.triggered = append(f.triggered, idx)
	return nil
}

func (f *fakeController) Len() int { return f.voices }

func (f *fakeController) RequestQuit() {
	f.mu.Lock()
	f.quits++
	f.mu.Unlock()
}

func startServer(t *testing.T, ctrl *fakeController) (*Server, string) {
	t.Helper()
	srv := NewServer(Config{}, ctrl)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, strings.TrimPrefix(ts.URL, "http://")
}

func dial(t *testing.T, addr string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, addr)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestTrigger(t *testing.T) {
	ctrl := &fakeController{voices: 3}
	srv, addr := startServer(t, ctrl)
	c := dial(t, addr)

	for _, idx := range []int{0, 2, 0} {
		reply, err := c.Trigger(idx)
		if err != nil {
			t.Fatalf("Trigger(%d) failed: %v", idx, err)
		}
		if !reply.OK || reply.Voices != 3 {
			t.Errorf("unexpected reply %+v", reply)
		}
		if reply.Instance != srv.InstanceID() {
			t.Errorf("expected instance %s, got %s", srv.InstanceID(), reply.Instance)
		}
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	want := []int{0, 2, 0}
	if len(ctrl.triggered) != len(want) {
		t.Fatalf("expected %v triggered, got %v", want, ctrl.triggered)
	}
	for i := range want {
		if ctrl.triggered[i] != want[i] {
			t.Errorf("trigger %d: expected voice %d, got %d", i, want[i], ctrl.triggered[i])
		}
	}
}

func TestTriggerRejected(t *testing.T) {
	ctrl := &fakeController{voices: 2}
	_, addr := startServer(t, ctrl)
	c := dial(t, addr)

	reply, err := c.Trigger(5)
	if err == nil {
		t.Fatal("expected error for unknown voice")
	}
	if reply.OK || !strings.Contains(reply.Error, "unknown voice") {
		t.Errorf("unexpected reply %+v", reply)
	}

	// Connection stays usable after a rejected request
	if _, err := c.Trigger(1); err != nil {
		t.Errorf("Trigger(1) failed: %v", err)
	}
}

func TestVoicesAndStopAll(t *testing.T) {
	ctrl := &fakeController{voices: 4}
	_, addr := startServer(t, ctrl)
	c := dial(t, addr)

	n, err := c.Voices()
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 voices, got %d", n)
	}

	if _, err := c.StopAll(); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	ctrl.mu.Lock()
	quits := ctrl.quits
	ctrl.mu.Unlock()
	if quits != 1 {
		t.Errorf("expected one quit request, got %d", quits)
	}
}

func TestMalformedRequests(t *testing.T) {
	ctrl := &fakeController{voices: 1}
	_, addr := startServer(t, ctrl)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+Path, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "trigger 0"},
		{"unknown type", `{"type":"voice/pause","voice":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)); err != nil {
				t.Fatalf("write: %v", err)
			}
			var reply Reply
			if err := conn.ReadJSON(&reply); err != nil {
				t.Fatalf("read: %v", err)
			}
			if reply.Type != TypeAck || reply.OK || reply.Error == "" {
				t.Errorf("expected failed ack, got %+v", reply)
			}
		})
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ctrl := &fakeController{voices: 1}
	srv := NewServer(Config{InstanceID: "test-instance"}, ctrl)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	c := dial(t, ln.Addr().String())
	if reply, err := c.Trigger(0); err != nil || reply.Instance != "test-instance" {
		t.Fatalf("Trigger failed: %+v %v", reply, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	// Open connections are dropped on shutdown
	c.ReplyTimeout = 500 * time.Millisecond
	if _, err := c.Trigger(0); err == nil {
		t.Error("expected error on a closed connection")
	}
}

func TestRunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	srv := NewServer(Config{Port: port}, &fakeController{})
	err = srv.Run(context.Background())
	if err == nil {
		t.Fatal("expected listen error on a busy port")
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Errorf("expected net.OpError, got %T: %v", err, err)
	}
}
