// ABOUTME: WebSocket client for the remote trigger endpoint
// ABOUTME: Sends one request at a time and waits for its ack
package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReplyTimeout bounds the wait for an ack
const DefaultReplyTimeout = 5 * time.Second

// Client is a connected remote
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex

	// ReplyTimeout bounds each request; DefaultReplyTimeout when zero
	ReplyTimeout time.Duration
}

// Dial connects to the endpoint at addr (host:port)
func Dial(ctx context.Context, addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Trigger starts (or retriggers) voice idx
func (c *Client) Trigger(idx int) (Reply, error) {
	return c.request(Request{Type: TypeStart, Voice: idx})
}

// StopAll requests the group shutdown
func (c *Client) StopAll() (Reply, error) {
	return c.request(Request{Type: TypeStopAll})
}

// Voices returns the number of voices on the other side
func (c *Client) Voices() (int, error) {
	reply, err := c.request(Request{Type: TypeVoices})
	if err != nil {
		return 0, err
	}
	return reply.Voices, nil
}

func (c *Client) request(req Request) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	timeout := c.ReplyTimeout
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}

	if err := c.conn.WriteJSON(req); err != nil {
		return Reply{}, fmt.Errorf("send %s: %w", req.Type, err)
	}

	c.conn.SetReadDeadline(time.Now().Add(timeout))
	defer c.conn.SetReadDeadline(time.Time{})

	var reply Reply
	if err := c.conn.ReadJSON(&reply); err != nil {
		return Reply{}, fmt.Errorf("read ack for %s: %w", req.Type, err)
	}
	if reply.Type != TypeAck {
		return reply, fmt.Errorf("expected %s, got %s", TypeAck, reply.Type)
	}
	if !reply.OK {
		return reply, errors.New(reply.Error)
	}
	return reply, nil
}

// Close sends a close frame and closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		log.Printf("Close frame failed: %v", err)
	}
	return c.conn.Close()
}
