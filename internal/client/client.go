package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/majedsharif/corti-scribe/internal/logging"
	"github.com/majedsharif/corti-scribe/internal/relay"
)

// Client is a headless browser: it dials the relay's /ws endpoint, mirrors
// server messages into a State, and can play a raw PCM file as microphone
// input.
type Client struct {
	conn *websocket.Conn
	log  *logging.Logger

	mu    sync.Mutex
	state *State

	writeMu sync.Mutex

	done chan struct{}
}

// Dial connects to a running scribe gateway.
func Dial(ctx context.Context, url string, log *logging.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	c := &Client{
		conn:  conn,
		log:   log.Sub("client"),
		state: NewState(),
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// readLoop mirrors inbound messages until the connection closes.
func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Msg("connection closed")
			}
			return
		}

		c.mu.Lock()
		kind, err := c.state.Apply(raw)
		c.mu.Unlock()
		if err != nil {
			c.log.Warn().Err(err).Msg("unparseable relay message")
			continue
		}
		c.log.Debug().Str("type", kind).Msg("relay message")
	}
}

// Snapshot returns a copy of the mirrored state.
func (c *Client) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.state
}

// WithState runs fn against the live state under the client's lock, for
// reads that need the transcript accessors.
func (c *Client) WithState(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.state)
}

// SendAudio sends one binary audio frame.
func (c *Client) SendAudio(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// SendControl sends a {"type": kind} control message.
func (c *Client) SendControl(kind string) error {
	payload, err := json.Marshal(map[string]string{"type": kind})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// End requests graceful termination and waits for the relay to finish or the
// context to expire.
func (c *Client) End(ctx context.Context) error {
	if err := c.SendControl(relay.ControlEnd); err != nil {
		return err
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done closes when the server connection has closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// StreamFile plays a raw 16-bit PCM file into the session at real-time pace,
// reporting the audio level per frame through onLevel (may be nil). Frames
// are sent immediately; the relay queues anything that arrives before the
// provider accepts the configuration.
func (c *Client) StreamFile(ctx context.Context, path string, frameBytes int, interval time.Duration, onLevel func(float64)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, frameBytes)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			frame := buf[:n]
			if sendErr := c.SendAudio(frame); sendErr != nil {
				return fmt.Errorf("sending audio: %w", sendErr)
			}
			if onLevel != nil {
				onLevel(Level(frame))
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		}
	}
}
