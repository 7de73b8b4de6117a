package corti

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/majedsharif/corti-scribe/internal/logging"
)

// ErrStreamClosed is returned when sending on a closed stream.
var ErrStreamClosed = errors.New("stream is closed")

// Stream is one live audio-bridge session. Messages from the bridge are
// delivered on Events(); the channel closes when the provider connection
// closes for any reason.
type Stream struct {
	conn   *websocket.Conn
	events chan StreamMessage
	log    *logging.Logger

	writeMu sync.Mutex
	closed  bool

	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// OpenStream dials the audio bridge for an interaction, sends the stream
// configuration, and starts the read pump. The returned Stream is live but
// audio must not be sent until the bridge acknowledges the configuration.
func (c *Client) OpenStream(ctx context.Context, interactionID string, cfg Configuration) (*Stream, error) {
	token, err := c.tokenFunc(ctx)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL(interactionID, token), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing audio bridge: %w", err)
	}

	s := &Stream{
		conn:   conn,
		events: make(chan StreamMessage, 64),
		log:    c.log.Sub("stream").With("interactionId", interactionID),
	}

	if err := s.writeJSON(StreamConfig{Type: "config", Configuration: cfg}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending stream config: %w", err)
	}

	go s.readLoop()
	return s, nil
}

// DefaultConfiguration returns the fixed session configuration used by the
// relay: single-channel transcription with fact extraction. The locale is a
// server-side setting, never derived from the browser.
func DefaultConfiguration(language string) Configuration {
	if language == "" {
		language = "en"
	}
	return Configuration{
		Transcription: Transcription{
			PrimaryLanguage: language,
			IsDiarization:   false,
			IsMultichannel:  false,
			Participants:    []ParticipantConfig{{Channel: 0, Role: "multiple"}},
		},
		Mode: Mode{Type: "facts", OutputLocale: language},
	}
}

// SendAudio forwards one binary audio frame to the bridge.
func (s *Stream) SendAudio(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("sending audio frame: %w", err)
	}
	return nil
}

// SendFlush asks the bridge to process buffered audio immediately.
func (s *Stream) SendFlush() error {
	return s.writeJSON(map[string]string{"type": "flush"})
}

// SendEnd requests graceful termination. The bridge finishes processing
// buffered audio and replies with an ENDED message before closing.
func (s *Stream) SendEnd() error {
	return s.writeJSON(map[string]string{"type": "end"})
}

// Events returns the stream's inbound message channel. It is closed when the
// provider connection closes; Err reports the terminal error, if any.
func (s *Stream) Events() <-chan StreamMessage {
	return s.events
}

// Err returns the first non-benign error observed on the connection.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close tears down the provider connection. Safe to call repeatedly.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.closed = true
		s.writeMu.Unlock()
		s.conn.Close()
	})
	return nil
}

func (s *Stream) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	return s.conn.WriteJSON(v)
}

func (s *Stream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// readLoop pumps bridge messages into the events channel until the
// connection dies. Malformed payloads are logged and skipped.
func (s *Stream) readLoop() {
	defer close(s.events)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("reading bridge message: %w", err))
			return
		}

		var msg StreamMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warn().Err(err).Msg("unparseable bridge message")
			continue
		}
		if msg.Type == "" {
			continue
		}
		s.events <- msg
	}
}
