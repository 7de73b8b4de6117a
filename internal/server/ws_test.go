package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majedsharif/corti-scribe/internal/corti"
	"github.com/majedsharif/corti-scribe/internal/logging"
	"github.com/majedsharif/corti-scribe/internal/relay"
	"github.com/majedsharif/corti-scribe/internal/store"
)

type stubStream struct {
	mu     sync.Mutex
	frames [][]byte
	ends   int

	events    chan corti.StreamMessage
	closeOnce sync.Once
}

func newStubStream() *stubStream {
	return &stubStream{events: make(chan corti.StreamMessage, 16)}
}

func (s *stubStream) SendAudio(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, append([]byte(nil), frame...))
	return nil
}

func (s *stubStream) SendFlush() error { return nil }

func (s *stubStream) SendEnd() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ends++
	return nil
}

func (s *stubStream) Events() <-chan corti.StreamMessage { return s.events }

func (s *stubStream) Close() error {
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

func (s *stubStream) sentFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

type stubProvider struct {
	stream *stubStream
}

func (p *stubProvider) CreateInteraction(ctx context.Context, descriptor any) (corti.Interaction, error) {
	return corti.Interaction{InteractionID: "int-ws"}, nil
}

func (p *stubProvider) OpenStream(ctx context.Context, interactionID string, cfg corti.Configuration) (relay.ProviderStream, error) {
	return p.stream, nil
}

// dialWS connects to the test server's /ws endpoint.
func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := strings.Replace(ts.URL, "http://", "ws://", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads one JSON message from the relay and returns its decoded
// form keyed by type.
func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocketRecordingSession(t *testing.T) {
	db, err := store.Open(":memory:", logging.New(io.Discard, "error", "json"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stream := newStubStream()
	_, ts := newTestServer(t, WithProvider(&stubProvider{stream: stream}), WithStore(db))

	conn := dialWS(t, ts)

	msg := readMessage(t, conn)
	assert.Equal(t, relay.TypeSessionStarted, msg["type"])
	assert.Equal(t, "int-ws", msg["interactionId"])

	// Audio sent before acceptance is queued server-side.
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("f1")))

	stream.events <- corti.StreamMessage{Type: corti.MsgConfigAccepted}
	msg = readMessage(t, conn)
	assert.Equal(t, relay.TypeConfigAccepted, msg["type"])

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("f2")))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("f3")))

	require.Eventually(t, func() bool {
		return len(stream.sentFrames()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, [][]byte{[]byte("f1"), []byte("f2"), []byte("f3")}, stream.sentFrames())

	// Malformed control messages are ignored, not fatal.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"reboot"}`)))

	stream.events <- corti.StreamMessage{Type: corti.MsgTranscript, Transcripts: []corti.TranscriptItem{{
		ID:         "s1",
		Transcript: "hello doctor",
		Final:      true,
	}}}
	msg = readMessage(t, conn)
	require.Equal(t, relay.TypeTranscript, msg["type"])
	data := msg["data"].(map[string]any)
	assert.Equal(t, "hello doctor", data["text"])

	stream.events <- corti.StreamMessage{Type: corti.MsgFacts, Facts: []corti.Fact{
		{ID: "1", Text: "greeting", Group: "other"},
	}}
	msg = readMessage(t, conn)
	require.Equal(t, relay.TypeFacts, msg["type"])
	assert.Len(t, msg["facts"], 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"end"}`)))
	stream.events <- corti.StreamMessage{Type: corti.MsgEnded}

	msg = readMessage(t, conn)
	assert.Equal(t, relay.TypeEnded, msg["type"])

	// The relay closes the connection after ended.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	// The finished session lands in the encounter archive.
	require.Eventually(t, func() bool {
		_, err := db.GetEncounter("int-ws")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	encounter, err := db.GetEncounter("int-ws")
	require.NoError(t, err)
	assert.Equal(t, "closed", encounter.State)
	assert.Equal(t, "hello doctor", encounter.Transcript)
	assert.Equal(t, 1, encounter.FactCount)
	assert.Equal(t, int64(3), encounter.SentFrames)
}

func TestWebSocketClientDisconnectEndsSession(t *testing.T) {
	stream := newStubStream()
	_, ts := newTestServer(t, WithProvider(&stubProvider{stream: stream}))

	conn := dialWS(t, ts)
	readMessage(t, conn) // session_started
	stream.events <- corti.StreamMessage{Type: corti.MsgConfigAccepted}
	readMessage(t, conn) // CONFIG_ACCEPTED

	require.NoError(t, conn.Close())

	// The relay requests graceful termination from the provider.
	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return stream.ends == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketUnavailableWithoutProvider(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCheckWebSocketOrigin(t *testing.T) {
	check := checkWebSocketOrigin([]string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req), "non-browser clients send no Origin")

	req.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))

	wildcard := checkWebSocketOrigin([]string{"*"})
	req.Header.Set("Origin", "http://anything.example")
	assert.True(t, wildcard(req))
}
