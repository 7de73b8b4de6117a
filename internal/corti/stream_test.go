package corti

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majedsharif/corti-scribe/internal/config"
	"github.com/majedsharif/corti-scribe/internal/logging"
)

// bridgeServer emulates the audio bridge: it verifies the config message,
// acknowledges it, echoes audio frame sizes, and confirms termination.
func bridgeServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme", r.URL.Query().Get("tenant-name"))
		assert.Equal(t, "Bearer test-token", r.URL.Query().Get("token"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// First message must be the stream configuration.
		var cfg StreamConfig
		require.NoError(t, conn.ReadJSON(&cfg))
		assert.Equal(t, "config", cfg.Type)
		assert.Equal(t, "en", cfg.Configuration.Transcription.PrimaryLanguage)

		require.NoError(t, conn.WriteJSON(StreamMessage{Type: MsgConfigAccepted}))

		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				conn.WriteJSON(StreamMessage{Type: MsgTranscript, Transcripts: []TranscriptItem{{
					ID:         "s1",
					Transcript: "heard audio",
					Final:      true,
				}}})
				continue
			}

			var ctl map[string]string
			if err := json.Unmarshal(payload, &ctl); err != nil {
				continue
			}
			if ctl["type"] == "end" {
				conn.WriteJSON(StreamMessage{Type: MsgEnded})
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}))
}

func streamTestClient(srv *httptest.Server) *Client {
	return &Client{
		cfg:       config.CortiConfig{Environment: "eu", Tenant: "acme"},
		http:      srv.Client(),
		log:       logging.New(io.Discard, "error", "json").Sub("corti"),
		baseURL:   srv.URL + "/v2",
		tokenFunc: func(ctx context.Context) (string, error) { return "test-token", nil },
	}
}

func nextEvent(t *testing.T, s *Stream) StreamMessage {
	t.Helper()
	select {
	case msg, ok := <-s.Events():
		require.True(t, ok, "event channel closed unexpectedly")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bridge event")
		return StreamMessage{}
	}
}

func TestStreamLifecycle(t *testing.T) {
	srv := bridgeServer(t)
	defer srv.Close()

	stream, err := streamTestClient(srv).OpenStream(context.Background(), "int-1", DefaultConfiguration("en"))
	require.NoError(t, err)
	defer stream.Close()

	msg := nextEvent(t, stream)
	assert.Equal(t, MsgConfigAccepted, msg.Type)

	require.NoError(t, stream.SendAudio([]byte{0x01, 0x02, 0x03}))
	msg = nextEvent(t, stream)
	require.Equal(t, MsgTranscript, msg.Type)
	require.Len(t, msg.TranscriptBatch(), 1)
	assert.Equal(t, "heard audio", msg.TranscriptBatch()[0].Transcript)

	require.NoError(t, stream.SendEnd())
	msg = nextEvent(t, stream)
	assert.Equal(t, MsgEnded, msg.Type)

	select {
	case _, ok := <-stream.Events():
		assert.False(t, ok, "channel must close after the bridge disconnects")
	case <-time.After(2 * time.Second):
		t.Fatal("event channel never closed")
	}
	assert.NoError(t, stream.Err(), "a normal closure is not an error")
}

func TestStreamSendAfterClose(t *testing.T) {
	srv := bridgeServer(t)
	defer srv.Close()

	stream, err := streamTestClient(srv).OpenStream(context.Background(), "int-1", DefaultConfiguration("en"))
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	assert.ErrorIs(t, stream.SendAudio([]byte{0x01}), ErrStreamClosed)
	assert.ErrorIs(t, stream.SendEnd(), ErrStreamClosed)
	assert.NoError(t, stream.Close(), "close is idempotent")
}

func TestOpenStreamDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no upgrade here", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := streamTestClient(srv).OpenStream(context.Background(), "int-1", DefaultConfiguration("en"))
	assert.Error(t, err)
}
