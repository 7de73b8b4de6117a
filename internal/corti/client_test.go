package corti

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majedsharif/corti-scribe/internal/config"
	"github.com/majedsharif/corti-scribe/internal/logging"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{
		cfg:       config.CortiConfig{Environment: "eu", Tenant: "acme"},
		http:      srv.Client(),
		log:       logging.New(io.Discard, "error", "json").Sub("corti"),
		baseURL:   srv.URL + "/v2",
		tokenFunc: func(ctx context.Context) (string, error) { return "test-token", nil },
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	log := logging.New(io.Discard, "error", "json")
	_, err := New(config.CortiConfig{Environment: "eu", Tenant: "acme"}, log)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = New(config.CortiConfig{Environment: "eu", Tenant: "acme", ClientID: "id", ClientSecret: "secret"}, log)
	assert.NoError(t, err)
}

func TestCreateInteraction(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/interactions/", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "acme", r.Header.Get("Tenant-Name"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"interactionId":"int-9"}`)
	}))
	defer srv.Close()

	out, err := testClient(srv).CreateInteraction(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "int-9", out.InteractionID)

	// nil descriptor sends a minimal in-progress encounter
	encounter, ok := gotBody["encounter"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "in-progress", encounter["status"])
}

func TestCreateInteractionMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	_, err := testClient(srv).CreateInteraction(context.Background(), nil)
	assert.Error(t, err)
}

func TestAPIErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"error":"templateKey unknown"}`)
	}))
	defer srv.Close()

	_, err := testClient(srv).CreateDocument(context.Background(), "int-1", DocumentRequest{
		TemplateKey:    "bogus",
		OutputLanguage: "en",
	})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.JSONEq(t, `{"error":"templateKey unknown"}`, string(apiErr.Body))
}

func TestListTemplatesReturnsBodyVerbatim(t *testing.T) {
	const catalogue = `{"templates":[{"key":"soap-note","name":"SOAP Note"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/templates/", r.URL.Path)
		io.WriteString(w, catalogue)
	}))
	defer srv.Close()

	out, err := testClient(srv).ListTemplates(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, catalogue, string(out))
}

func TestCreateDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/interactions/int-7/documents/", r.URL.Path)

		var req DocumentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "soap-note", req.TemplateKey)
		require.Len(t, req.Context, 1)
		assert.Equal(t, "facts", req.Context[0].Type)

		io.WriteString(w, `{"documentId":"doc-1","sections":[]}`)
	}))
	defer srv.Close()

	out, err := testClient(srv).CreateDocument(context.Background(), "int-7", DocumentRequest{
		Context:        []DocumentContext{{Type: "facts", Data: json.RawMessage(`[{"text":"cough"}]`)}},
		TemplateKey:    "soap-note",
		OutputLanguage: "en",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"documentId":"doc-1","sections":[]}`, string(out))
}

func TestStreamURL(t *testing.T) {
	c := &Client{
		cfg:     config.CortiConfig{Environment: "eu", Tenant: "acme"},
		baseURL: "https://api.eu.corti.app/v2",
	}
	got := c.streamURL("int-3", "tok")
	assert.Equal(t,
		"wss://api.eu.corti.app/audio-bridge/v2/interactions/int-3/streams?tenant-name=acme&token=Bearer%20tok",
		got)
}
