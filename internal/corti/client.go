package corti

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/majedsharif/corti-scribe/internal/config"
	"github.com/majedsharif/corti-scribe/internal/logging"
)

// ErrMissingCredentials is returned when the tenant or client credentials
// are not configured.
var ErrMissingCredentials = errors.New("corti credentials are not configured")

// APIError carries the provider's HTTP status and response body so callers
// can relay failures verbatim.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("corti api: status %d: %s", e.StatusCode, truncate(string(e.Body), 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Client talks to the Corti REST API and dials audio-bridge streams.
// The zero value is not usable; construct with New.
type Client struct {
	cfg  config.CortiConfig
	http *http.Client
	log  *logging.Logger

	baseURL   string
	tokenFunc func(ctx context.Context) (string, error)
}

// New creates a Client authenticated via OAuth2 client credentials against
// the tenant's token endpoint.
func New(cfg config.CortiConfig, log *logging.Logger) (*Client, error) {
	if cfg.Tenant == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL: fmt.Sprintf(
			"https://auth.%s.corti.app/realms/%s/protocol/openid-connect/token",
			cfg.Environment, cfg.Tenant,
		),
	}

	c := &Client{
		cfg:     cfg,
		log:     log.Sub("corti"),
		baseURL: fmt.Sprintf("https://api.%s.corti.app/v2", cfg.Environment),
	}
	c.http = &http.Client{
		Transport: &http.Transport{MaxIdleConnsPerHost: 4},
		Timeout:   30 * time.Second,
	}
	source := cc.TokenSource(context.Background())
	c.tokenFunc = func(ctx context.Context) (string, error) {
		tok, err := source.Token()
		if err != nil {
			return "", fmt.Errorf("fetching access token: %w", err)
		}
		return tok.AccessToken, nil
	}
	return c, nil
}

// CreateInteraction creates a provider interaction record for one encounter
// and returns its id. The descriptor is forwarded as-is; nil sends a minimal
// default encounter.
func (c *Client) CreateInteraction(ctx context.Context, descriptor any) (Interaction, error) {
	if descriptor == nil {
		descriptor = map[string]any{
			"encounter": map[string]any{
				"identifier": fmt.Sprintf("scribe-%d", time.Now().UnixMilli()),
				"status":     "in-progress",
				"type":       "first_consultation",
			},
		}
	}

	var out Interaction
	if err := c.do(ctx, http.MethodPost, "/interactions/", descriptor, &out); err != nil {
		return Interaction{}, err
	}
	if out.InteractionID == "" {
		return Interaction{}, errors.New("corti api: interaction response missing interactionId")
	}
	c.log.Info().Str("interactionId", out.InteractionID).Msg("interaction created")
	return out, nil
}

// ListTemplates returns the tenant's document template catalogue, verbatim.
func (c *Client) ListTemplates(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/templates/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDocument asks the provider to render a document from accumulated
// facts. The response is opaque and returned verbatim.
func (c *Client) CreateDocument(ctx context.Context, interactionID string, req DocumentRequest) (json.RawMessage, error) {
	path := fmt.Sprintf("/interactions/%s/documents/", interactionID)
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do performs one authenticated JSON round trip. Non-2xx responses become
// *APIError carrying the provider's status and body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.tokenFunc(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Tenant-Name", c.cfg.Tenant)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("corti api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("corti api: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: data}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("corti api: decoding response: %w", err)
		}
	}
	return nil
}

// streamURL builds the audio-bridge WebSocket URL for an interaction. The
// access token rides in the query string because browsers and the gorilla
// dialer cannot set headers on the upgrade request uniformly.
func (c *Client) streamURL(interactionID, token string) string {
	base := strings.Replace(c.baseURL, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	// The audio bridge lives beside the REST API, not under /v2.
	base = strings.TrimSuffix(base, "/v2")
	return fmt.Sprintf("%s/audio-bridge/v2/interactions/%s/streams?tenant-name=%s&token=Bearer%%20%s",
		base, interactionID, c.cfg.Tenant, token)
}
