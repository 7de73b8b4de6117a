// Package server exposes the browser-facing HTTP and WebSocket surface of
// the scribe gateway.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/majedsharif/corti-scribe/internal/config"
	"github.com/majedsharif/corti-scribe/internal/corti"
	"github.com/majedsharif/corti-scribe/internal/logging"
	"github.com/majedsharif/corti-scribe/internal/metrics"
	"github.com/majedsharif/corti-scribe/internal/relay"
	"github.com/majedsharif/corti-scribe/internal/store"
	"github.com/majedsharif/corti-scribe/internal/version"
)

// maxFrameBytes caps inbound WebSocket payloads from the browser.
const maxFrameBytes = 1 << 20

// CortiAPI is the REST surface the passthrough handlers need.
type CortiAPI interface {
	ListTemplates(ctx context.Context) (json.RawMessage, error)
	CreateDocument(ctx context.Context, interactionID string, req corti.DocumentRequest) (json.RawMessage, error)
}

// Server is the scribe gateway HTTP + WebSocket server.
type Server struct {
	cfg      config.Config
	log      *logging.Logger
	mtr      *metrics.Metrics
	api      CortiAPI
	provider relay.Provider
	db       *store.DB

	metricsHandler http.Handler
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	version        string
}

// Option configures the server.
type Option func(*Server)

// WithStore enables the local encounter archive.
func WithStore(db *store.DB) Option {
	return func(s *Server) { s.db = db }
}

// WithMetrics wires the Prometheus collectors and the /metrics handler.
func WithMetrics(m *metrics.Metrics, handler http.Handler) Option {
	return func(s *Server) {
		s.mtr = m
		s.metricsHandler = handler
	}
}

// WithProvider overrides the relay provider, used by tests.
func WithProvider(p relay.Provider) Option {
	return func(s *Server) { s.provider = p }
}

// WithAPI overrides the REST passthrough client, used by tests.
func WithAPI(api CortiAPI) Option {
	return func(s *Server) { s.api = api }
}

// New creates a gateway server around a Corti client.
func New(cfg config.Config, client *corti.Client, log *logging.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log.Sub("server"),
		version: version.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Server.AllowedOrigins),
		},
	}
	if client != nil {
		s.api = client
		s.provider = providerAdapter{client}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// providerAdapter narrows *corti.Client to the relay.Provider interface.
type providerAdapter struct {
	c *corti.Client
}

func (p providerAdapter) CreateInteraction(ctx context.Context, descriptor any) (corti.Interaction, error) {
	return p.c.CreateInteraction(ctx, descriptor)
}

func (p providerAdapter) OpenStream(ctx context.Context, interactionID string, cfg corti.Configuration) (relay.ProviderStream, error) {
	stream, err := p.c.OpenStream(ctx, interactionID, cfg)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// checkWebSocketOrigin validates the Origin header on upgrade requests.
// Same-origin and non-browser clients (no Origin header) are always allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start listens for HTTP and WebSocket connections. It blocks until the
// context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	handler := withMiddleware(mux, s.log, s.cfg.Server.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Str("environment", s.cfg.Corti.Environment).
		Msg("gateway listening")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket upgrades the connection and runs one recording session
// for its lifetime.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		http.Error(w, "provider not configured", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	ws := newWSClient(conn)
	defer ws.Close()

	session := relay.NewSession(ws, s.provider, relay.Options{
		MaxQueuedFrames: s.cfg.Relay.MaxQueuedFrames,
		ConfigTimeout:   s.cfg.Relay.ConfigTimeout,
		EndTimeout:      s.cfg.Relay.EndTimeout,
		Language:        s.cfg.Relay.PrimaryLanguage,
		OnClosed:        s.archive,
	}, s.log, s.mtr)

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("recording session accepted")

	// Provider setup is deliberately detached from the request context:
	// a browser disconnect must not abort in-flight provider calls, the
	// session winds down gracefully instead.
	if err := session.Start(context.Background()); err != nil {
		return
	}

	s.readLoop(conn, session)
}

// readLoop pumps browser frames into the session until the connection drops.
func (s *Server) readLoop(conn *websocket.Conn, session *relay.Session) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("browser read error")
			}
			session.HandleClientDisconnect()
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			session.HandleClientAudio(data)
		case websocket.TextMessage:
			kind, err := relay.ParseControl(data)
			if err != nil {
				// Malformed control messages are logged, never fatal.
				s.log.Warn().Err(err).Msg("ignoring client message")
				continue
			}
			session.HandleClientControl(kind)
		}
	}
}

// archive persists a finished session to the encounter store, if enabled.
func (s *Server) archive(sum relay.Summary) {
	if s.db == nil || sum.InteractionID == "" {
		return
	}
	facts, err := json.Marshal(sum.Facts)
	if err != nil {
		facts = []byte("[]")
	}
	_, err = s.db.SaveEncounter(store.Encounter{
		InteractionID: sum.InteractionID,
		State:         string(sum.State),
		StartedAt:     sum.StartedAt,
		EndedAt:       sum.EndedAt,
		Transcript:    sum.Transcript,
		Facts:         facts,
		FactCount:     len(sum.Facts),
		Credits:       sum.Credits,
		SentFrames:    sum.SentFrames,
	})
	if err != nil {
		s.log.Error().Err(err).Str("interactionId", sum.InteractionID).Msg("archiving encounter failed")
	}
}
