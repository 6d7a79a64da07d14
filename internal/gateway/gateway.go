// ABOUTME: Gateway orchestrator that wires sessions, dialogue, backend and the management API
// ABOUTME: Owns startup restore, the idle-conversation sweeper, and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/2389/afrik-gateway/internal/auth"
	"github.com/2389/afrik-gateway/internal/backend"
	"github.com/2389/afrik-gateway/internal/config"
	"github.com/2389/afrik-gateway/internal/conversation"
	"github.com/2389/afrik-gateway/internal/dialogue"
	"github.com/2389/afrik-gateway/internal/messaging"
	"github.com/2389/afrik-gateway/internal/sequencer"
	"github.com/2389/afrik-gateway/internal/session"
	"github.com/2389/afrik-gateway/internal/store"
	"github.com/2389/afrik-gateway/internal/whatsapp"
)

// Gateway orchestrates the afrik-gateway components.
type Gateway struct {
	config        *config.Config
	store         store.Store
	backend       *backend.Client
	conversations *conversation.Store
	sequencer     *sequencer.Sequencer
	engine        *dialogue.Engine
	supervisor    *session.Supervisor
	guard         *auth.Guard
	globalLimit   *ipLimiter
	instanceLimit *ipLimiter
	httpServer    *http.Server
	logger        *slog.Logger

	startedAt time.Time
	now       func() time.Time
}

// initStore opens the instance registry. AFRIK_DB_PATH overrides the config.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("AFRIK_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Gateway backed by WhatsApp sessions under cfg.Sessions.Dir.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	dialer, err := whatsapp.NewDialer(cfg.Sessions.Dir, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	gw, err := assemble(cfg, s, dialer, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// assemble wires every component around the given store and dialer.
func assemble(cfg *config.Config, s store.Store, dialer session.Dialer, logger *slog.Logger) (*Gateway, error) {
	var verifier *auth.JWTVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		verifier = v
	}

	be := backend.New(backend.Config{
		BaseURL:        cfg.Backend.BaseURL,
		MaxRetries:     cfg.Backend.MaxRetries,
		RetryBaseDelay: cfg.Backend.RetryBaseDelay,
		Timeout:        cfg.Backend.Timeout,
	}, logger)

	conversations := conversation.NewStore()
	seq := sequencer.New(logger)
	engine := dialogue.NewEngine(conversations, be, seq, dialogue.Config{
		PresenceDelay:       cfg.Dialogue.PresenceDelay,
		CardPause:           cfg.Dialogue.CardPause,
		PollInterval:        cfg.Dialogue.PollInterval,
		PollMaxAttempts:     cfg.Dialogue.PollMaxAttempts,
		PollCallTimeout:     cfg.Dialogue.PollCallTimeout,
		ProjectRefreshDelay: cfg.Dialogue.ProjectRefreshDelay,
	}, logger)
	dispatcher := dialogue.NewDispatcher(engine, seq)

	supervisor := session.NewSupervisor(dialer, s, func(in messaging.Inbound) {
		dispatcher.Dispatch(in)
	}, session.Config{
		MaxSessions:    cfg.Sessions.MaxSessions,
		SetupTimeout:   cfg.Sessions.SetupTimeout,
		ReconnectBase:  cfg.Sessions.ReconnectBase,
		ReconnectMax:   cfg.Sessions.ReconnectMax,
		DedupeTTL:      cfg.Sessions.DedupeTTL,
		DedupeCapacity: cfg.Sessions.DedupeCapacity,
	}, logger)

	gw := &Gateway{
		config:        cfg,
		store:         s,
		backend:       be,
		conversations: conversations,
		sequencer:     seq,
		engine:        engine,
		supervisor:    supervisor,
		guard:         auth.NewGuard(cfg.Auth.APIKey, verifier, logger),
		globalLimit: newIPLimiter(cfg.RateLimit.GlobalRequests, cfg.RateLimit.GlobalWindow,
			"Too many requests, please try again later."),
		instanceLimit: newIPLimiter(cfg.RateLimit.InstanceRequests, cfg.RateLimit.InstanceWindow,
			"Too many instance operations, please slow down."),
		logger:    logger.With("component", "gateway"),
		startedAt: time.Now(),
		now:       time.Now,
	}

	mux := http.NewServeMux()
	gw.registerRoutes(mux)
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.globalLimit.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return gw, nil
}

// Handler returns the management API handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run restores persisted sessions, serves the management API and blocks
// until ctx is canceled or the server fails, then shuts down.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.serve(ctx, ln)
}

func (g *Gateway) serve(ctx context.Context, ln net.Listener) error {
	if _, err := g.supervisor.RestoreAll(ctx); err != nil {
		g.logger.Error("restoring sessions failed", "error", err)
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go g.sweepConversations(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("management API listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.config.Server.ShutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// sweepConversations evicts conversation state idle longer than the configured expiry.
func (g *Gateway) sweepConversations(ctx context.Context) {
	ticker := time.NewTicker(g.config.Dialogue.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.conversations.Sweep(g.config.Dialogue.IdleExpiry); n > 0 {
				g.logger.Info("evicted idle conversations", "count", n, "remaining", g.conversations.Len())
			}
		}
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the API, disconnects sessions without logging them out,
// stops payment polling, drains in-flight dialogue turns and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "session shutdown", g.supervisor.Shutdown(ctx))
	g.engine.Close()
	errs = appendCloseError(errs, "sequencer drain", g.sequencer.Close(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())
	return errors.Join(errs...)
}
