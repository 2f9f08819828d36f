// Package gateway exposes the conversation service over HTTP: message
// append, context windows, summarization, history clearing, and a WebSocket
// event feed, plus health and Prometheus metrics endpoints.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/convocore/internal/conversation"
	"github.com/flemzord/convocore/internal/ratelimit"
)

// Gateway is the HTTP front of the conversation service. It is a leaf —
// nothing imports it.
type Gateway struct {
	config    Config
	service   *conversation.Service
	limiter   *ratelimit.Limiter
	hub       *EventHub
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a Gateway over the given service. The hub may be nil when no
// event feed is wanted.
func New(svc *conversation.Service, limiter *ratelimit.Limiter, hub *EventHub, cfg Config, logger *slog.Logger) *Gateway {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config:  cfg,
		service: svc,
		limiter: limiter,
		hub:     hub,
		logger:  logger,
	}
}

// Start binds the listener and serves in the background. A bind failure is
// returned synchronously; serve errors after that are logged.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
