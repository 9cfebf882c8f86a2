// Package server exposes the relay over HTTP: the /ws signaling endpoint and
// small JSON endpoints for presence and counters.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/RichatorDEV/webrtc-server/internal/config"
	"github.com/RichatorDEV/webrtc-server/internal/relay"
)

// Server runs a hub behind an HTTP listener.
type Server struct {
	cfg    *config.Server
	hub    *relay.Hub
	logger *slog.Logger
	http   *http.Server
}

func New(cfg *config.Server, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	hub := relay.NewHub(logger)
	return &Server{
		cfg:    cfg,
		hub:    hub,
		logger: logger,
		http: &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: NewMux(hub, cfg, logger),
		},
	}
}

func (s *Server) Hub() *relay.Hub { return s.hub }

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts the
// HTTP server down within the configured timeout and stops the hub.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer func() {
		stopHub()
		<-s.hub.Done()
	}()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("signaling server listening", "addr", ln.Addr().String())
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)

	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked websockets are not tracked by Shutdown; stopping the hub
	// closes them.
	stopHub()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("signaling server stopped")
	return nil
}
