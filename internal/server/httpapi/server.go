// Package httpapi exposes the identity service over JSON/HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/primeauth/internal/logging"
	"github.com/dmitrijs2005/primeauth/internal/server/users"
)

const shutdownTimeout = 5 * time.Second

// Handler serves the accounts API.
type Handler struct {
	users  *users.Service
	logger logging.Logger
}

func NewHandler(us *users.Service, l logging.Logger) *Handler {
	return &Handler{users: us, logger: l.With("module", "http_api")}
}

// Routes returns the router of the API, rooted at /api/accounts.
func (h *Handler) Routes() http.Handler {
	return newRouter(h)
}

type Server struct {
	address string
	handler *Handler
	logger  logging.Logger
}

func NewServer(a string, l logging.Logger, us *users.Service) *Server {
	return &Server{
		address: a,
		handler: NewHandler(us, l),
		logger:  l.With("module", "http_server"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
