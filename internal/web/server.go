package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/actionsum/focustrack/internal/config"
	"github.com/actionsum/focustrack/internal/logging"
)

type Server struct {
	config *config.Config
	server *http.Server
	logger zerolog.Logger
}

func NewServer(cfg *config.Config, handler *Handler, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	handler.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:         cfg.WebAddr(),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		config: cfg,
		server: httpServer,
		logger: logging.Component(logger, "web"),
	}
}

// Handler returns the routed mux, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving the local API until Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the server on an existing listener. A graceful shutdown is not an error.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", "http://"+ln.Addr().String()).Msg("starting web server")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down web server")
	return s.server.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return s.server.Addr
}
