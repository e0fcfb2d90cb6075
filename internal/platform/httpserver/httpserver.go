package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Server wraps http.Server with the timeouts a public comment API wants:
// list responses are small, so anything slow is a stuck client.
type Server struct {
	HTTP *http.Server
	name string
}

type Options struct {
	Addr        string
	ServiceName string
	Router      chi.Router
}

func New(opts Options) *Server {
	if opts.Router == nil {
		opts.Router = chi.NewRouter()
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           opts.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &Server{HTTP: srv, name: opts.ServiceName}
}

func (s *Server) Start(log *zap.Logger) error {
	log.Info("http server listening",
		zap.String("service", s.name),
		zap.String("addr", s.HTTP.Addr))
	return s.HTTP.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.HTTP.Shutdown(ctx)
}
