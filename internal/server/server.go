// internal/server/server.go
package server

import (
	"context"
	"net/http"
	"time"

	"fitness-bot/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers are the routes the server exposes. Nil handlers are not mounted.
type Handlers struct {
	Stripe   http.Handler
	Telegram http.Handler
	Metrics  http.Handler
}

type Server struct {
	server *http.Server
	logger *logger.Logger
}

func NewServer(port string, h Handlers, log *logger.Logger) *Server {
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(h),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		server: httpServer,
		logger: log.Named("http"),
	}
}

func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if h.Stripe != nil {
		r.Post("/webhook/stripe", h.Stripe.ServeHTTP)
	}
	if h.Telegram != nil {
		r.Post("/webhook/telegram/{secret}", h.Telegram.ServeHTTP)
	}

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	return r
}

func (s *Server) Start() error {
	s.logger.Infow("Starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}
