package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server отвечает на пробы живости и отдаёт метрики.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

// NewServer создаёт HTTP сервер с healthcheck и /metrics.
func NewServer(logger zerolog.Logger, addr string) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	// Платформенные пробы шлют GET, HEAD и иногда POST на корень.
	alive := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("bot is running"))
	}
	r.Get("/", alive)
	r.Head("/", alive)
	r.Post("/", alive)
	r.Get("/healthz", alive)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		promhttp.Handler().ServeHTTP(w, req)
	})

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		log: logger,
	}
}

// Start запускает http.Server и блокируется до остановки.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("HTTP сервер запущен")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown корректно освобождает слушатель.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
