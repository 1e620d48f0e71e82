// Package api exposes the ledger over HTTP: the ad network's
// server-to-server callback, the mini-app endpoints, and the admin
// endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"earnquick-bot/internal/config"
)

// Server wraps the HTTP server for the ledger API.
type Server struct {
	srv *http.Server
}

// NewServer builds the router and HTTP server.
func NewServer(cfg *config.ServerConfig, h *Handler) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/monetag-callback", h.MonetagCallback)
		r.Get("/user-data", h.UserData)
		r.Post("/withdraw", h.Withdraw)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Get("/withdrawals", h.PendingWithdrawals)
			r.Post("/update_withdrawal", h.UpdateWithdrawal)
			r.Get("/stats", h.Stats)
		})
	})

	r.Get("/healthz", h.Health)

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() {
	log.Info().Str("addr", s.srv.Addr).Msg("Starting HTTP API")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("HTTP API stopped unexpectedly")
	}
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping HTTP API...")
	return s.srv.Shutdown(ctx)
}
