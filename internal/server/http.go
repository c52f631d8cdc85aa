// Package server exposes the admin and query HTTP API. Mutations here go
// through the same engine methods as NATS-ingested requests, so the engine
// lock keeps the two surfaces serialized.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"BetBank/internal/bank"
	"BetBank/internal/observability"
)

type Server struct {
	router *mux.Router
	bank   *bank.Bank
	health *observability.HealthChecker
	log    zerolog.Logger
	addr   string
}

func New(addr string, b *bank.Bank, health *observability.HealthChecker, log zerolog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		bank:   b,
		health: health,
		log:    log,
		addr:   addr,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Round lifecycle (game host)
	s.router.HandleFunc("/api/v1/rounds/open", s.handleOpenRound).Methods("POST")
	s.router.HandleFunc("/api/v1/rounds/close", s.handleCloseRound).Methods("POST")
	s.router.HandleFunc("/api/v1/rounds/evaluate", s.handleEvaluateRound).Methods("POST")
	s.router.HandleFunc("/api/v1/rounds/current", s.handleCurrentRound).Methods("GET")
	s.router.HandleFunc("/api/v1/rounds/results", s.handleResults).Methods("GET")

	// Quotas
	s.router.HandleFunc("/api/v1/quotas/{tag}", s.handleGetQuota).Methods("GET")
	s.router.HandleFunc("/api/v1/quotas/{tag}", s.handleSetQuota).Methods("PUT")

	// Ledger queries
	s.router.HandleFunc("/api/v1/balances/{participant_id}", s.handleBalance).Methods("GET")
	s.router.HandleFunc("/api/v1/accounts/{participant_id}", s.handleAccount).Methods("GET")
	s.router.HandleFunc("/api/v1/snapshot", s.handleSnapshot).Methods("GET")

	// Admin
	s.router.HandleFunc("/api/v1/reset", s.handleReset).Methods("POST")

	// Probes
	s.router.HandleFunc("/healthz", s.health.LivenessHandler).Methods("GET")
	s.router.HandleFunc("/readyz", s.health.ReadinessHandler).Methods("GET")
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}

	srv := &http.Server{
		Addr:    s.addr,
		Handler: cors.New(corsOptions).Handler(s.router),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.log.Info().Str("addr", s.addr).Msg("http server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
