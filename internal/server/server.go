package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/internal/database"
	"github.com/helionsec/helion/internal/reasoning"
	"github.com/helionsec/helion/internal/retention"
	"github.com/helionsec/helion/internal/tracker"
)

// Server is the long-running API daemon. It serves the REST control plane
// and, when retention is enabled with a schedule, runs the cleanup job on a
// cron timer.
type Server struct {
	cfg      *config.Config
	db       database.DB
	reasoner reasoning.Provider

	// newExporter is swappable in tests.
	newExporter func(name string, cfg *config.Config) (tracker.Exporter, error)

	cron *cron.Cron
}

// New creates a Server. Call Start() to begin serving.
func New(cfg *config.Config, db database.DB) *Server {
	return &Server{
		cfg:         cfg,
		db:          db,
		reasoner:    reasoning.NewProvider(cfg.Ollama),
		newExporter: tracker.New,
	}
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully. The retention schedule, when configured, runs alongside.
func (s *Server) Start(ctx context.Context) error {
	port := s.cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	if err := s.startRetentionSchedule(ctx); err != nil {
		return fmt.Errorf("starting retention schedule: %w", err)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: buildHandler(s),
	}

	// Shut down HTTP server when ctx is cancelled.
	go func() {
		<-ctx.Done()
		if s.cron != nil {
			s.cron.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server: listening", "addr", "http://"+addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// startRetentionSchedule arms the cron job that deletes findings past the
// retention window. Disabled or schedule-less retention is a no-op; the
// one-shot CLI command still works either way.
func (s *Server) startRetentionSchedule(ctx context.Context) error {
	rc := s.cfg.Retention
	if !rc.Enabled || rc.Schedule == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(rc.Schedule, func() {
		deleted, err := retention.Run(ctx, s.db, rc)
		if err != nil {
			slog.Error("server: retention run failed", "error", err)
			return
		}
		slog.Info("server: retention run completed", "deleted", deleted)
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", rc.Schedule, err)
	}
	c.Start()
	s.cron = c
	return nil
}
