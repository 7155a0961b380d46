package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/internal/database"
	"github.com/helionsec/helion/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the helion API daemon",
	Long: `Starts the helion REST API: a long-running daemon that accepts scanner
findings, serves the clustered vulnerability view, runs LLM-informed risk
tiering and exports tickets to issue trackers.

The API listens on localhost (default: http://127.0.0.1:8080).

Quick API reference:
  GET  /api/v1/health        liveness + database connectivity
  POST /api/v1/auth/login    username/password -> bearer token
  POST /api/v1/upload        ingest findings (JSON body or .json file)
  GET  /api/v1/clusters      clustered vulnerabilities + compression metrics
  POST /api/v1/reasoning     LLM notes + deterministic risk tiers
  POST /api/v1/tickets       tracker-ready ticket payloads
  POST /api/v1/export        create epics and issues in Jira/GitHub/GitLab

When retention is enabled with a cron schedule, expired findings are
deleted in the background while the daemon runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP port to listen on (default 8080, overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fmt.Printf("helion starting\n")
	fmt.Printf("  API       : http://127.0.0.1:%d\n", cfg.Server.Port)
	fmt.Printf("  Database  : %s\n", db.Driver())
	if cfg.Retention.Enabled && cfg.Retention.Schedule != "" {
		fmt.Printf("  Retention : %dh, schedule %q\n", cfg.Retention.Hours, cfg.Retention.Schedule)
	}
	fmt.Println("Press Ctrl+C to stop gracefully.")
	fmt.Println()

	return server.New(cfg, db).Start(ctx)
}
