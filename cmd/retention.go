package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/internal/database"
	"github.com/helionsec/helion/internal/retention"
)

var retentionHours int

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Delete findings past the retention window (one-shot)",
	Long: `Deletes stored findings older than the configured retention window and
exits. The serve daemon runs the same cleanup on a cron schedule when
retention.schedule is set; this command is for manual runs and external
schedulers.`,
	RunE: runRetention,
}

func init() {
	retentionCmd.Flags().IntVar(&retentionHours, "hours", 0,
		"retention window in hours (overrides config)")
}

func runRetention(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	rc := cfg.Retention
	rc.Enabled = true
	if retentionHours > 0 {
		rc.Hours = retentionHours
	}
	if rc.Hours <= 0 {
		return fmt.Errorf("retention window not configured; set retention.hours or pass --hours")
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	deleted, err := retention.Run(ctx, db, rc)
	if err != nil {
		return fmt.Errorf("running retention: %w", err)
	}
	fmt.Printf("Deleted %d finding(s) older than %dh.\n", deleted, rc.Hours)
	return nil
}
