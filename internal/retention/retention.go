package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/helionsec/helion/internal/config"
	"github.com/helionsec/helion/internal/database"
)

// Run deletes findings older than the retention window. It is idempotent and
// safe to run on a schedule. Returns the number of findings deleted.
func Run(ctx context.Context, db database.DB, cfg config.RetentionConfig) (int, error) {
	if !cfg.Enabled {
		slog.Info("retention is disabled; skipping")
		return 0, nil
	}

	cutoff := time.Now().UTC().Add(-time.Duration(cfg.Hours) * time.Hour)

	var row struct {
		Count int `db:"count"`
	}
	if err := db.Get(ctx, &row,
		"SELECT COUNT(*) AS count FROM findings WHERE created_at < ?", cutoff); err != nil {
		return 0, fmt.Errorf("counting expired findings: %w", err)
	}
	if row.Count == 0 {
		return 0, nil
	}

	if err := db.Exec(ctx, "DELETE FROM findings WHERE created_at < ?", cutoff); err != nil {
		return 0, fmt.Errorf("deleting expired findings: %w", err)
	}

	slog.Info("retention run completed",
		"cutoff", cutoff.Format(time.RFC3339),
		"findings_deleted", row.Count,
	)
	return row.Count, nil
}
