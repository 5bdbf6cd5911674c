// Package schedule runs the periodic full-sync trigger. It is a thin
// collaborator around the engine's manual entry point; live watching
// remains the primary change source.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// FullSyncer is the engine surface the scheduler drives.
type FullSyncer interface {
	RunFullSync(ctx context.Context) error
}

// ParseInterval turns the human-readable schedule setting into a
// duration. Empty and "never" disable scheduling (zero duration).
// Recognized shorthands: "15min", "30min", "hourly"; anything else is
// parsed as a Go duration.
func ParseInterval(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "never":
		return 0, nil
	case "15min":
		return 15 * time.Minute, nil
	case "30min":
		return 30 * time.Minute, nil
	case "hourly":
		return time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule interval %q: %w", s, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("invalid schedule interval %q: must be positive", s)
	}

	return d, nil
}

// Run triggers a full sync every interval until the context is
// cancelled. Sync failures are logged and the schedule continues.
func Run(ctx context.Context, syncer FullSyncer, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("scheduled sync started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := syncer.RunFullSync(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				logger.Warn("scheduled sync failed", slog.String("error", err.Error()))
			}
		}
	}
}
