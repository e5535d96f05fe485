// Package sync pulls statement lines from every active provider, once or on an interval
package sync

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/johnstarich/banklink/errors"
	"github.com/johnstarich/banklink/online"
	"github.com/johnstarich/banklink/plaindb"
	"github.com/johnstarich/banklink/provider"
	pkgErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	days = 24 * time.Hour
	// maxPullDuration caps the period of a single aggregator request
	maxPullDuration = 30 * days
)

var (
	mu sync.Mutex // basic protection against concurrent sync operations
)

// Puller pulls a provider's statement lines for a period
type Puller interface {
	Providers() *provider.Store
	Pull(ctx context.Context, providerID string, since, until time.Time) (int, error)
}

var _ Puller = &online.Service{}

// Sync pulls every active provider up to now. A failing provider doesn't stop the others, their failures are returned as errors.Errors.
func Sync(ctx context.Context, logger *zap.Logger, puller Puller) error {
	mu.Lock()
	defer mu.Unlock()
	providers, err := puller.Providers().Providers()
	if err != nil {
		return err
	}
	now := time.Now()
	var errs errors.Errors
	total := 0
	for _, p := range providers {
		if !p.Active {
			continue
		}
		added, err := Provider(ctx, logger, puller, p, now)
		total += added
		if err != nil {
			logger.Warn("Provider pull failed", zap.String("provider", p.ID), zap.Error(err))
			errs.AddErr(errors.ForProvider(p.ID, string(p.Service), err))
		}
	}
	logger.Info("Sync completed", zap.Int("added", total), zap.Int("failures", len(errs)))
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Provider pulls p from its last pull until 'until', one window at a time
func Provider(ctx context.Context, logger *zap.Logger, puller Puller, p provider.Provider, until time.Time) (int, error) {
	total := 0
	start := online.PullStart(p, until)
	for start.Before(until) {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := earliest(until, start.Add(maxPullDuration))
		logger.Info("Pulling statement lines...", zap.String("provider", p.ID), zap.Time("start", start), zap.Time("end", end))
		added, err := puller.Pull(ctx, p.ID, start, end)
		total += added
		if err != nil {
			return total, err
		}
		start = end
	}
	return total, nil
}

// Run syncs once, then again every interval until ctx is cancelled or a sync fails for reasons other than a provider failure
func Run(ctx context.Context, logger *zap.Logger, interval time.Duration, runSync func(context.Context) error) error {
	runOnce := func() error {
		err := runSync(ctx)
		if _, partial := err.(errors.Errors); err == nil || partial {
			// provider failures are logged and retried on the next tick
			return nil
		}
		return pkgErrors.Wrap(err, "Error syncing providers")
	}
	if err := runOnce(); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := runOnce(); err != nil {
				return err
			}
		}
	}
}

// Shutdown closes the database and exits with exitCode
func Shutdown(db plaindb.DB, exitCode int) {
	if db != nil {
		if err := db.Close(); err != nil {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
