package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/Gonzalez8/fintrack/internal/modules/assets"
	"github.com/rs/zerolog"
)

type settingsLoader interface {
	Load() (domain.Settings, error)
}

type priceRefresher interface {
	Refresh(ctx context.Context) (assets.RefreshResult, error)
}

// PriceRefreshJob periodically refreshes prices for auto-priced assets.
// The interval comes from settings; zero disables the job. Unlike the
// snapshot coordinator this keeps its last-run marker in memory: refreshing
// twice after a restart is harmless, so it needs no cross-instance lock.
type PriceRefreshJob struct {
	settings  settingsLoader
	refresher priceRefresher
	now       func() time.Time

	mu      sync.Mutex
	lastRun time.Time

	log zerolog.Logger
}

// NewPriceRefreshJob creates the price refresh job.
func NewPriceRefreshJob(settings settingsLoader, refresher priceRefresher, log zerolog.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		settings:  settings,
		refresher: refresher,
		now:       time.Now,
		log:       log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name implements Job.
func (j *PriceRefreshJob) Name() string { return "price_refresh" }

// Run implements Job.
func (j *PriceRefreshJob) Run() error {
	cfg, err := j.settings.Load()
	if err != nil {
		return err
	}
	if cfg.PriceUpdateInterval <= 0 {
		return nil
	}

	j.mu.Lock()
	due := j.lastRun.IsZero() ||
		j.now().Sub(j.lastRun) >= time.Duration(cfg.PriceUpdateInterval)*time.Minute
	j.mu.Unlock()
	if !due {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := j.refresher.Refresh(ctx)
	if err != nil {
		// lastRun is untouched, so a failed cycle retries on the next tick
		// instead of waiting out the full interval.
		return err
	}

	j.mu.Lock()
	j.lastRun = j.now()
	j.mu.Unlock()

	j.log.Info().
		Int("updated", result.Updated).
		Int("failed", len(result.Failures)).
		Msg("Price refresh tick finished")
	return nil
}
