package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jobmatch/jobmatch-be/internal/store"
)

// Purger sweeps expired sessions out of the Postgres store on a cron
// schedule. Redis expires keys natively and the memory store expires
// lazily, so only the Postgres backend needs it.
type Purger struct {
	store    *store.PostgresStore
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
}

func NewPurger(st *store.PostgresStore, schedule string, logger *slog.Logger) *Purger {
	if schedule == "" {
		schedule = "*/15 * * * *"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Purger{
		store:    st,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start registers the sweep and runs the scheduler in the background.
func (p *Purger) Start() error {
	_, err := p.cron.AddFunc(p.schedule, p.sweep)
	if err != nil {
		return err
	}
	p.cron.Start()
	p.logger.Info("Session purge scheduled",
		slog.String("schedule", p.schedule),
	)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (p *Purger) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}

func (p *Purger) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := p.store.PurgeExpired(ctx)
	if err != nil {
		p.logger.Error("Session purge failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if purged > 0 {
		p.logger.Info("Expired sessions purged",
			slog.Int64("count", purged),
		)
	}
}
