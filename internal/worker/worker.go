// Package worker is the consumer side of the async notification path: it
// drains the email queue, delivers through the notifier, and records the
// delivery on the session. It also hosts the expired-session sweep when
// the Postgres store backend is in use.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobmatch/jobmatch-be/internal/notify"
	"github.com/jobmatch/jobmatch-be/internal/store"
	"github.com/jobmatch/jobmatch-be/shared/rabbitmq"
)

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Notifier      notify.Notifier
	Store         store.SessionStore
	Concurrency   int
	JobTimeout    time.Duration
	PrefetchCount int
}

// Worker consumes queued notifications and delivers them
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	notifier      notify.Notifier
	store         store.SessionStore
	concurrency   int
	jobTimeout    time.Duration
	prefetchCount int
	workerID      string
	jobsChan      chan *deliveryMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = cfg.Concurrency
	}
	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		notifier:      cfg.Notifier,
		store:         cfg.Store,
		concurrency:   cfg.Concurrency,
		jobTimeout:    cfg.JobTimeout,
		prefetchCount: prefetch,
		workerID:      "worker-" + uuid.New().String()[:8],
		jobsChan:      make(chan *deliveryMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming notifications and blocks until ctx is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
