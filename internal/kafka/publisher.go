package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

var errPublisherStopped = errors.New("publisher shutdown during batch processing")

const (
	defaultProcessingLease = time.Minute
	statusUpdateTimeout    = 5 * time.Second
)

type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	// ProcessingLease is how long a claimed task may stay PROCESSING before
	// another poll takes it over.
	ProcessingLease time.Duration
}

// Publisher drains the outbox: audit entries committed together with their
// state change are delivered to the producer at least once.
type Publisher struct {
	db             db.DB
	repo           storage.OutboxTaskRepository
	producer       Producer
	config         PublisherConfig
	logger         *zap.Logger
	now            func() time.Time
	wg             sync.WaitGroup
	shutdownSignal chan struct{}
	stopOnce       sync.Once
}

func NewPublisher(database db.DB, repo storage.OutboxTaskRepository, producer Producer, config PublisherConfig, logger *zap.Logger) *Publisher {
	if config.ProcessingLease <= 0 {
		config.ProcessingLease = defaultProcessingLease
	}
	return &Publisher{
		db:             database,
		repo:           repo,
		producer:       producer,
		config:         config,
		logger:         logger.Named("outbox"),
		now:            time.Now,
		shutdownSignal: make(chan struct{}),
	}
}

// Run polls until ctx is cancelled or Shutdown is called.
func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("Starting outbox publisher",
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Int("batch_size", p.config.BatchSize),
	)
	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil && !errors.Is(err, errPublisherStopped) && ctx.Err() == nil {
				p.logger.Error("failed to process outbox batch", zap.Error(err))
			}
		case <-p.shutdownSignal:
			p.logger.Info("Outbox publisher received shutdown signal, stopping")
			return
		case <-ctx.Done():
			p.logger.Info("Outbox publisher context cancelled, stopping")
			go p.Shutdown()
			return
		}
	}
}

func (p *Publisher) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.shutdownSignal)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			p.logger.Info("Outbox publisher shutdown complete")
		case <-shutdownCtx.Done():
			p.logger.Warn("Outbox publisher shutdown timed out")
		}

		if err := p.producer.Close(); err != nil {
			p.logger.Error("failed to close producer", zap.Error(err))
		}
	})
}

// claimBatch locks processable tasks and marks them PROCESSING in one
// transaction. Tasks whose PROCESSING lease ran out are claimed again, so
// delivery stays at least once even if this process dies mid-batch.
func (p *Publisher) claimBatch(ctx context.Context) ([]*repository.OutboxTask, error) {
	tx, err := p.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for fetching tasks: %w", err)
	}

	staleBefore := p.now().UTC().Add(-p.config.ProcessingLease)
	tasks, err := p.repo.GetProcessableTasksTx(ctx, tx, p.config.BatchSize, p.config.MaxAttempts, staleBefore)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to get processable tasks: %w", err)
	}

	for _, task := range tasks {
		err := p.repo.UpdateTaskStatusTx(ctx, tx, task.ID, repository.TaskStatusProcessing, task.Attempts, task.LastError, nil)
		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("failed to mark task %s as PROCESSING: %w", task.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claimed tasks: %w", err)
	}
	return tasks, nil
}

func (p *Publisher) processBatch(ctx context.Context) error {
	tasks, err := p.claimBatch(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	p.logger.Debug("claimed outbox tasks", zap.Int("count", len(tasks)))

	for _, task := range tasks {
		select {
		case <-p.shutdownSignal:
			p.logger.Warn("shutdown during batch, task left in PROCESSING until its lease expires", zap.Stringer("task_id", task.ID))
			return errPublisherStopped
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := p.processSingleTask(ctx, task); err != nil {
			p.logger.Error("failed to process outbox task", zap.Stringer("task_id", task.ID), zap.Error(err))
		}
	}

	return nil
}

// processSingleTask sends one task and records the outcome. The final status
// update runs on a context detached from ctx: a message that reached the
// broker must not stay PROCESSING because shutdown cancelled ctx.
func (p *Publisher) processSingleTask(ctx context.Context, task *repository.OutboxTask) error {
	err := p.producer.SendMessage(ctx, task.Topic, []byte(task.ID.String()), task.Payload)

	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusUpdateTimeout)
	defer cancel()

	if err != nil {
		metrics.OutboxTasksTotal.WithLabelValues("failed").Inc()
		attempts := task.Attempts + 1
		errMsg := err.Error()

		if attempts >= p.config.MaxAttempts {
			p.logger.Error("outbox task exhausted its attempts",
				zap.Stringer("task_id", task.ID),
				zap.Int("attempts", attempts),
			)
		}

		updateErr := p.repo.UpdateTaskStatus(updateCtx, p.db, task.ID, repository.TaskStatusFailed, attempts, &errMsg, nil)
		if updateErr != nil {
			return fmt.Errorf("failed to update task status after send failure: %w (send error: %v)", updateErr, err)
		}
		return err
	}

	now := p.now().UTC()
	if err := p.repo.UpdateTaskStatus(updateCtx, p.db, task.ID, repository.TaskStatusDone, task.Attempts+1, nil, &now); err != nil {
		return fmt.Errorf("failed to update task status after successful send: %w", err)
	}
	metrics.OutboxTasksTotal.WithLabelValues("published").Inc()
	return nil
}
