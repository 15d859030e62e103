package service

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-readings/internal/domain"
	"github.com/septivank/meter-readings/internal/metrics"
	"github.com/septivank/meter-readings/internal/mq"
	"github.com/septivank/meter-readings/internal/query"
	"github.com/septivank/meter-readings/internal/repository"
	"github.com/septivank/meter-readings/tools/timeparser"
	"go.uber.org/zap"
)

// Store is the persistence surface the services need
type Store interface {
	BeginBatch(ctx context.Context) (repository.BatchTx, error)
	FindReadingByID(ctx context.Context, id int64) (*domain.MeterReading, error)
	ListReadings(ctx context.Context, req query.PageRequest, preds ...query.Predicate) (*query.PageResult[domain.MeterReading], error)
	Ping(ctx context.Context) error
}

// EventPublisher emits accepted-reading events
type EventPublisher interface {
	PublishReadingAccepted(ctx context.Context, event mq.ReadingAcceptedEvent) error
}

// NopPublisher discards events. Used when messaging is disabled.
type NopPublisher struct{}

// PublishReadingAccepted does nothing
func (NopPublisher) PublishReadingAccepted(context.Context, mq.ReadingAcceptedEvent) error {
	return nil
}

// BatchOutcome is the per-row result of one persisted batch.
// Rows[i] corresponds to the i-th reading passed to PersistBatch.
type BatchOutcome struct {
	BatchID string
	Rows    []domain.RowOutcome
}

// Coordinator persists batches of validated readings in one transaction
type Coordinator struct {
	store     Store
	publisher EventPublisher
	logger    *zap.Logger
}

// NewCoordinator creates a new persistence coordinator
func NewCoordinator(store Store, publisher EventPublisher, logger *zap.Logger) *Coordinator {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Coordinator{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// PersistBatch inserts every reading that passes the account and monotonic
// value conditions, in input order, and commits once. Any store failure
// rolls the whole batch back and returns a *domain.PersistenceError.
func (c *Coordinator) PersistBatch(ctx context.Context, readings []domain.NewReading) (*BatchOutcome, error) {
	outcome := &BatchOutcome{BatchID: uuid.New().String()}
	if len(readings) == 0 {
		return outcome, nil
	}

	logger := c.logger.With(zap.String("batch_id", outcome.BatchID))
	start := time.Now()

	rows, err := c.persist(ctx, readings, logger)
	metrics.ObservePersist(err, time.Since(start))
	if err != nil {
		logger.Error("batch rolled back", zap.Error(err), zap.Int("readings_count", len(readings)))
		return nil, err
	}
	outcome.Rows = rows

	c.publishAccepted(ctx, outcome, logger)

	return outcome, nil
}

func (c *Coordinator) persist(ctx context.Context, readings []domain.NewReading, logger *zap.Logger) ([]domain.RowOutcome, error) {
	tx, err := c.store.BeginBatch(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "begin", Err: err}
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logger.Warn("failed to roll back batch", zap.Error(rbErr))
		}
	}()

	if err := tx.LockAccounts(ctx, accountIDs(readings)); err != nil {
		return nil, &domain.PersistenceError{Op: "lock", Err: err}
	}

	rows := make([]domain.RowOutcome, len(readings))
	for i, reading := range readings {
		stored, reason, err := tx.InsertReading(ctx, reading)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "insert", Err: err}
		}

		rows[i] = domain.RowOutcome{Index: i, Status: domain.RowAccepted, Reading: stored}
		if stored == nil {
			rows[i].Status = domain.RowRejected
			rows[i].Reason = reason
			logger.Debug("reading rejected by store",
				zap.Int("row", i),
				zap.Int64("account_id", reading.AccountID),
				zap.String("reason", string(reason)),
			)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &domain.PersistenceError{Op: "commit", Err: err}
	}

	return rows, nil
}

// publishAccepted runs after commit. Failures are logged, never returned.
func (c *Coordinator) publishAccepted(ctx context.Context, outcome *BatchOutcome, logger *zap.Logger) {
	for _, row := range outcome.Rows {
		if row.Reading == nil {
			continue
		}
		event := mq.ReadingAcceptedEvent{
			EventID:     uuid.New().String(),
			BatchID:     outcome.BatchID,
			ReadingID:   row.Reading.ID,
			AccountID:   row.Reading.AccountID,
			SubmittedAt: timeparser.Format(row.Reading.SubmittedAt),
			Value:       row.Reading.Value,
		}
		if err := c.publisher.PublishReadingAccepted(ctx, event); err != nil {
			logger.Error("failed to publish event",
				zap.Error(err),
				zap.Int64("reading_id", event.ReadingID),
				zap.Int64("account_id", event.AccountID),
			)
		}
	}
}

// accountIDs returns the distinct account ids in ascending order
func accountIDs(readings []domain.NewReading) []int64 {
	ids := make([]int64, 0, len(readings))
	for _, r := range readings {
		ids = append(ids, r.AccountID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
