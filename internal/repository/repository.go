package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/meter-readings/internal/domain"
	"github.com/septivank/meter-readings/internal/query"
	"github.com/septivank/meter-readings/internal/rules"
)

// ReadingColumns are the meter_readings columns exposed to predicates and sorting
var ReadingColumns = []string{"id", "account_id", "submitted_at", "value"}

var readingsSource = query.Source{
	Query:          `SELECT id, account_id, submitted_at, value FROM meter_readings`,
	Columns:        ReadingColumns,
	IdentityColumn: "id",
}

// BatchTx is a single transaction spanning one ingestion batch
type BatchTx interface {
	// LockAccounts serialises concurrent batches touching the same accounts.
	// Callers pass ids in ascending order.
	LockAccounts(ctx context.Context, accountIDs []int64) error
	// InsertReading returns the stored reading, or nil and the reason it was
	// rejected by the account or monotonic-value condition
	InsertReading(ctx context.Context, reading domain.NewReading) (*domain.MeterReading, domain.RejectReason, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
	rule *rules.Monotonic
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, rule: rules.NewMonotonic()}
}

// BeginBatch starts a new transaction for a batch of inserts
func (r *Repository) BeginBatch(ctx context.Context) (BatchTx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &pgBatch{tx: tx, rule: r.rule}, nil
}

// FindReadingByID retrieves a single reading as a one-row page over an id predicate
func (r *Repository) FindReadingByID(ctx context.Context, id int64) (*domain.MeterReading, error) {
	page, err := r.ListReadings(ctx, query.NewPageRequest(1, 1), query.Eq("id", id))
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, domain.ErrNotFound
	}
	return &page.Items[0], nil
}

// ListReadings returns one page of readings matching every predicate
func (r *Repository) ListReadings(ctx context.Context, req query.PageRequest, preds ...query.Predicate) (*query.PageResult[domain.MeterReading], error) {
	return query.Paginate(ctx, r.pool, readingsSource, req, preds, pgx.RowToStructByName[domain.MeterReading])
}

// Ping checks database connectivity
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

type pgBatch struct {
	tx   pgx.Tx
	rule *rules.Monotonic
}

func (b *pgBatch) LockAccounts(ctx context.Context, accountIDs []int64) error {
	for _, id := range accountIDs {
		if _, err := b.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, id); err != nil {
			return fmt.Errorf("failed to lock account %d: %w", id, err)
		}
	}
	return nil
}

// insertReadingQuery inserts only when the account exists and the value
// exceeds the account's latest reading (max submitted_at, then max id)
const insertReadingQuery = `
	INSERT INTO meter_readings (account_id, submitted_at, value)
	SELECT @account_id::BIGINT, @submitted_at::TIMESTAMPTZ, @value::VARCHAR(5)
	WHERE EXISTS (
		SELECT 1 FROM accounts WHERE account_id = @account_id::BIGINT
	)
	AND @numeric_value::INTEGER > COALESCE((
		SELECT value::INTEGER
		FROM meter_readings
		WHERE account_id = @account_id::BIGINT
		ORDER BY submitted_at DESC, id DESC
		LIMIT 1
	), 0)
	RETURNING id, account_id, submitted_at, value
`

func (b *pgBatch) InsertReading(ctx context.Context, reading domain.NewReading) (*domain.MeterReading, domain.RejectReason, error) {
	rows, err := b.tx.Query(ctx, insertReadingQuery, pgx.NamedArgs{
		"account_id":    reading.AccountID,
		"submitted_at":  reading.SubmittedAt,
		"value":         reading.Value,
		"numeric_value": reading.NumericValue,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to insert meter reading: %w", err)
	}

	stored, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[domain.MeterReading])
	if err == nil {
		return &stored, "", nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fmt.Errorf("failed to insert meter reading: %w", err)
	}

	reason, err := b.rejectionReason(ctx, reading)
	if err != nil {
		return nil, "", err
	}
	return nil, reason, nil
}

func (b *pgBatch) rejectionReason(ctx context.Context, reading domain.NewReading) (domain.RejectReason, error) {
	classifyQuery := `
		SELECT
			EXISTS (SELECT 1 FROM accounts WHERE account_id = $1),
			(SELECT value::INTEGER
			 FROM meter_readings
			 WHERE account_id = $1
			 ORDER BY submitted_at DESC, id DESC
			 LIMIT 1)
	`

	var (
		exists bool
		latest *int
	)
	if err := b.tx.QueryRow(ctx, classifyQuery, reading.AccountID).Scan(&exists, &latest); err != nil {
		return "", fmt.Errorf("failed to classify rejected reading: %w", err)
	}

	reason := b.rule.Classify(exists, reading.NumericValue, latest)
	if reason == "" {
		// The insert condition and the rule disagree only if the latest value
		// is not a number, which the schema does not allow
		reason = domain.RejectNotIncreasing
	}
	return reason, nil
}

func (b *pgBatch) Commit(ctx context.Context) error {
	return b.tx.Commit(ctx)
}

func (b *pgBatch) Rollback(ctx context.Context) error {
	err := b.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
