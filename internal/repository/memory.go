package repository

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/septivank/meter-readings/internal/domain"
	"github.com/septivank/meter-readings/internal/query"
	"github.com/septivank/meter-readings/internal/rules"
)

// ErrBatchClosed is returned when a finished batch is used again
var ErrBatchClosed = errors.New("batch already committed or rolled back")

// MemoryStore keeps accounts and readings in process. It applies the same
// conditional-insert and pagination semantics as Repository. Batches are
// serialised: only one may be open at a time.
type MemoryStore struct {
	batchMu sync.Mutex

	mu       sync.RWMutex
	accounts map[int64]domain.Account
	readings []domain.MeterReading
	nextID   int64

	rule *rules.Monotonic
}

// NewMemoryStore creates an empty store that knows the given accounts
func NewMemoryStore(accounts ...domain.Account) *MemoryStore {
	s := &MemoryStore{
		accounts: make(map[int64]domain.Account, len(accounts)),
		rule:     rules.NewMonotonic(),
	}
	for _, a := range accounts {
		s.accounts[a.AccountID] = a
	}
	return s
}

// BeginBatch blocks until no other batch is open
func (s *MemoryStore) BeginBatch(ctx context.Context) (BatchTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.batchMu.Lock()
	return &memoryBatch{store: s}, nil
}

// FindReadingByID retrieves a single reading as a one-row page over an id predicate
func (s *MemoryStore) FindReadingByID(ctx context.Context, id int64) (*domain.MeterReading, error) {
	page, err := s.ListReadings(ctx, query.NewPageRequest(1, 1), query.Eq("id", id))
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, domain.ErrNotFound
	}
	return &page.Items[0], nil
}

// ListReadings returns one page of committed readings matching every predicate
func (s *MemoryStore) ListReadings(ctx context.Context, req query.PageRequest, preds ...query.Predicate) (*query.PageResult[domain.MeterReading], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	items := make([]domain.MeterReading, len(s.readings))
	copy(items, s.readings)
	s.mu.RUnlock()

	return query.PageInMemory(items, readingsSource, req, preds, readingField)
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// latest returns the numeric value of the account's most recent reading
// across committed and pending rows. Caller holds s.mu.
func (s *MemoryStore) latest(accountID int64, pending []domain.MeterReading) *int {
	var found *domain.MeterReading
	consider := func(r *domain.MeterReading) {
		if r.AccountID != accountID {
			return
		}
		if found == nil ||
			r.SubmittedAt.After(found.SubmittedAt) ||
			(r.SubmittedAt.Equal(found.SubmittedAt) && r.ID > found.ID) {
			found = r
		}
	}
	for i := range s.readings {
		consider(&s.readings[i])
	}
	for i := range pending {
		consider(&pending[i])
	}
	if found == nil {
		return nil
	}

	n, err := strconv.Atoi(found.Value)
	if err != nil {
		return nil
	}
	return &n
}

type memoryBatch struct {
	store   *MemoryStore
	pending []domain.MeterReading
	done    bool
}

// LockAccounts is a no-op; the whole store is locked for the batch
func (b *memoryBatch) LockAccounts(ctx context.Context, accountIDs []int64) error {
	if b.done {
		return ErrBatchClosed
	}
	return ctx.Err()
}

func (b *memoryBatch) InsertReading(ctx context.Context, reading domain.NewReading) (*domain.MeterReading, domain.RejectReason, error) {
	if b.done {
		return nil, "", ErrBatchClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.accounts[reading.AccountID]
	if reason := s.rule.Classify(exists, reading.NumericValue, s.latest(reading.AccountID, b.pending)); reason != "" {
		return nil, reason, nil
	}

	// Ids are consumed even if the batch rolls back, like a sequence
	s.nextID++
	stored := domain.MeterReading{
		ID:          s.nextID,
		AccountID:   reading.AccountID,
		SubmittedAt: reading.SubmittedAt,
		Value:       reading.Value,
	}
	b.pending = append(b.pending, stored)

	return &stored, "", nil
}

func (b *memoryBatch) Commit(ctx context.Context) error {
	if b.done {
		return ErrBatchClosed
	}
	b.done = true
	defer b.store.batchMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	b.store.mu.Lock()
	b.store.readings = append(b.store.readings, b.pending...)
	b.store.mu.Unlock()
	return nil
}

func (b *memoryBatch) Rollback(ctx context.Context) error {
	if b.done {
		return nil
	}
	b.done = true
	b.pending = nil
	b.store.batchMu.Unlock()
	return nil
}

func readingField(r domain.MeterReading, field string) (any, bool) {
	switch field {
	case "id":
		return r.ID, true
	case "account_id":
		return r.AccountID, true
	case "submitted_at":
		return r.SubmittedAt, true
	case "value":
		return r.Value, true
	}
	return nil, false
}
