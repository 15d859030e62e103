package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/septivank/meter-readings/internal/domain"
	"github.com/septivank/meter-readings/internal/mq"
	"github.com/septivank/meter-readings/internal/query"
	"github.com/septivank/meter-readings/internal/repository"
	"github.com/septivank/meter-readings/internal/service"
	"go.uber.org/zap"
)

var baseTime = time.Date(2019, 4, 22, 9, 24, 0, 0, time.UTC)

func reading(accountID int64, minutes int, value int, text string) domain.NewReading {
	return domain.NewReading{
		AccountID:    accountID,
		SubmittedAt:  baseTime.Add(time.Duration(minutes) * time.Minute),
		Value:        text,
		NumericValue: value,
	}
}

func newStore() *repository.MemoryStore {
	return repository.NewMemoryStore(
		domain.Account{ID: 1, AccountID: 2344, FirstName: "Tommy", LastName: "Test"},
		domain.Account{ID: 2, AccountID: 2233, FirstName: "Barry", LastName: "Test"},
	)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []mq.ReadingAcceptedEvent
	err    error
}

func (p *recordingPublisher) PublishReadingAccepted(ctx context.Context, event mq.ReadingAcceptedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

// failingStore wraps a real store and fails the chosen batch operation
type failingStore struct {
	service.Store
	failOn   string
	begun    int
	commits  int
	rollback int
}

func (s *failingStore) BeginBatch(ctx context.Context) (repository.BatchTx, error) {
	s.begun++
	if s.failOn == "begin" {
		return nil, errors.New("connection refused")
	}
	tx, err := s.Store.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{BatchTx: tx, store: s}, nil
}

type failingTx struct {
	repository.BatchTx
	store *failingStore
}

func (tx *failingTx) LockAccounts(ctx context.Context, ids []int64) error {
	if tx.store.failOn == "lock" {
		return errors.New("lock timeout")
	}
	return tx.BatchTx.LockAccounts(ctx, ids)
}

func (tx *failingTx) InsertReading(ctx context.Context, r domain.NewReading) (*domain.MeterReading, domain.RejectReason, error) {
	if tx.store.failOn == "insert" && r.NumericValue == 666 {
		return nil, "", errors.New("disk full")
	}
	return tx.BatchTx.InsertReading(ctx, r)
}

func (tx *failingTx) Commit(ctx context.Context) error {
	if tx.store.failOn == "commit" {
		return errors.New("serialization failure")
	}
	tx.store.commits++
	return tx.BatchTx.Commit(ctx)
}

func (tx *failingTx) Rollback(ctx context.Context) error {
	tx.store.rollback++
	return tx.BatchTx.Rollback(ctx)
}

func countAll(t *testing.T, store service.Store) int64 {
	t.Helper()
	page, err := store.ListReadings(context.Background(), query.NewPageRequest(1, 1))
	if err != nil {
		t.Fatalf("Failed to count readings: %v", err)
	}
	return page.TotalCount
}

func TestPersistBatch_MonotonicWithinBatch(t *testing.T) {
	store := newStore()
	pub := &recordingPublisher{}
	c := service.NewCoordinator(store, pub, zap.NewNop())

	outcome, err := c.PersistBatch(context.Background(), []domain.NewReading{
		reading(2344, 0, 12345, "12345"),
		reading(2344, 1, 12345, "12345"),
		reading(2344, 2, 22345, "22345"),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	result := domain.Summarize(outcome.Rows)
	if result.Accepted != 2 || result.Rejected != 1 {
		t.Fatalf("Expected 2 accepted and 1 rejected, got %d and %d", result.Accepted, result.Rejected)
	}
	if outcome.Rows[1].Reason != domain.RejectNotIncreasing {
		t.Errorf("Expected second row rejected as %s, got %s", domain.RejectNotIncreasing, outcome.Rows[1].Reason)
	}
	if outcome.BatchID == "" {
		t.Error("Expected batch id to be set")
	}
	if len(pub.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(pub.events))
	}
	if pub.events[0].Value != "12345" || pub.events[1].Value != "22345" {
		t.Errorf("Expected events in submission order, got %+v", pub.events)
	}
	if pub.events[0].BatchID != outcome.BatchID {
		t.Errorf("Expected event batch id %s, got %s", outcome.BatchID, pub.events[0].BatchID)
	}
}

func TestPersistBatch_AccountsAreIndependent(t *testing.T) {
	store := newStore()
	c := service.NewCoordinator(store, nil, zap.NewNop())

	outcome, err := c.PersistBatch(context.Background(), []domain.NewReading{
		reading(2344, 0, 50000, "50000"),
		reading(2233, 0, 100, "00100"),
		reading(9999, 0, 100, "00100"),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if outcome.Rows[0].Status != domain.RowAccepted || outcome.Rows[1].Status != domain.RowAccepted {
		t.Errorf("Expected both known accounts accepted, got %+v", outcome.Rows)
	}
	if outcome.Rows[2].Reason != domain.RejectUnknownAccount {
		t.Errorf("Expected unknown account rejection, got %s", outcome.Rows[2].Reason)
	}
}

func TestPersistBatch_EmptyDoesNotTouchStore(t *testing.T) {
	store := &failingStore{Store: newStore(), failOn: "begin"}
	c := service.NewCoordinator(store, nil, zap.NewNop())

	outcome, err := c.PersistBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(outcome.Rows) != 0 {
		t.Errorf("Expected no rows, got %d", len(outcome.Rows))
	}
	if store.begun != 0 {
		t.Errorf("Expected no batch to be started, got %d", store.begun)
	}
}

func TestPersistBatch_FailureRollsBack(t *testing.T) {
	for _, op := range []string{"begin", "lock", "insert", "commit"} {
		t.Run(op, func(t *testing.T) {
			inner := newStore()
			store := &failingStore{Store: inner, failOn: op}
			pub := &recordingPublisher{}
			c := service.NewCoordinator(store, pub, zap.NewNop())

			_, err := c.PersistBatch(context.Background(), []domain.NewReading{
				reading(2344, 0, 100, "00100"),
				reading(2344, 1, 666, "00666"),
			})
			if !errors.Is(err, domain.ErrPersistence) {
				t.Fatalf("Expected persistence error, got %v", err)
			}

			var perr *domain.PersistenceError
			if !errors.As(err, &perr) || perr.Op != op {
				t.Errorf("Expected failing op %s, got %v", op, err)
			}
			if store.commits != 0 {
				t.Errorf("Expected no commit, got %d", store.commits)
			}
			if n := countAll(t, inner); n != 0 {
				t.Errorf("Expected nothing persisted, got %d readings", n)
			}
			if len(pub.events) != 0 {
				t.Errorf("Expected no events, got %d", len(pub.events))
			}
		})
	}
}

func TestPersistBatch_PublishFailureIsNotFatal(t *testing.T) {
	store := newStore()
	pub := &recordingPublisher{err: errors.New("channel closed")}
	c := service.NewCoordinator(store, pub, zap.NewNop())

	outcome, err := c.PersistBatch(context.Background(), []domain.NewReading{
		reading(2344, 0, 100, "00100"),
	})
	if err != nil {
		t.Fatalf("Expected publish failure to be swallowed, got %v", err)
	}
	if outcome.Rows[0].Status != domain.RowAccepted {
		t.Errorf("Expected reading accepted, got %s", outcome.Rows[0].Status)
	}
	if n := countAll(t, store); n != 1 {
		t.Errorf("Expected 1 reading persisted, got %d", n)
	}
}

func TestPersistBatch_ConcurrentBatchesKeepValuesIncreasing(t *testing.T) {
	store := newStore()
	c := service.NewCoordinator(store, nil, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.PersistBatch(context.Background(), []domain.NewReading{
				reading(2344, i, 1000+i, fmt.Sprintf("%05d", 1000+i)),
			})
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	page, err := store.ListReadings(context.Background(), query.PageRequest{Page: 1, PageSize: 100, SortKey: "submitted_at"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for i := 1; i < len(page.Items); i++ {
		if page.Items[i].Value <= page.Items[i-1].Value {
			t.Errorf("Expected strictly increasing values, got %s after %s", page.Items[i].Value, page.Items[i-1].Value)
		}
	}
}
