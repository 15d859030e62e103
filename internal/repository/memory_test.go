package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/septivank/meter-readings/internal/domain"
	"github.com/septivank/meter-readings/internal/query"
	"github.com/septivank/meter-readings/internal/repository"
)

var baseTime = time.Date(2019, 4, 22, 9, 24, 0, 0, time.UTC)

func newReading(accountID int64, offset time.Duration, value int, text string) domain.NewReading {
	return domain.NewReading{
		AccountID:    accountID,
		SubmittedAt:  baseTime.Add(offset),
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

func TestMemoryStore_InsertAndCommit(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	tx, err := store.BeginBatch(ctx)
	if err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}

	stored, reason, err := tx.InsertReading(ctx, newReading(2344, 0, 12345, "12345"))
	if err != nil {
		t.Fatalf("InsertReading: %v", err)
	}
	if stored == nil {
		t.Fatalf("Expected reading to be stored, rejected with %s", reason)
	}
	if stored.ID != 1 {
		t.Errorf("Expected id 1, got %d", stored.ID)
	}

	// Not visible before commit
	page, err := store.ListReadings(ctx, query.NewPageRequest(1, 10))
	if err != nil {
		t.Fatalf("ListReadings: %v", err)
	}
	if page.TotalCount != 0 {
		t.Errorf("Expected uncommitted reading to be invisible, got %d", page.TotalCount)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Errorf("Rollback after commit should be a no-op, got %v", err)
	}

	found, err := store.FindReadingByID(ctx, stored.ID)
	if err != nil {
		t.Fatalf("FindReadingByID: %v", err)
	}
	if found.Value != "12345" || found.AccountID != 2344 {
		t.Errorf("Unexpected reading %+v", found)
	}
}

func TestMemoryStore_Rejections(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	tx, _ := store.BeginBatch(ctx)
	defer tx.Rollback(ctx)

	if _, reason, _ := tx.InsertReading(ctx, newReading(9999, 0, 100, "00100")); reason != domain.RejectUnknownAccount {
		t.Errorf("Expected %s, got %q", domain.RejectUnknownAccount, reason)
	}

	if stored, _, _ := tx.InsertReading(ctx, newReading(2344, 0, 12345, "12345")); stored == nil {
		t.Fatal("Expected first reading to be accepted")
	}
	if _, reason, _ := tx.InsertReading(ctx, newReading(2344, time.Minute, 12345, "12345")); reason != domain.RejectNotIncreasing {
		t.Errorf("Expected duplicate value to be %s, got %q", domain.RejectNotIncreasing, reason)
	}
	if _, reason, _ := tx.InsertReading(ctx, newReading(2344, 2*time.Minute, 587, "00587")); reason != domain.RejectNotIncreasing {
		t.Errorf("Expected lower value to be %s, got %q", domain.RejectNotIncreasing, reason)
	}
	if stored, _, _ := tx.InsertReading(ctx, newReading(2344, 3*time.Minute, 22345, "22345")); stored == nil {
		t.Error("Expected greater value to be accepted")
	}
}

func TestMemoryStore_LatestBySubmissionTime(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	tx, _ := store.BeginBatch(ctx)
	defer tx.Rollback(ctx)

	if stored, _, _ := tx.InsertReading(ctx, newReading(2233, time.Hour, 500, "00500")); stored == nil {
		t.Fatal("Expected first reading to be accepted")
	}

	// An older submission with a higher value is accepted because the
	// comparison is against the latest reading, which is 500
	if stored, _, _ := tx.InsertReading(ctx, newReading(2233, 0, 900, "00900")); stored == nil {
		t.Fatal("Expected reading to be accepted against latest value 500")
	}

	// The latest reading by submission time is still the 500 one
	if stored, _, _ := tx.InsertReading(ctx, newReading(2233, 2*time.Hour, 600, "00600")); stored == nil {
		t.Error("Expected 600 to exceed the latest value 500")
	}
}

func TestMemoryStore_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	tx, _ := store.BeginBatch(ctx)
	if stored, _, _ := tx.InsertReading(ctx, newReading(2344, 0, 100, "00100")); stored == nil {
		t.Fatal("Expected reading to be accepted")
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if _, _, err := tx.InsertReading(ctx, newReading(2344, 0, 200, "00200")); !errors.Is(err, repository.ErrBatchClosed) {
		t.Errorf("Expected ErrBatchClosed, got %v", err)
	}

	page, _ := store.ListReadings(ctx, query.NewPageRequest(1, 10))
	if page.TotalCount != 0 {
		t.Errorf("Expected no readings after rollback, got %d", page.TotalCount)
	}

	// Store is usable again and the rolled back value no longer counts
	tx, _ = store.BeginBatch(ctx)
	defer tx.Rollback(ctx)
	if stored, _, _ := tx.InsertReading(ctx, newReading(2344, 0, 50, "00050")); stored == nil {
		t.Error("Expected reading to be accepted after rollback")
	}
}

func TestMemoryStore_FindReadingByID_NotFound(t *testing.T) {
	_, err := newStore().FindReadingByID(context.Background(), 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListReadings_AccountIsolation(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	tx, _ := store.BeginBatch(ctx)
	tx.InsertReading(ctx, newReading(2344, 0, 12345, "12345"))
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	page, err := store.ListReadings(ctx, query.NewPageRequest(1, 100), query.Eq("account_id", int64(2344)))
	if err != nil {
		t.Fatalf("ListReadings: %v", err)
	}
	if page.TotalCount != 1 || len(page.Items) != 1 {
		t.Errorf("Expected one reading for 2344, got total=%d items=%d", page.TotalCount, len(page.Items))
	}

	page, err = store.ListReadings(ctx, query.NewPageRequest(1, 100), query.Eq("account_id", int64(2233)))
	if err != nil {
		t.Fatalf("ListReadings: %v", err)
	}
	if page.TotalCount != 0 || len(page.Items) != 0 {
		t.Errorf("Expected no readings for 2233, got total=%d items=%d", page.TotalCount, len(page.Items))
	}
}
