package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/septivank/meter-readings/internal/domain"
)

func TestSummarize(t *testing.T) {
	rows := []domain.RowOutcome{
		{Index: 0, Status: domain.RowAccepted, Reading: &domain.MeterReading{ID: 1, Value: "00100"}},
		{Index: 1, Status: domain.RowRejected, Reason: domain.RejectNotIncreasing},
		{Index: 2, Status: domain.RowRejected, Reason: domain.RejectInvalidValue},
		{Index: 3, Status: domain.RowAccepted, Reading: &domain.MeterReading{ID: 2, Value: "00200"}},
	}

	result := domain.Summarize(rows)

	if result.Accepted != 2 || result.Rejected != 2 {
		t.Errorf("Expected 2 accepted and 2 rejected, got %d and %d", result.Accepted, result.Rejected)
	}
	if result.Accepted+result.Rejected != len(rows) {
		t.Errorf("Expected counts to add up to %d", len(rows))
	}
	if result.AcceptedReadings[0].ID != 1 || result.AcceptedReadings[1].ID != 2 {
		t.Errorf("Expected accepted readings in row order, got %+v", result.AcceptedReadings)
	}
}

func TestSummarize_Empty(t *testing.T) {
	result := domain.Summarize(nil)
	if result.Accepted != 0 || result.Rejected != 0 {
		t.Errorf("Expected zero counts, got %+v", result)
	}
	if result.AcceptedReadings == nil {
		t.Error("Expected non-nil accepted readings")
	}
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("failed to persist readings: %w", &domain.PersistenceError{Op: "commit", Err: cause})

	if !errors.Is(err, domain.ErrPersistence) {
		t.Error("Expected error to match ErrPersistence")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected error to unwrap to its cause")
	}

	var perr *domain.PersistenceError
	if !errors.As(err, &perr) || perr.Op != "commit" {
		t.Errorf("Expected commit persistence error, got %v", err)
	}
}
