package service

import (
	"context"
	"fmt"

	"github.com/septivank/meter-readings/internal/domain"
	"github.com/septivank/meter-readings/internal/query"
)

// ReadingsService answers read-only queries over stored readings
type ReadingsService struct {
	store       Store
	maxPageSize int
}

// NewReadingsService creates a new readings service.
// maxPageSize <= 0 leaves page size unbounded.
func NewReadingsService(store Store, maxPageSize int) *ReadingsService {
	return &ReadingsService{store: store, maxPageSize: maxPageSize}
}

// FindByID returns the reading with the given id or domain.ErrNotFound
func (s *ReadingsService) FindByID(ctx context.Context, id int64) (*domain.MeterReading, error) {
	reading, err := s.store.FindReadingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find meter reading %d: %w", id, err)
	}
	return reading, nil
}

// List returns one page of readings, optionally restricted to one account
func (s *ReadingsService) List(ctx context.Context, req query.PageRequest, accountID *int64) (*query.PageResult[domain.MeterReading], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.maxPageSize > 0 && req.PageSize > s.maxPageSize {
		return nil, fmt.Errorf("%w: page size must be <= %d, got %d", query.ErrInvalidPageRequest, s.maxPageSize, req.PageSize)
	}

	var preds []query.Predicate
	if accountID != nil {
		preds = append(preds, query.Eq("account_id", *accountID))
	}

	page, err := s.store.ListReadings(ctx, req, preds...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meter readings: %w", err)
	}
	return page, nil
}

// Ping reports whether the store is reachable
func (s *ReadingsService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
