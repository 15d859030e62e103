package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/septivank/meter-readings/internal/domain"
	"github.com/septivank/meter-readings/internal/metrics"
	"github.com/septivank/meter-readings/internal/service"
	"github.com/septivank/meter-readings/internal/validator"
	"go.uber.org/zap"
)

// Persister stores validated readings in one batch
type Persister interface {
	PersistBatch(ctx context.Context, readings []domain.NewReading) (*service.BatchOutcome, error)
}

// Pipeline validates candidate readings and hands the valid ones to the
// persister as one batch
type Pipeline struct {
	validator *validator.Validator
	persister Persister
	logger    *zap.Logger
}

// NewPipeline creates a new ingestion pipeline
func NewPipeline(v *validator.Validator, persister Persister, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		validator: v,
		persister: persister,
		logger:    logger,
	}
}

// IngestCSV parses r and ingests every row
func (p *Pipeline) IngestCSV(ctx context.Context, r io.Reader) (*domain.IngestResult, error) {
	candidates, err := ParseCSV(r)
	if err != nil {
		metrics.ObserveBatch("csv", err)
		return nil, err
	}
	return p.ingest(ctx, "csv", candidates, p.logger)
}

// Ingest validates and persists candidates. Accepted + Rejected of the
// result always equals len(candidates).
func (p *Pipeline) Ingest(ctx context.Context, candidates []domain.CandidateReading) (*domain.IngestResult, error) {
	return p.ingest(ctx, "json", candidates, p.logger)
}

func (p *Pipeline) ingest(ctx context.Context, source string, candidates []domain.CandidateReading, logger *zap.Logger) (*domain.IngestResult, error) {
	if candidates == nil {
		err := fmt.Errorf("%w: candidate list is nil", domain.ErrInvalidInput)
		metrics.ObserveBatch(source, err)
		return nil, err
	}
	if len(candidates) == 0 {
		return domain.Summarize(nil), nil
	}

	rows := make([]domain.RowOutcome, len(candidates))
	valid := make([]domain.NewReading, 0, len(candidates))
	positions := make([]int, 0, len(candidates))

	for i, c := range candidates {
		reading, result := p.validator.Validate(c)
		if !result.IsValid {
			rows[i] = domain.RowOutcome{Index: i, Status: domain.RowRejected, Reason: result.Reason}
			logger.Debug("reading failed validation",
				zap.Int("row", i),
				zap.String("reason", string(result.Reason)),
				zap.String("detail", result.Detail),
			)
			continue
		}
		valid = append(valid, reading)
		positions = append(positions, i)
	}

	if len(valid) > 0 {
		outcome, err := p.persister.PersistBatch(ctx, valid)
		if err != nil {
			metrics.ObserveBatch(source, err)
			return nil, fmt.Errorf("failed to persist readings: %w", err)
		}
		for j, row := range outcome.Rows {
			row.Index = positions[j]
			rows[positions[j]] = row
		}
	}

	result := domain.Summarize(rows)
	metrics.ObserveReadings(result.Accepted, rejectedByReason(rows))
	metrics.ObserveBatch(source, nil)

	logger.Info("readings ingested",
		zap.String("source", source),
		zap.Int("submitted", len(candidates)),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", result.Rejected),
	)

	return result, nil
}

func rejectedByReason(rows []domain.RowOutcome) map[string]int {
	counts := make(map[string]int)
	for _, row := range rows {
		if row.Status == domain.RowRejected {
			counts[string(row.Reason)]++
		}
	}
	return counts
}
