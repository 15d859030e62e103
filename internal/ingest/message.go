package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/septivank/meter-readings/internal/domain"
	"github.com/septivank/meter-readings/internal/logging"
	"go.uber.org/zap"
)

// Text is a JSON scalar kept as raw text. Strings are used as is, numbers
// keep their literal form and null becomes empty.
type Text string

// UnmarshalJSON implements json.Unmarshaler
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		return fmt.Errorf("expected a scalar, got %s", data)
	}
	*t = Text(data)
	return nil
}

// SubmittedReading is one reading as submitted over HTTP or the queue
type SubmittedReading struct {
	AccountID   Text `json:"account_id"`
	SubmittedAt Text `json:"submitted_at"`
	Value       Text `json:"value"`
}

// ToCandidate converts the submission into an unvalidated candidate
func (r SubmittedReading) ToCandidate() domain.CandidateReading {
	return domain.CandidateReading{
		AccountID:   string(r.AccountID),
		SubmittedAt: string(r.SubmittedAt),
		Value:       string(r.Value),
	}
}

// Candidates converts submissions, keeping a nil slice nil
func Candidates(readings []SubmittedReading) []domain.CandidateReading {
	if readings == nil {
		return nil
	}
	candidates := make([]domain.CandidateReading, len(readings))
	for i, r := range readings {
		candidates[i] = r.ToCandidate()
	}
	return candidates
}

// Submission is a queued batch of readings
type Submission struct {
	RequestID string             `json:"request_id"`
	Readings  []SubmittedReading `json:"readings"`
}

// HandleMessage decodes a queued submission and ingests it. Decode failures
// and missing reading lists return an error wrapping domain.ErrInvalidInput.
func (p *Pipeline) HandleMessage(ctx context.Context, body []byte) error {
	var msg Submission
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: failed to unmarshal submission: %v", domain.ErrInvalidInput, err)
	}
	if msg.RequestID == "" {
		msg.RequestID = uuid.New().String()
	}

	reqLogger := logging.WithRequestID(p.logger, msg.RequestID)
	reqLogger.Info("processing submission", zap.Int("readings_count", len(msg.Readings)))

	result, err := p.ingest(ctx, "queue", Candidates(msg.Readings), reqLogger)
	if err != nil {
		reqLogger.Error("failed to ingest submission", zap.Error(err))
		return err
	}

	reqLogger.Info("submission processed successfully",
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", result.Rejected),
	)
	return nil
}
