package domain

import "time"

// Account represents a customer account readings are submitted against
type Account struct {
	ID        int64  `db:"id"`
	AccountID int64  `db:"account_id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
}

// MeterReading represents a persisted meter reading
type MeterReading struct {
	ID          int64     `db:"id" json:"id"`
	AccountID   int64     `db:"account_id" json:"account_id"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
	Value       string    `db:"value" json:"value"`
}

// CandidateReading is a reading as it arrives, before validation.
// All fields are kept as raw text so that parsing failures count as
// rejections rather than decode errors.
type CandidateReading struct {
	AccountID   string
	SubmittedAt string
	Value       string
}

// NewReading is a structurally valid reading ready to be inserted
type NewReading struct {
	AccountID    int64
	SubmittedAt  time.Time
	Value        string
	NumericValue int
}

// RowStatus is the outcome of a single row in an ingestion batch
type RowStatus string

const (
	RowAccepted RowStatus = "accepted"
	RowRejected RowStatus = "rejected"
)

// RejectReason explains why a row was rejected
type RejectReason string

const (
	RejectMalformedRow     RejectReason = "malformed_row"
	RejectInvalidAccountID RejectReason = "invalid_account_id"
	RejectInvalidTimestamp RejectReason = "invalid_timestamp"
	RejectInvalidValue     RejectReason = "invalid_value"
	RejectUnknownAccount   RejectReason = "unknown_account"
	RejectNotIncreasing    RejectReason = "not_increasing"
)

// RowOutcome records what happened to one submitted row.
// Index is the row's position in the submission.
type RowOutcome struct {
	Index   int
	Status  RowStatus
	Reason  RejectReason
	Reading *MeterReading
}

// IngestResult is the aggregate outcome returned to callers.
// Accepted + Rejected always equals the number of submitted rows.
type IngestResult struct {
	Accepted         int            `json:"accepted_readings_count"`
	Rejected         int            `json:"rejected_readings_count"`
	AcceptedReadings []MeterReading `json:"accepted_readings"`
}

// Summarize folds row outcomes into an IngestResult.
// Accepted readings keep submission order.
func Summarize(rows []RowOutcome) *IngestResult {
	result := &IngestResult{AcceptedReadings: []MeterReading{}}
	for _, row := range rows {
		if row.Status == RowAccepted && row.Reading != nil {
			result.Accepted++
			result.AcceptedReadings = append(result.AcceptedReadings, *row.Reading)
			continue
		}
		result.Rejected++
	}
	return result
}
