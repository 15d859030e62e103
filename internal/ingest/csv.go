package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/septivank/meter-readings/internal/domain"
)

const utf8BOM = "\ufeff"

// ParseCSV reads account id, submission time and value columns from r.
//
// Extra trailing columns are ignored. A first row whose first column is
// AccountId or account_id is treated as a header and skipped. Rows that are
// short or cannot be decoded are kept as candidates with the missing fields
// empty, so they are counted as rejected rather than dropped. Errors from
// the underlying reader are returned.
func ParseCSV(r io.Reader) ([]domain.CandidateReading, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: csv stream is nil", domain.ErrInvalidInput)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // be permissive; validate ourselves
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	candidates := []domain.CandidateReading{}
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to read csv: %w", err)
			}
			candidates = append(candidates, domain.CandidateReading{})
			first = false
			continue
		}

		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}

		candidates = append(candidates, toCandidate(record))
	}

	return candidates, nil
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(record[0], utf8BOM)))
	return name == "accountid" || name == "account_id"
}

func toCandidate(record []string) domain.CandidateReading {
	field := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}
	return domain.CandidateReading{
		AccountID:   field(0),
		SubmittedAt: field(1),
		Value:       field(2),
	}
}
