package validator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/septivank/meter-readings/internal/domain"
	"github.com/septivank/meter-readings/tools/timeparser"
)

const (
	// ValueWidth is the exact number of digits a meter value must have
	ValueWidth = 5

	minValueExclusive = 0
	maxValueExclusive = 99999
)

// ValidationResult holds validation outcome
type ValidationResult struct {
	IsValid bool
	Reason  domain.RejectReason
	Detail  string
}

// Validator checks the structure of candidate readings.
// Account existence is not checked here; the store does that on insert.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a single candidate and returns the parsed reading when valid
func (v *Validator) Validate(c domain.CandidateReading) (domain.NewReading, ValidationResult) {
	result := ValidationResult{IsValid: true}

	if isBlank(c) {
		result.IsValid = false
		result.Reason = domain.RejectMalformedRow
		result.Detail = "row has no fields"
		return domain.NewReading{}, result
	}

	accountID, err := strconv.ParseInt(strings.TrimSpace(c.AccountID), 10, 64)
	if err != nil {
		result.IsValid = false
		result.Reason = domain.RejectInvalidAccountID
		result.Detail = fmt.Sprintf("invalid account id: %v", err)
		return domain.NewReading{}, result
	}

	numeric, err := parseValue(c.Value)
	if err != nil {
		result.IsValid = false
		result.Reason = domain.RejectInvalidValue
		result.Detail = err.Error()
		return domain.NewReading{}, result
	}

	submittedAt, err := timeparser.ParseSubmittedAt(c.SubmittedAt)
	if err != nil {
		result.IsValid = false
		result.Reason = domain.RejectInvalidTimestamp
		result.Detail = fmt.Sprintf("invalid timestamp format: %v", err)
		return domain.NewReading{}, result
	}

	return domain.NewReading{
		AccountID:    accountID,
		SubmittedAt:  submittedAt,
		Value:        c.Value,
		NumericValue: numeric,
	}, result
}

// IsValid reports whether the candidate passes every structural check
func (v *Validator) IsValid(c domain.CandidateReading) bool {
	_, result := v.Validate(c)
	return result.IsValid
}

func isBlank(c domain.CandidateReading) bool {
	return strings.TrimSpace(c.AccountID) == "" &&
		strings.TrimSpace(c.SubmittedAt) == "" &&
		strings.TrimSpace(c.Value) == ""
}

// parseValue enforces exactly ValueWidth ASCII digits in the open range (0, 99999)
func parseValue(value string) (int, error) {
	if len(value) != ValueWidth {
		return 0, fmt.Errorf("value %q must be exactly %d digits", value, ValueWidth)
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return 0, fmt.Errorf("value %q must contain only digits", value)
		}
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid meter value: %w", err)
	}
	if n <= minValueExclusive || n >= maxValueExclusive {
		return 0, fmt.Errorf("value %d out of range", n)
	}

	return n, nil
}
