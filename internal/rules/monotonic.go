package rules

import (
	"fmt"

	"github.com/septivank/meter-readings/internal/domain"
)

// Monotonic enforces that an account's readings strictly increase
type Monotonic struct{}

// NewMonotonic creates a new monotonic value rule
func NewMonotonic() *Monotonic {
	return &Monotonic{}
}

// Check compares a candidate value against the account's latest value.
// latest is nil when the account has no prior reading.
func (m *Monotonic) Check(value int, latest *int) (bool, string) {
	if latest == nil {
		return true, ""
	}

	if value <= *latest {
		return false, fmt.Sprintf("value %d does not exceed latest reading %d", value, *latest)
	}

	return true, ""
}

// Classify decides the rejection reason for a candidate that was not inserted
func (m *Monotonic) Classify(accountExists bool, value int, latest *int) domain.RejectReason {
	if !accountExists {
		return domain.RejectUnknownAccount
	}
	if ok, _ := m.Check(value, latest); !ok {
		return domain.RejectNotIncreasing
	}
	return ""
}
