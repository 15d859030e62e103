package query

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidPredicate is returned for predicates on unknown fields or with
// unsupported operators
var ErrInvalidPredicate = errors.New("invalid predicate")

// Operator is a comparison applied by a Predicate
type Operator string

const (
	OpEq    Operator = "="
	OpNotEq Operator = "<>"
	OpGt    Operator = ">"
	OpGte   Operator = ">="
	OpLt    Operator = "<"
	OpLte   Operator = "<="
)

func (o Operator) valid() bool {
	switch o {
	case OpEq, OpNotEq, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Predicate is a declarative condition on a single field.
// Each storage backend interprets predicates with its own query builder.
type Predicate struct {
	Field string
	Op    Operator
	Value any
}

// Eq returns a field = value predicate
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// Where returns a predicate with an explicit operator
func Where(field string, op Operator, value any) Predicate {
	return Predicate{Field: field, Op: op, Value: value}
}

func validatePredicates(preds []Predicate, columns []string) error {
	for _, p := range preds {
		if !slices.Contains(columns, p.Field) {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidPredicate, p.Field)
		}
		if !p.Op.valid() {
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidPredicate, p.Op)
		}
		if p.Value == nil {
			return fmt.Errorf("%w: nil value for field %q", ErrInvalidPredicate, p.Field)
		}
	}
	return nil
}
