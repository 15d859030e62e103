package query

import (
	"cmp"
	"fmt"
	"sort"
	"time"
)

// FieldFunc returns the value of a named field of item
type FieldFunc[T any] func(item T, field string) (any, bool)

// PageInMemory applies predicates, ordering and slicing to items with the
// same semantics as Paginate.
func PageInMemory[T any](items []T, src Source, req PageRequest, preds []Predicate, field FieldFunc[T]) (*PageResult[T], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sortKey, err := src.sortKey(req)
	if err != nil {
		return nil, err
	}
	if err := validatePredicates(preds, src.Columns); err != nil {
		return nil, err
	}

	filtered := make([]T, 0, len(items))
	for _, item := range items {
		ok, err := matchAll(item, preds, field)
		if err != nil {
			return nil, err
		}
		if ok {
			filtered = append(filtered, item)
		}
	}

	var sortErr error
	sort.SliceStable(filtered, func(i, j int) bool {
		c, err := compareFields(filtered[i], filtered[j], sortKey, field)
		if err == nil && c == 0 && sortKey != src.IdentityColumn {
			c, err = compareFields(filtered[i], filtered[j], src.IdentityColumn, field)
		}
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}

	result := &PageResult[T]{
		TotalCount: int64(len(filtered)),
		PageSize:   req.PageSize,
		Page:       req.Page,
		Items:      []T{},
	}

	offset := req.Offset()
	if offset >= len(filtered) {
		return result, nil
	}
	end := min(offset+req.PageSize, len(filtered))
	result.Items = append(result.Items, filtered[offset:end]...)

	return result, nil
}

func matchAll[T any](item T, preds []Predicate, field FieldFunc[T]) (bool, error) {
	for _, p := range preds {
		v, ok := field(item, p.Field)
		if !ok {
			return false, fmt.Errorf("%w: unknown field %q", ErrInvalidPredicate, p.Field)
		}
		c, err := compareValues(v, p.Value)
		if err != nil {
			return false, err
		}
		if !p.Op.holds(c) {
			return false, nil
		}
	}
	return true, nil
}

func (o Operator) holds(c int) bool {
	switch o {
	case OpEq:
		return c == 0
	case OpNotEq:
		return c != 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

func compareFields[T any](a, b T, name string, field FieldFunc[T]) (int, error) {
	av, ok := field(a, name)
	if !ok {
		return 0, fmt.Errorf("%w: unknown sort key %q", ErrInvalidPageRequest, name)
	}
	bv, _ := field(b, name)
	return compareValues(av, bv)
}

// compareValues orders two field values of compatible kinds.
// Integers of any width compare with each other.
func compareValues(a, b any) (int, error) {
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			return cmp.Compare(ai, bi), nil
		}
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv), nil
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv), nil
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), nil
		}
	}

	return 0, fmt.Errorf("%w: cannot compare %T with %T", ErrInvalidPredicate, a, b)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
