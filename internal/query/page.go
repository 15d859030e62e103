package query

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvalidPageRequest is returned when page or page size is below 1,
// or when the sort key is not a column of the source
var ErrInvalidPageRequest = errors.New("invalid page request")

// PageRequest describes one slice of a result set.
// Page is 1-based. An empty SortKey means the source's identity column.
type PageRequest struct {
	Page     int
	PageSize int
	SortKey  string
}

// NewPageRequest creates a page request sorted by identity
func NewPageRequest(page, pageSize int) PageRequest {
	return PageRequest{Page: page, PageSize: pageSize}
}

// Validate checks the page bounds
func (r PageRequest) Validate() error {
	if r.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidPageRequest, r.Page)
	}
	if r.PageSize < 1 {
		return fmt.Errorf("%w: page size must be >= 1, got %d", ErrInvalidPageRequest, r.PageSize)
	}
	return nil
}

// Offset is the number of rows skipped before this page. Pages whose offset
// does not fit in an int saturate at math.MaxInt, which is past any result set.
func (r PageRequest) Offset() int {
	if r.Page < 1 || r.PageSize < 1 {
		return 0
	}
	if r.Page-1 > math.MaxInt/r.PageSize {
		return math.MaxInt
	}
	return (r.Page - 1) * r.PageSize
}

// PageResult is one page of items plus the total across all pages
type PageResult[T any] struct {
	TotalCount int64 `json:"total_count"`
	PageSize   int   `json:"page_size"`
	Page       int   `json:"page"`
	Items      []T   `json:"items"`
}

// Source is a base query and the columns it exposes to predicates and sorting
type Source struct {
	Query          string
	Columns        []string
	IdentityColumn string
}

func (s Source) sortKey(req PageRequest) (string, error) {
	if req.SortKey == "" {
		return s.IdentityColumn, nil
	}
	if !slices.Contains(s.Columns, req.SortKey) {
		return "", fmt.Errorf("%w: unknown sort key %q", ErrInvalidPageRequest, req.SortKey)
	}
	return req.SortKey, nil
}
