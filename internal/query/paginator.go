package query

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pageQueries struct {
	Select     string
	Count      string
	SelectArgs pgx.NamedArgs
	CountArgs  pgx.NamedArgs
}

func buildPageQueries(src Source, req PageRequest, preds []Predicate) (pageQueries, error) {
	if err := req.Validate(); err != nil {
		return pageQueries{}, err
	}

	sortKey, err := src.sortKey(req)
	if err != nil {
		return pageQueries{}, err
	}

	where, err := Compile(preds, src.Columns)
	if err != nil {
		return pageQueries{}, err
	}

	filtered := fmt.Sprintf("SELECT * FROM (%s) AS %s WHERE %s", src.Query, subqueryAlias, where.SQL)

	orderBy := qualify(sortKey) + " ASC"
	if sortKey != src.IdentityColumn {
		orderBy += ", " + qualify(src.IdentityColumn) + " ASC"
	}

	selectArgs := pgx.NamedArgs{
		"page_offset": req.Offset(),
		"page_size":   req.PageSize,
	}
	for k, v := range where.Args {
		selectArgs[k] = v
	}

	return pageQueries{
		Select:     filtered + " ORDER BY " + orderBy + " OFFSET @page_offset LIMIT @page_size",
		Count:      "SELECT COUNT(*) FROM (" + filtered + ") AS main_query",
		SelectArgs: selectArgs,
		CountArgs:  where.Args,
	}, nil
}

// Paginate runs a counted, bounded query over src.
// The total is counted over the filtered source, independent of the page.
func Paginate[T any](
	ctx context.Context,
	q Querier,
	src Source,
	req PageRequest,
	preds []Predicate,
	scan pgx.RowToFunc[T],
) (*PageResult[T], error) {
	pq, err := buildPageQueries(src, req, preds)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := q.QueryRow(ctx, pq.Count, pq.CountArgs).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	result := &PageResult[T]{
		TotalCount: total,
		PageSize:   req.PageSize,
		Page:       req.Page,
		Items:      []T{},
	}

	// Nothing to fetch past the last row
	if int64(req.Offset()) >= total {
		return result, nil
	}

	rows, err := q.Query(ctx, pq.Select, pq.SelectArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to query page: %w", err)
	}

	items, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan page: %w", err)
	}
	if items != nil {
		result.Items = items
	}

	return result, nil
}
