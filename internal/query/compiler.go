package query

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// subqueryAlias is the alias every base query is wrapped in
const subqueryAlias = "inner_query"

// Fragment is a compiled WHERE condition and its bound parameters
type Fragment struct {
	SQL  string
	Args pgx.NamedArgs
}

// Compile turns predicates into a single AND-joined Postgres condition over
// inner_query. Each predicate binds its own named parameter (where_0,
// where_1, ...). No predicates compile to TRUE.
func Compile(preds []Predicate, columns []string) (Fragment, error) {
	if err := validatePredicates(preds, columns); err != nil {
		return Fragment{}, err
	}

	args := pgx.NamedArgs{}
	if len(preds) == 0 {
		return Fragment{SQL: "TRUE", Args: args}, nil
	}

	parts := make([]string, 0, len(preds))
	for i, p := range preds {
		name := fmt.Sprintf("where_%d", i)
		parts = append(parts, fmt.Sprintf("%s %s @%s", qualify(p.Field), p.Op, name))
		args[name] = p.Value
	}

	return Fragment{SQL: strings.Join(parts, " AND "), Args: args}, nil
}

func qualify(column string) string {
	return pgx.Identifier{subqueryAlias, column}.Sanitize()
}
