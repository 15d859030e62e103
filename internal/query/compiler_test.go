package query

import (
	"errors"
	"testing"
)

var testColumns = []string{"id", "account_id", "submitted_at", "value"}

func TestCompile_Empty(t *testing.T) {
	frag, err := Compile(nil, testColumns)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if frag.SQL != "TRUE" {
		t.Errorf("Expected TRUE for no predicates, got %q", frag.SQL)
	}
	if len(frag.Args) != 0 {
		t.Errorf("Expected no args, got %v", frag.Args)
	}
}

func TestCompile_SinglePredicate(t *testing.T) {
	frag, err := Compile([]Predicate{Eq("account_id", int64(2344))}, testColumns)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := `"inner_query"."account_id" = @where_0`
	if frag.SQL != expected {
		t.Errorf("Expected %q, got %q", expected, frag.SQL)
	}
	if frag.Args["where_0"] != int64(2344) {
		t.Errorf("Expected where_0 = 2344, got %v", frag.Args["where_0"])
	}
}

func TestCompile_MultiplePredicates_UniqueParameters(t *testing.T) {
	frag, err := Compile([]Predicate{
		Eq("account_id", int64(2344)),
		Where("id", OpGte, int64(10)),
		Where("id", OpLt, int64(20)),
	}, testColumns)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := `"inner_query"."account_id" = @where_0 AND "inner_query"."id" >= @where_1 AND "inner_query"."id" < @where_2`
	if frag.SQL != expected {
		t.Errorf("Expected %q, got %q", expected, frag.SQL)
	}
	if len(frag.Args) != 3 {
		t.Fatalf("Expected 3 args, got %d", len(frag.Args))
	}
	if frag.Args["where_1"] != int64(10) || frag.Args["where_2"] != int64(20) {
		t.Errorf("Unexpected args: %v", frag.Args)
	}
}

func TestCompile_UnknownField(t *testing.T) {
	_, err := Compile([]Predicate{Eq("1=1; DROP TABLE accounts; --", 1)}, testColumns)
	if !errors.Is(err, ErrInvalidPredicate) {
		t.Errorf("Expected ErrInvalidPredicate, got %v", err)
	}
}

func TestCompile_UnsupportedOperator(t *testing.T) {
	_, err := Compile([]Predicate{Where("id", Operator("LIKE"), 1)}, testColumns)
	if !errors.Is(err, ErrInvalidPredicate) {
		t.Errorf("Expected ErrInvalidPredicate, got %v", err)
	}
}

func TestCompile_NilValue(t *testing.T) {
	_, err := Compile([]Predicate{Eq("id", nil)}, testColumns)
	if !errors.Is(err, ErrInvalidPredicate) {
		t.Errorf("Expected ErrInvalidPredicate, got %v", err)
	}
}
