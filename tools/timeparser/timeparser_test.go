package timeparser_test

import (
	"testing"
	"time"

	"github.com/septivank/meter-readings/tools/timeparser"
)

func TestParseSubmittedAt_DayMonthYearMinutes(t *testing.T) {
	result, err := timeparser.ParseSubmittedAt("22/04/2019 09:24")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2019, 4, 22, 9, 24, 0, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseSubmittedAt_DayMonthYearSeconds(t *testing.T) {
	result, err := timeparser.ParseSubmittedAt("29/12/2025 10:30:45")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2025, 12, 29, 10, 30, 45, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseSubmittedAt_RFC3339(t *testing.T) {
	result, err := timeparser.ParseSubmittedAt("2025-12-29T12:30:45+02:00")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2025, 12, 29, 10, 30, 45, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
	if result.Location() != time.UTC {
		t.Errorf("Expected UTC location, got %v", result.Location())
	}
}

func TestParseSubmittedAt_ISOWithoutZone(t *testing.T) {
	result, err := timeparser.ParseSubmittedAt(" 2025-12-29 10:30:45 ")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2025, 12, 29, 10, 30, 45, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseSubmittedAt_Invalid(t *testing.T) {
	for _, input := range []string{"", "invalid-date-string", "31/02/2019 09:24", "2019-13-01 00:00:00"} {
		if _, err := timeparser.ParseSubmittedAt(input); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}
}

func TestFormat(t *testing.T) {
	ts := time.Date(2019, 4, 22, 9, 24, 0, 0, time.FixedZone("X", 3600))
	if got := timeparser.Format(ts); got != "2019-04-22T08:24:00Z" {
		t.Errorf("Expected 2019-04-22T08:24:00Z, got %s", got)
	}
}
