package timeparser

import (
	"fmt"
	"strings"
	"time"
)

// submittedAtLayouts are tried in order. All layouts are fixed so parsing
// never depends on the host locale.
var submittedAtLayouts = []string{
	"02/01/2006 15:04",    // DD/MM/YYYY HH:mm
	"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseSubmittedAt parses a reading submission timestamp.
// Layouts without a zone are interpreted as UTC.
func ParseSubmittedAt(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: empty value")
	}

	var lastErr error
	for _, layout := range submittedAtLayouts {
		t, err := time.Parse(layout, dateStr)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}

// Format renders a timestamp in the canonical wire layout
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
