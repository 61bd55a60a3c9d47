package timeutil

import (
	"strings"
	"testing"
	"time"
)

func TestFormatTime(t *testing.T) {
	if got := FormatTime(time.Time{}); got != "-" {
		t.Errorf("Expected '-' for zero time, got %q", got)
	}

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := FormatTime(ts); got != ts.Local().Format(LocalTimeFormat) {
		t.Errorf("Unexpected local format %q", got)
	}
}

func TestFormatAge(t *testing.T) {
	if got := FormatAge(time.Time{}); got != "-" {
		t.Errorf("Expected '-' for zero time, got %q", got)
	}

	got := FormatAge(time.Now().Add(-3 * time.Hour))
	if !strings.Contains(got, "hours ago") {
		t.Errorf("Expected relative age, got %q", got)
	}
}
