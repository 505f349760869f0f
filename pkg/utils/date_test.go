package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseReviewDate_Relative(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"3 weeks ago", now.AddDate(0, 0, -21)},
		{"5 days ago", now.AddDate(0, 0, -5)},
		{"2 months ago", now.AddDate(0, -2, 0)},
		{"1 year ago", now.AddDate(-1, 0, 0)},
		{"a month ago", now.AddDate(0, -1, 0)},
		{"an hour ago", now.Add(-time.Hour)},
		{"45 minutes ago", now.Add(-45 * time.Minute)},
	}

	for _, tt := range tests {
		got := ParseReviewDate(tt.input, now)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestParseReviewDate_Absolute(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	got := ParseReviewDate("2025-11-02T08:30:00Z", now)
	assert.Equal(t, time.Date(2025, 11, 2, 8, 30, 0, 0, time.UTC), got)

	got = ParseReviewDate("2025-11-02", now)
	assert.Equal(t, time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC), got)
}

func TestParseReviewDate_FallbackToNow(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now, ParseReviewDate("", now))
	assert.Equal(t, now, ParseReviewDate("garbage value", now))
}
