package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var relativeDatePattern = regexp.MustCompile(`(?i)(a|an|\d+)\s+(second|minute|hour|day|week|month|year)s?\s+ago`)

// ParseReviewDate converts a scraped publication date into a time.Time.
// Google surfaces relative dates ("3 weeks ago", "a month ago"), so the
// result is best-effort; anything unparseable falls back to now.
func ParseReviewDate(dateString string, now time.Time) time.Time {
	dateString = strings.TrimSpace(dateString)
	if dateString == "" {
		return now
	}

	if m := relativeDatePattern.FindStringSubmatch(dateString); m != nil {
		value := 1
		if m[1] != "a" && m[1] != "an" && m[1] != "A" && m[1] != "An" {
			if v, err := strconv.Atoi(m[1]); err == nil {
				value = v
			}
		}
		switch strings.ToLower(m[2]) {
		case "second":
			return now.Add(-time.Duration(value) * time.Second)
		case "minute":
			return now.Add(-time.Duration(value) * time.Minute)
		case "hour":
			return now.Add(-time.Duration(value) * time.Hour)
		case "day":
			return now.AddDate(0, 0, -value)
		case "week":
			return now.AddDate(0, 0, -value*7)
		case "month":
			return now.AddDate(0, -value, 0)
		case "year":
			return now.AddDate(-value, 0, 0)
		}
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, dateString); err == nil {
			return t
		}
	}

	return now
}
