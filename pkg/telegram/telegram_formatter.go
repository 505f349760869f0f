package telegram

import (
	"fmt"
	"strings"
	"time"
)

// JobFailureAlert carries the details of a scrape job that exhausted its
// retry budget and needs operator attention.
type JobFailureAlert struct {
	JobID        string
	LocationName string
	LocationURL  string
	Attempts     int
	LastError    string
	FailedAt     time.Time
}

// FormatJobFailureAlert renders a Markdown message for a terminally failed
// scrape job. Error text is truncated so the message stays well under the
// Telegram 4096 character limit.
func FormatJobFailureAlert(alert JobFailureAlert) string {
	const maxErrLen = 500

	errText := strings.TrimSpace(alert.LastError)
	if errText == "" {
		errText = "unknown error"
	}
	if len(errText) > maxErrLen {
		errText = errText[:maxErrLen] + "..."
	}

	var b strings.Builder
	b.WriteString("🚨 *Scrape Job Failed* 🚨\n\n")
	b.WriteString(fmt.Sprintf("*Job:* `%s`\n", alert.JobID))
	b.WriteString(fmt.Sprintf("*Location:* %s\n", alert.LocationName))
	if alert.LocationURL != "" {
		b.WriteString(fmt.Sprintf("*URL:* %s\n", alert.LocationURL))
	}
	b.WriteString(fmt.Sprintf("*Attempts:* %d\n", alert.Attempts))
	b.WriteString(fmt.Sprintf("*Failed at:* %s\n\n", alert.FailedAt.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("*Error:* %s\n", errText))
	return b.String()
}
