package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Scrape job lifecycle states.
const (
	JobStatusQueued    = "queued"
	JobStatusActive    = "active"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// DefaultMaxAttempts is the total number of delivery attempts a job gets
// before it is marked terminally failed.
const DefaultMaxAttempts = 3

// JobProgress is the point-in-time progress snapshot stored on the job.
// Each update overwrites the previous snapshot.
type JobProgress struct {
	Stage          string `json:"stage"`
	Percentage     int    `json:"percentage"`
	Message        string `json:"message"`
	ItemsProcessed int    `json:"items_processed"`
}

// ScrapeJob tracks one scrape-and-analyze run for a location.
type ScrapeJob struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	JobID         string         `gorm:"type:varchar(128);uniqueIndex;not null" json:"job_id"`
	LocationID    string         `gorm:"type:uuid;not null;index" json:"location_id"`
	SourceURL     string         `gorm:"type:text;not null" json:"source_url"`
	MaxItems      int            `gorm:"not null" json:"max_items"`
	RequestedBy   string         `gorm:"type:varchar(255)" json:"requested_by"`
	Status        string         `gorm:"type:varchar(20);not null;index" json:"status"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts   int            `gorm:"not null;default:3" json:"max_attempts"`
	Progress      datatypes.JSON `gorm:"type:jsonb" json:"progress"`
	FailureReason string         `gorm:"type:text" json:"failure_reason"`
	NextRetryAt   *time.Time     `gorm:"index" json:"next_retry_at"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	StartedAt     *time.Time     `json:"started_at"`
	FinishedAt    *time.Time     `json:"finished_at"`
}

// TableName specifies the table name for the ScrapeJob model.
func (ScrapeJob) TableName() string {
	return "scrape_jobs"
}

// NewJobID builds the external job identifier for a location.
func NewJobID(locationID string, now time.Time) string {
	return fmt.Sprintf("scrape-%s-%d", locationID, now.UnixMilli())
}

// IsTerminal reports whether the job has reached a final state.
func (j *ScrapeJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// SetProgress overwrites the job's progress snapshot.
func (j *ScrapeJob) SetProgress(p JobProgress) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	j.Progress = datatypes.JSON(raw)
	return nil
}

// GetProgress decodes the stored progress snapshot. A job without progress
// yet returns the zero value.
func (j *ScrapeJob) GetProgress() JobProgress {
	var p JobProgress
	if len(j.Progress) == 0 {
		return p
	}
	_ = json.Unmarshal(j.Progress, &p)
	return p
}
