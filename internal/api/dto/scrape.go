package dto

import (
	"time"

	"review-insights/internal/entity"
)

// SubmitScrapeRequest starts a scrape-and-analyze job for a location.
type SubmitScrapeRequest struct {
	LocationID string `json:"location_id"`
	URL        string `json:"url"`
	MaxReviews int    `json:"max_reviews"`
	UserID     string `json:"-"`
}

// JobResponse is returned when a job is created.
type JobResponse struct {
	JobID      string    `json:"job_id"`
	LocationID string    `json:"location_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// JobStatusResponse reports the current state of a job.
type JobStatusResponse struct {
	JobID         string             `json:"job_id"`
	LocationID    string             `json:"location_id"`
	Status        string             `json:"status"`
	Attempts      int                `json:"attempts"`
	MaxAttempts   int                `json:"max_attempts"`
	Progress      entity.JobProgress `json:"progress"`
	FailureReason string             `json:"failure_reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	FinishedAt    *time.Time         `json:"finished_at,omitempty"`
}

// QueueStatsResponse reports how many jobs sit in each lifecycle state.
type QueueStatsResponse struct {
	Queued    int64 `json:"queued"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// NewJobStatusResponse maps a job row to its API representation.
func NewJobStatusResponse(job *entity.ScrapeJob) *JobStatusResponse {
	return &JobStatusResponse{
		JobID:         job.JobID,
		LocationID:    job.LocationID,
		Status:        job.Status,
		Attempts:      job.Attempts,
		MaxAttempts:   job.MaxAttempts,
		Progress:      job.GetProgress(),
		FailureReason: job.FailureReason,
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		FinishedAt:    job.FinishedAt,
	}
}
