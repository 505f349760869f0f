package repository

import (
	"context"
	"time"

	"review-insights/internal/entity"

	"gorm.io/gorm"
)

// ScrapeJobRepository defines the interface for scrape job data operations.
type ScrapeJobRepository interface {
	Create(ctx context.Context, job *entity.ScrapeJob) error
	FindByJobID(ctx context.Context, jobID string) (*entity.ScrapeJob, error)
	Update(ctx context.Context, job *entity.ScrapeJob) error
	FindOpenByLocation(ctx context.Context, locationID string) (*entity.ScrapeJob, error)
	FindDueRetries(ctx context.Context, now time.Time, limit int) ([]entity.ScrapeJob, error)
	FindStalled(ctx context.Context, updatedSince time.Time) ([]entity.ScrapeJob, error)
	FindByLocation(ctx context.Context, locationID string, limit int) ([]entity.ScrapeJob, error)
	FindByRequester(ctx context.Context, requestedBy string, limit int) ([]entity.ScrapeJob, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	Delete(ctx context.Context, jobID string) error
}

// NewScrapeJobRepository creates a new GORM-based scrape job repository.
func NewScrapeJobRepository(db *gorm.DB) ScrapeJobRepository {
	return &scrapeJobRepository{db: db}
}

type scrapeJobRepository struct {
	db *gorm.DB
}

// Create creates a new scrape job in the database.
func (r *scrapeJobRepository) Create(ctx context.Context, job *entity.ScrapeJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// FindByJobID retrieves a job by its external job ID. Returns nil when not found.
func (r *scrapeJobRepository) FindByJobID(ctx context.Context, jobID string) (*entity.ScrapeJob, error) {
	var job entity.ScrapeJob
	result := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &job, nil
}

// Update saves all fields of an existing job.
func (r *scrapeJobRepository) Update(ctx context.Context, job *entity.ScrapeJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// FindOpenByLocation retrieves the location's queued or active job, if any.
// Used as an advisory duplicate-submission check.
func (r *scrapeJobRepository) FindOpenByLocation(ctx context.Context, locationID string) (*entity.ScrapeJob, error) {
	var job entity.ScrapeJob
	result := r.db.WithContext(ctx).
		Where("location_id = ? AND status IN ?", locationID, []string{entity.JobStatusQueued, entity.JobStatusActive}).
		Order("created_at desc").
		First(&job)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &job, nil
}

// FindDueRetries retrieves queued jobs whose backoff delay has elapsed.
func (r *scrapeJobRepository) FindDueRetries(ctx context.Context, now time.Time, limit int) ([]entity.ScrapeJob, error) {
	var jobs []entity.ScrapeJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", entity.JobStatusQueued, now).
		Order("next_retry_at asc").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindStalled retrieves active jobs with no write since the given cutoff.
// Every progress update bumps updated_at, so a long run that keeps reporting
// stays out of the result and only jobs whose worker died mid-run match.
func (r *scrapeJobRepository) FindStalled(ctx context.Context, updatedSince time.Time) ([]entity.ScrapeJob, error) {
	var jobs []entity.ScrapeJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at <= ?", entity.JobStatusActive, updatedSince).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindByLocation retrieves the most recent jobs for a location.
func (r *scrapeJobRepository) FindByLocation(ctx context.Context, locationID string, limit int) ([]entity.ScrapeJob, error) {
	var jobs []entity.ScrapeJob
	err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("created_at desc").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// CountByStatus returns the number of jobs per lifecycle state.
func (r *scrapeJobRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&entity.ScrapeJob{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Delete removes a job row. Used by cancellation so later status lookups
// report the job as gone.
func (r *scrapeJobRepository) Delete(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&entity.ScrapeJob{}).Error
}

// FindByRequester retrieves the most recent jobs submitted by a user.
func (r *scrapeJobRepository) FindByRequester(ctx context.Context, requestedBy string, limit int) ([]entity.ScrapeJob, error) {
	var jobs []entity.ScrapeJob
	err := r.db.WithContext(ctx).
		Where("requested_by = ?", requestedBy).
		Order("created_at desc").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
