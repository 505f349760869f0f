package service

import (
	"context"
	"fmt"
	"time"

	"review-insights/internal/api/dto"
	"review-insights/internal/entity"
	"review-insights/internal/repository"
	workerdto "review-insights/internal/worker/dto"
	"review-insights/pkg/common"
	"review-insights/pkg/logger"
	"review-insights/pkg/queue"
	"review-insights/pkg/utils"
)

const (
	maxReviewsCeiling = 800
	defaultMaxReviews = 100

	listJobsLimit = 20
)

// ScrapeJobService manages the submission side of the pipeline: it creates
// job rows, publishes them to the work stream and exposes their status.
type ScrapeJobService interface {
	Submit(ctx context.Context, req *dto.SubmitScrapeRequest) (*dto.JobResponse, error)
	GetStatus(ctx context.Context, jobID string) (*dto.JobStatusResponse, error)
	ListByLocation(ctx context.Context, locationID string) ([]dto.JobStatusResponse, error)
	ListByUser(ctx context.Context, userID string) ([]dto.JobStatusResponse, error)
	QueueStats(ctx context.Context) (*dto.QueueStatsResponse, error)
	Cancel(ctx context.Context, jobID, userID string) error
}

// NewScrapeJobService creates a new scrape job service.
func NewScrapeJobService(
	jobRepo repository.ScrapeJobRepository,
	locationRepo repository.LocationRepository,
	publisher *queue.Publisher,
	log *logger.Logger,
) ScrapeJobService {
	return &scrapeJobService{
		jobRepo:      jobRepo,
		locationRepo: locationRepo,
		publisher:    publisher,
		logger:       log,
	}
}

type scrapeJobService struct {
	jobRepo      repository.ScrapeJobRepository
	locationRepo repository.LocationRepository
	publisher    *queue.Publisher
	logger       *logger.Logger
}

// Submit validates the request, creates a queued job and publishes it to
// the scrape stream. A location with an open job is rejected so the same
// place is not scraped twice concurrently.
func (s *scrapeJobService) Submit(ctx context.Context, req *dto.SubmitScrapeRequest) (*dto.JobResponse, error) {
	if req.LocationID == "" {
		return nil, fmt.Errorf("%w: location_id is required", ErrValidation)
	}
	if req.MaxReviews == 0 {
		req.MaxReviews = defaultMaxReviews
	}
	if req.MaxReviews < 1 || req.MaxReviews > maxReviewsCeiling {
		return nil, fmt.Errorf("%w: max_reviews must be between 1 and %d", ErrValidation, maxReviewsCeiling)
	}

	location, err := s.locationRepo.FindByID(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}
	if location == nil {
		return nil, fmt.Errorf("%w: location %s", ErrNotFound, req.LocationID)
	}

	sourceURL := req.URL
	if sourceURL == "" {
		sourceURL = location.GoogleMapsURL
	}
	if !utils.ValidateGoogleMapsURL(sourceURL) {
		return nil, fmt.Errorf("%w: not a Google Maps place URL", ErrValidation)
	}

	open, err := s.jobRepo.FindOpenByLocation(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, fmt.Errorf("%w: location already has job %s (%s)", ErrConflict, open.JobID, open.Status)
	}

	now := time.Now()
	job := &entity.ScrapeJob{
		JobID:       entity.NewJobID(location.ID, now),
		LocationID:  location.ID,
		SourceURL:   sourceURL,
		MaxItems:    req.MaxReviews,
		RequestedBy: req.UserID,
		Status:      entity.JobStatusQueued,
		MaxAttempts: entity.DefaultMaxAttempts,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	if err := s.locationRepo.UpdateScrapeStatus(ctx, location.ID, entity.ScrapeStatusPending); err != nil {
		s.logger.Error("Failed to mark location pending",
			logger.ErrorField(err),
			logger.StringField("location_id", location.ID))
	}

	if _, err := s.publisher.Publish(ctx, common.RedisStreamScrapeJobs, workerdto.ScrapeJobMessage{
		JobID:      job.JobID,
		LocationID: job.LocationID,
		SourceURL:  job.SourceURL,
		MaxItems:   job.MaxItems,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("Scrape job submitted",
		logger.StringField("job_id", job.JobID),
		logger.StringField("location_id", job.LocationID),
		logger.IntField("max_reviews", job.MaxItems))

	return &dto.JobResponse{
		JobID:      job.JobID,
		LocationID: job.LocationID,
		Status:     job.Status,
		CreatedAt:  job.CreatedAt,
	}, nil
}

// GetStatus returns the current state of a job. Cancelled jobs are gone
// and report not found.
func (s *scrapeJobService) GetStatus(ctx context.Context, jobID string) (*dto.JobStatusResponse, error) {
	job, err := s.jobRepo.FindByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	return dto.NewJobStatusResponse(job), nil
}

// ListByLocation returns the most recent jobs for a location.
func (s *scrapeJobService) ListByLocation(ctx context.Context, locationID string) ([]dto.JobStatusResponse, error) {
	jobs, err := s.jobRepo.FindByLocation(ctx, locationID, listJobsLimit)
	if err != nil {
		return nil, err
	}
	return mapJobResponses(jobs), nil
}

// ListByUser returns the most recent jobs submitted by a user.
func (s *scrapeJobService) ListByUser(ctx context.Context, userID string) ([]dto.JobStatusResponse, error) {
	jobs, err := s.jobRepo.FindByRequester(ctx, userID, listJobsLimit)
	if err != nil {
		return nil, err
	}
	return mapJobResponses(jobs), nil
}

// QueueStats reports the job counts per lifecycle state.
func (s *scrapeJobService) QueueStats(ctx context.Context) (*dto.QueueStatsResponse, error) {
	counts, err := s.jobRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.QueueStatsResponse{
		Queued:    counts[entity.JobStatusQueued],
		Active:    counts[entity.JobStatusActive],
		Completed: counts[entity.JobStatusCompleted],
		Failed:    counts[entity.JobStatusFailed],
	}, nil
}

// Cancel removes a non-terminal job. The worker notices the missing row
// and discards any in-flight results, so cancellation is safe mid-run.
func (s *scrapeJobService) Cancel(ctx context.Context, jobID, userID string) error {
	job, err := s.jobRepo.FindByJobID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	if job.RequestedBy != "" && userID != "" && job.RequestedBy != userID {
		return fmt.Errorf("%w: job belongs to another user", ErrForbidden)
	}
	if job.IsTerminal() {
		return fmt.Errorf("%w: cannot cancel a %s job", ErrConflict, job.Status)
	}

	if err := s.jobRepo.Delete(ctx, jobID); err != nil {
		return err
	}

	location, err := s.locationRepo.FindByID(ctx, job.LocationID)
	if err == nil && location != nil {
		now := time.Now()
		location.ScrapeStatus = entity.ScrapeStatusFailed
		location.LastScrapeError = "Job cancelled by user"
		location.LastScrapeErrorAt = &now
		if err := s.locationRepo.Update(ctx, location); err != nil {
			s.logger.Error("Failed to update location after cancel",
				logger.ErrorField(err),
				logger.StringField("location_id", location.ID))
		}
	}

	s.logger.Info("Scrape job cancelled",
		logger.StringField("job_id", jobID),
		logger.StringField("user_id", userID))
	return nil
}

func mapJobResponses(jobs []entity.ScrapeJob) []dto.JobStatusResponse {
	out := make([]dto.JobStatusResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, *dto.NewJobStatusResponse(&jobs[i]))
	}
	return out
}
