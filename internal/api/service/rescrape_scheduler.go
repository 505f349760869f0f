package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	apiconfig "review-insights/internal/api/config"
	"review-insights/internal/api/dto"
	"review-insights/internal/repository"
	"review-insights/pkg/logger"
)

// RescrapeScheduler periodically re-submits locations whose scheduled
// rescrape time has passed. Submission goes through the regular job
// service, so rescrapes get the same duplicate protection and retry
// handling as manual jobs.
type RescrapeScheduler struct {
	cfg          *apiconfig.Config
	locationRepo repository.LocationRepository
	jobService   ScrapeJobService
	logger       *logger.Logger
	cron         *cron.Cron
}

// NewRescrapeScheduler creates a new rescrape scheduler.
func NewRescrapeScheduler(
	cfg *apiconfig.Config,
	locationRepo repository.LocationRepository,
	jobService ScrapeJobService,
	log *logger.Logger,
) *RescrapeScheduler {
	return &RescrapeScheduler{
		cfg:          cfg,
		locationRepo: locationRepo,
		jobService:   jobService,
		logger:       log,
		cron:         cron.New(),
	}
}

// Start registers the cron entry and begins scheduling. It is a no-op when
// rescraping is disabled.
func (s *RescrapeScheduler) Start(ctx context.Context) error {
	if !s.cfg.Rescrape.Enabled {
		s.logger.Info("Scheduled rescraping disabled")
		return nil
	}
	_, err := s.cron.AddFunc(s.cfg.Rescrape.CronSchedule, func() {
		s.RunDue(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Rescrape scheduler started",
		logger.StringField("schedule", s.cfg.Rescrape.CronSchedule))
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *RescrapeScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunDue submits a scrape job for every location that is due. Failures are
// logged per location so one bad location does not block the rest; the
// next scheduled time advances either way to avoid hammering a location
// that keeps failing to submit.
func (s *RescrapeScheduler) RunDue(ctx context.Context) {
	now := time.Now()
	locations, err := s.locationRepo.FindDueForRescrape(ctx, now)
	if err != nil {
		s.logger.Error("Failed to query due locations", logger.ErrorField(err))
		return
	}
	if len(locations) == 0 {
		return
	}

	s.logger.Info("Running scheduled rescrape sweep", logger.IntField("due", len(locations)))

	for i := range locations {
		location := &locations[i]

		if _, err := s.jobService.Submit(ctx, &dto.SubmitScrapeRequest{
			LocationID: location.ID,
			URL:        location.GoogleMapsURL,
			MaxReviews: location.MaxReviews,
		}); err != nil {
			s.logger.Error("Failed to submit scheduled rescrape",
				logger.ErrorField(err),
				logger.StringField("location_id", location.ID))
		}

		next := nextScrapeTime(location.ScrapeFrequency, now)
		if err := s.locationRepo.UpdateNextScrapeAt(ctx, location.ID, next); err != nil {
			s.logger.Error("Failed to advance rescrape schedule",
				logger.ErrorField(err),
				logger.StringField("location_id", location.ID))
		}
	}
}
