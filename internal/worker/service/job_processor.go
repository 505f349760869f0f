package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"review-insights/internal/entity"
	"review-insights/internal/repository"
	"review-insights/internal/worker/config"
	"review-insights/internal/worker/dto"
	"review-insights/internal/worker/scraper"
	"review-insights/pkg/common"
	"review-insights/pkg/logger"
	"review-insights/pkg/queue"
	"review-insights/pkg/telegram"
	"review-insights/pkg/utils"
)

// Progress percentages for the post-scrape stages. Scraping fills 0 to
// pctTransforming from the scraper's own counts, completion is 100.
const (
	pctTransforming = 60
	pctPersisting   = 70
	pctAnalyzing    = 85
)

// JobProcessorService consumes scrape jobs from the Redis stream and runs
// the scrape-transform-analyze pipeline for each one.
type JobProcessorService interface {
	ProcessTask(ctx context.Context)
	ProcessRetries(ctx context.Context)
	ProcessStalled(ctx context.Context)
	RunJob(ctx context.Context, job *entity.ScrapeJob) error
}

// NewJobProcessorService creates a new JobProcessorService.
func NewJobProcessorService(
	cfg *config.Config,
	redisClient *redis.Client,
	publisher *queue.Publisher,
	jobRepo repository.ScrapeJobRepository,
	locationRepo repository.LocationRepository,
	reviewRepo repository.ReviewRepository,
	scraperExec scraper.Executor,
	coordinator AnalysisCoordinatorService,
	telegramBot telegram.Notifier,
	log *logger.Logger,
) JobProcessorService {
	return &jobProcessorService{
		cfg:          cfg,
		redisClient:  redisClient,
		publisher:    publisher,
		jobRepo:      jobRepo,
		locationRepo: locationRepo,
		reviewRepo:   reviewRepo,
		scraperExec:  scraperExec,
		coordinator:  coordinator,
		telegramBot:  telegramBot,
		logger:       log,
	}
}

type jobProcessorService struct {
	cfg          *config.Config
	redisClient  *redis.Client
	publisher    *queue.Publisher
	jobRepo      repository.ScrapeJobRepository
	locationRepo repository.LocationRepository
	reviewRepo   repository.ReviewRepository
	scraperExec  scraper.Executor
	coordinator  AnalysisCoordinatorService
	telegramBot  telegram.Notifier
	logger       *logger.Logger
}

// ProcessTask reads a single message from the scrape jobs stream and runs it.
func (s *jobProcessorService) ProcessTask(ctx context.Context) {
	streams, err := s.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamScrapeJobs, ">"},
		Count:    1,
		Block:    2 * time.Second, // block briefly to allow graceful shutdown
	}).Result()
	if err != nil {
		if err == context.Canceled || err == redis.Nil {
			return
		}
		s.logger.Error("Failed to read from stream", logger.ErrorField(err))
		return
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return
	}

	message := streams[0].Messages[0]

	taskData, ok := message.Values["payload"].(string)
	if !ok {
		s.logger.Error("field 'payload' not found or not a string in stream message", logger.Field("message_id", message.ID))
		s.ackNDel(ctx, message.ID)
		return
	}

	var msg dto.ScrapeJobMessage
	if err := json.Unmarshal([]byte(taskData), &msg); err != nil {
		s.logger.Error("Failed to unmarshal job message", logger.ErrorField(err), logger.Field("message_id", message.ID))
		s.ackNDel(ctx, message.ID)
		return
	}

	job, err := s.jobRepo.FindByJobID(ctx, msg.JobID)
	if err != nil {
		s.logger.Error("Failed to load job", logger.ErrorField(err), logger.StringField("job_id", msg.JobID))
		return
	}
	if job == nil {
		// cancelled before delivery
		s.logger.Info("Job no longer exists, skipping", logger.StringField("job_id", msg.JobID))
		s.ackNDel(ctx, message.ID)
		return
	}
	if job.Status != entity.JobStatusQueued {
		s.logger.Warn("Job not in queued state, skipping",
			logger.StringField("job_id", job.JobID),
			logger.StringField("status", job.Status))
		s.ackNDel(ctx, message.ID)
		return
	}

	if err := s.RunJob(ctx, job); err != nil {
		s.logger.Error("Job run failed", logger.ErrorField(err), logger.StringField("job_id", job.JobID))
	}

	s.ackNDel(ctx, message.ID)
}

// RunJob executes the full pipeline for one job: scrape, transform, persist,
// analyze. On failure the job is requeued with exponential backoff until its
// attempt budget is spent, then marked terminally failed.
func (s *jobProcessorService) RunJob(ctx context.Context, job *entity.ScrapeJob) error {
	now := time.Now()
	job.Status = entity.JobStatusActive
	job.Attempts++
	job.StartedAt = &now
	job.NextRetryAt = nil
	_ = job.SetProgress(entity.JobProgress{Stage: common.StageScraping, Message: "Starting scraper"})
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job active: %w", err)
	}

	if err := s.locationRepo.UpdateScrapeStatus(ctx, job.LocationID, entity.ScrapeStatusScraping); err != nil {
		s.logger.Warn("Failed to update location status", logger.ErrorField(err), logger.StringField("location_id", job.LocationID))
	}

	if err := s.runPipeline(ctx, job); err != nil {
		s.handleFailure(ctx, job, err)
		return err
	}

	return s.finishJob(ctx, job)
}

func (s *jobProcessorService) runPipeline(ctx context.Context, job *entity.ScrapeJob) error {
	// Latest-wins progress: the scraper pushes faster than we want to write,
	// so a full channel is drained before the newest snapshot goes in.
	progressCh := make(chan dto.ScrapeProgress, 1)
	onProgress := func(p dto.ScrapeProgress) {
		for {
			select {
			case progressCh <- p:
				return
			default:
				select {
				case <-progressCh:
				default:
				}
			}
		}
	}

	done := make(chan struct{})
	utils.GoSafe(func() {
		defer close(done)
		for p := range progressCh {
			pct := 0
			if p.Target > 0 {
				pct = p.Collected * pctTransforming / p.Target
			}
			_ = job.SetProgress(entity.JobProgress{
				Stage:          common.StageScraping,
				Percentage:     pct,
				Message:        fmt.Sprintf("Scraped %d of %d reviews", p.Collected, p.Target),
				ItemsProcessed: p.Collected,
			})
			if err := s.jobRepo.Update(ctx, job); err != nil {
				s.logger.Debug("Failed to write progress", logger.ErrorField(err), logger.StringField("job_id", job.JobID))
			}
		}
	})

	result, err := s.scraperExec.Run(ctx, job.SourceURL, job.MaxItems, onProgress)
	close(progressCh)
	<-done
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}

	s.updateStage(ctx, job, common.StageTransforming, pctTransforming, fmt.Sprintf("Transforming %d reviews", len(result.Reviews)))

	reviews := TransformReviews(result.Reviews, job.LocationID, job.SourceURL, time.Now())

	s.updateStage(ctx, job, common.StagePersisting, pctPersisting, "Saving reviews")

	inserted, err := s.reviewRepo.BulkInsertIgnoreDuplicates(ctx, reviews)
	if err != nil {
		return fmt.Errorf("failed to save reviews: %w", err)
	}
	s.logger.Info("Reviews persisted",
		logger.StringField("job_id", job.JobID),
		logger.IntField("scraped", len(reviews)),
		logger.IntField("new", int(inserted)))

	s.updateStage(ctx, job, common.StageAnalyzing, pctAnalyzing, "Analyzing sentiment")

	if _, err := s.coordinator.AnalyzeLocation(ctx, job.LocationID); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	return nil
}

func (s *jobProcessorService) finishJob(ctx context.Context, job *entity.ScrapeJob) error {
	// Re-load: a cancel while we were running removes the row, and a
	// completed update would resurrect it.
	current, err := s.jobRepo.FindByJobID(ctx, job.JobID)
	if err != nil {
		return err
	}
	if current == nil {
		s.logger.Info("Job cancelled during run, discarding result state", logger.StringField("job_id", job.JobID))
		return nil
	}

	now := time.Now()
	job.Status = entity.JobStatusCompleted
	job.FinishedAt = &now
	job.FailureReason = ""
	_ = job.SetProgress(entity.JobProgress{
		Stage:      common.StageCompleted,
		Percentage: 100,
		Message:    "Scraping and analysis completed",
	})
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	location, err := s.locationRepo.FindByID(ctx, job.LocationID)
	if err != nil || location == nil {
		return err
	}
	location.ScrapeStatus = entity.ScrapeStatusCompleted
	location.LastScrapedAt = &now
	location.LastScrapeError = ""
	location.LastScrapeErrorAt = nil
	if err := s.locationRepo.Update(ctx, location); err != nil {
		return fmt.Errorf("failed to update location after completion: %w", err)
	}

	s.logger.Info("Job completed", logger.StringField("job_id", job.JobID))
	return nil
}

func (s *jobProcessorService) handleFailure(ctx context.Context, job *entity.ScrapeJob, runErr error) {
	current, err := s.jobRepo.FindByJobID(ctx, job.JobID)
	if err != nil {
		s.logger.Error("Failed to load job during failure handling", logger.ErrorField(err), logger.StringField("job_id", job.JobID))
		return
	}
	if current == nil {
		s.logger.Info("Job cancelled during run, skipping failure handling", logger.StringField("job_id", job.JobID))
		return
	}

	job.FailureReason = runErr.Error()

	if job.Attempts < job.MaxAttempts {
		delay := s.RetryDelay(job.Attempts)
		retryAt := time.Now().Add(delay)
		job.Status = entity.JobStatusQueued
		job.NextRetryAt = &retryAt
		_ = job.SetProgress(entity.JobProgress{
			Stage:   common.StageQueued,
			Message: fmt.Sprintf("Attempt %d failed, retrying in %s", job.Attempts, delay),
		})
		if err := s.jobRepo.Update(ctx, job); err != nil {
			s.logger.Error("Failed to requeue job", logger.ErrorField(err), logger.StringField("job_id", job.JobID))
		}
		if err := s.locationRepo.UpdateScrapeStatus(ctx, job.LocationID, entity.ScrapeStatusPending); err != nil {
			s.logger.Warn("Failed to update location status", logger.ErrorField(err))
		}
		s.logger.Warn("Job attempt failed, scheduled retry",
			logger.StringField("job_id", job.JobID),
			logger.IntField("attempt", job.Attempts),
			logger.Field("retry_in", delay),
			logger.ErrorField(runErr))
		return
	}

	now := time.Now()
	job.Status = entity.JobStatusFailed
	job.FinishedAt = &now
	if err := s.jobRepo.Update(ctx, job); err != nil {
		s.logger.Error("Failed to mark job failed", logger.ErrorField(err), logger.StringField("job_id", job.JobID))
	}

	location, lerr := s.locationRepo.FindByID(ctx, job.LocationID)
	if lerr == nil && location != nil {
		location.ScrapeStatus = entity.ScrapeStatusFailed
		location.LastScrapeError = runErr.Error()
		location.LastScrapeErrorAt = &now
		if err := s.locationRepo.Update(ctx, location); err != nil {
			s.logger.Warn("Failed to update location after terminal failure", logger.ErrorField(err))
		}
	}

	s.logger.Error("Job failed terminally",
		logger.StringField("job_id", job.JobID),
		logger.IntField("attempts", job.Attempts),
		logger.ErrorField(runErr))

	s.notifyFailure(job, location, runErr)
}

func (s *jobProcessorService) notifyFailure(job *entity.ScrapeJob, location *entity.Location, runErr error) {
	if s.telegramBot == nil {
		return
	}
	alert := telegram.JobFailureAlert{
		JobID:       job.JobID,
		LocationURL: job.SourceURL,
		Attempts:    job.Attempts,
		LastError:   runErr.Error(),
		FailedAt:    time.Now(),
	}
	if location != nil {
		alert.LocationName = location.Name
	}
	if err := s.telegramBot.SendMessage(telegram.FormatJobFailureAlert(alert)); err != nil {
		s.logger.Warn("Failed to send failure alert", logger.ErrorField(err))
	}
}

// RetryDelay returns the backoff before the given completed attempt count is
// retried. Delays double per attempt.
func (s *jobProcessorService) RetryDelay(attempts int) time.Duration {
	delay := s.cfg.Worker.RetryBackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}

// ProcessRetries republishes queued jobs whose backoff has elapsed.
func (s *jobProcessorService) ProcessRetries(ctx context.Context) {
	jobs, err := s.jobRepo.FindDueRetries(ctx, time.Now(), 10)
	if err != nil {
		s.logger.Error("Failed to find due retries", logger.ErrorField(err))
		return
	}

	for i := range jobs {
		job := &jobs[i]
		job.NextRetryAt = nil
		if err := s.jobRepo.Update(ctx, job); err != nil {
			s.logger.Error("Failed to clear retry marker", logger.ErrorField(err), logger.StringField("job_id", job.JobID))
			continue
		}
		if _, err := s.publisher.Publish(ctx, common.RedisStreamScrapeJobs, dto.ScrapeJobMessage{
			JobID:      job.JobID,
			LocationID: job.LocationID,
			SourceURL:  job.SourceURL,
			MaxItems:   job.MaxItems,
		}); err != nil {
			s.logger.Error("Failed to republish job", logger.ErrorField(err), logger.StringField("job_id", job.JobID))
			continue
		}
		s.logger.Info("Retry published", logger.StringField("job_id", job.JobID), logger.IntField("attempt", job.Attempts))
	}
}

// ProcessStalled fails over jobs whose worker died mid-run. Stalled jobs go
// back through the normal failure path, so they retry until the attempt
// budget is spent.
func (s *jobProcessorService) ProcessStalled(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.Worker.StallAfter)
	jobs, err := s.jobRepo.FindStalled(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to find stalled jobs", logger.ErrorField(err))
		return
	}

	for i := range jobs {
		job := &jobs[i]
		s.logger.Warn("Detected stalled job",
			logger.StringField("job_id", job.JobID),
			logger.Field("last_update", job.UpdatedAt))
		s.handleFailure(ctx, job, fmt.Errorf("job stalled: no progress since %s", job.UpdatedAt.Format(time.RFC3339)))
	}
}

func (s *jobProcessorService) updateStage(ctx context.Context, job *entity.ScrapeJob, stage string, percentage int, message string) {
	_ = job.SetProgress(entity.JobProgress{Stage: stage, Percentage: percentage, Message: message})
	if err := s.jobRepo.Update(ctx, job); err != nil {
		s.logger.Debug("Failed to write progress", logger.ErrorField(err), logger.StringField("job_id", job.JobID))
	}
}

func (s *jobProcessorService) ackNDel(ctx context.Context, messageID string) {
	if err := s.redisClient.XAck(ctx, common.RedisStreamScrapeJobs, common.RedisStreamGroup, messageID).Err(); err != nil {
		s.logger.Error("Failed to acknowledge message", logger.ErrorField(err), logger.Field("message_id", messageID))
		return
	}
	if err := s.redisClient.XDel(ctx, common.RedisStreamScrapeJobs, messageID).Err(); err != nil {
		s.logger.Error("Failed to delete message", logger.ErrorField(err), logger.Field("message_id", messageID))
	}
}
