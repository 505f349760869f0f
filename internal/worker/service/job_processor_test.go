package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"review-insights/internal/entity"
	"review-insights/internal/repository"
	"review-insights/internal/testutil"
	"review-insights/internal/worker/config"
	"review-insights/internal/worker/dto"
	"review-insights/pkg/cache"
	"review-insights/pkg/common"
	"review-insights/pkg/logger"
	"review-insights/pkg/queue"
)

type stubScraper struct {
	result   *dto.ScrapeResult
	err      error
	progress []dto.ScrapeProgress
	onRun    func()
}

func (s *stubScraper) Run(ctx context.Context, url string, maxReviews int, onProgress func(dto.ScrapeProgress)) (*dto.ScrapeResult, error) {
	for _, p := range s.progress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	if s.onRun != nil {
		s.onRun()
	}
	return s.result, s.err
}

type recordNotifier struct {
	messages []string
}

func (n *recordNotifier) SendMessage(text string) error {
	n.messages = append(n.messages, text)
	return nil
}

type processorEnv struct {
	svc         *jobProcessorService
	db          *gorm.DB
	redisClient *redis.Client
	jobRepo     repository.ScrapeJobRepository
	locRepo     repository.LocationRepository
	reviewRepo  repository.ReviewRepository
	summaryRepo repository.ReviewSummaryRepository
	scraper     *stubScraper
	notifier    *recordNotifier
}

func newProcessorEnv(t *testing.T) *processorEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log, err := logger.New("error", "console")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Worker.BatchSize = 15
	cfg.Worker.Concurrency = 10
	cfg.Worker.RetryBackoffBase = 5 * time.Second
	cfg.Worker.StallAfter = 30 * time.Minute

	jobRepo := repository.NewScrapeJobRepository(db)
	locRepo := repository.NewLocationRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	summaryRepo := repository.NewReviewSummaryRepository(db)

	analyzer := NewBatchAnalyzerService(cfg, &stubAIRepository{}, log)
	coordinator := NewAnalysisCoordinatorService(reviewRepo, summaryRepo, locRepo, analyzer, cache.New(client, log), log)

	sc := &stubScraper{result: &dto.ScrapeResult{}}
	notifier := &recordNotifier{}

	svc := NewJobProcessorService(
		cfg, client, queue.NewPublisher(client, 1000, log),
		jobRepo, locRepo, reviewRepo,
		sc, coordinator, notifier, log,
	).(*jobProcessorService)

	return &processorEnv{
		svc: svc, db: db, redisClient: client,
		jobRepo: jobRepo, locRepo: locRepo,
		reviewRepo: reviewRepo, summaryRepo: summaryRepo,
		scraper: sc, notifier: notifier,
	}
}

func TestJobProcessor_RunJobSuccess(t *testing.T) {
	env := newProcessorEnv(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)
	job := testutil.TestJob(t, env.db, location.ID)

	env.scraper.result = &dto.ScrapeResult{Reviews: []dto.RawReviewRecord{
		{AuthorName: "Alice", Rating: 5, Text: "Great coffee", ReviewDate: "2 weeks ago"},
		{AuthorName: "Bob", Rating: 2, Text: "Slow service", ReviewDate: "a month ago"},
	}}
	env.scraper.progress = []dto.ScrapeProgress{{Collected: 1, Target: 2}, {Collected: 2, Target: 2}}

	require.NoError(t, env.svc.RunJob(ctx, job))

	stored, err := env.jobRepo.FindByJobID(ctx, job.JobID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, entity.JobStatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.NotNil(t, stored.FinishedAt)

	progress := stored.GetProgress()
	assert.Equal(t, common.StageCompleted, progress.Stage)
	assert.Equal(t, 100, progress.Percentage)

	count, err := env.reviewRepo.CountByLocation(ctx, location.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	analyzed, err := env.summaryRepo.CountAnalyzedByLocation(ctx, location.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), analyzed)

	updatedLoc, err := env.locRepo.FindByID(ctx, location.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ScrapeStatusCompleted, updatedLoc.ScrapeStatus)
	assert.NotNil(t, updatedLoc.LastScrapedAt)
	assert.NotNil(t, updatedLoc.LastCalculatedAt)
}

func TestJobProcessor_RetryDelaySchedule(t *testing.T) {
	env := newProcessorEnv(t)

	first := env.svc.RetryDelay(1)
	second := env.svc.RetryDelay(2)
	third := env.svc.RetryDelay(3)

	assert.Equal(t, 5*time.Second, first)
	assert.Equal(t, 10*time.Second, second)
	assert.Equal(t, 20*time.Second, third)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestJobProcessor_FailureRetriesThenTerminal(t *testing.T) {
	env := newProcessorEnv(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)
	job := testutil.TestJob(t, env.db, location.ID)
	env.scraper.err = errors.New("scraper exploded")

	var delays []time.Duration
	for attempt := 1; attempt <= 2; attempt++ {
		fresh, err := env.jobRepo.FindByJobID(ctx, job.JobID)
		require.NoError(t, err)
		require.Error(t, env.svc.RunJob(ctx, fresh))

		stored, err := env.jobRepo.FindByJobID(ctx, job.JobID)
		require.NoError(t, err)
		assert.Equal(t, entity.JobStatusQueued, stored.Status)
		assert.Equal(t, attempt, stored.Attempts)
		require.NotNil(t, stored.NextRetryAt)
		delays = append(delays, time.Until(*stored.NextRetryAt))
	}
	assert.Less(t, delays[0], delays[1], "backoff grows per attempt")

	fresh, err := env.jobRepo.FindByJobID(ctx, job.JobID)
	require.NoError(t, err)
	require.Error(t, env.svc.RunJob(ctx, fresh))

	stored, err := env.jobRepo.FindByJobID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.Attempts)
	assert.Nil(t, stored.NextRetryAt)
	assert.Contains(t, stored.FailureReason, "scraper exploded")

	updatedLoc, err := env.locRepo.FindByID(ctx, location.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ScrapeStatusFailed, updatedLoc.ScrapeStatus)
	assert.Contains(t, updatedLoc.LastScrapeError, "scraper exploded")

	require.Len(t, env.notifier.messages, 1, "terminal failure alerts the operator once")
	assert.Contains(t, env.notifier.messages[0], job.JobID)
}

func TestJobProcessor_CancelledMidRun(t *testing.T) {
	env := newProcessorEnv(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)
	job := testutil.TestJob(t, env.db, location.ID)

	env.scraper.onRun = func() {
		require.NoError(t, env.jobRepo.Delete(ctx, job.JobID))
	}

	require.NoError(t, env.svc.RunJob(ctx, job))

	stored, err := env.jobRepo.FindByJobID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Nil(t, stored, "a cancelled job is not resurrected by completion")
}

func TestJobProcessor_ProcessRetries(t *testing.T) {
	env := newProcessorEnv(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)
	past := time.Now().Add(-time.Minute)
	job := testutil.TestJob(t, env.db, location.ID, func(j *entity.ScrapeJob) {
		j.Attempts = 1
		j.NextRetryAt = &past
	})
	future := time.Now().Add(time.Hour)
	notDue := testutil.TestJob(t, env.db, location.ID, func(j *entity.ScrapeJob) {
		j.NextRetryAt = &future
	})

	env.svc.ProcessRetries(ctx)

	msgs, err := env.redisClient.XRange(ctx, common.RedisStreamScrapeJobs, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1, "only the due job is republished")
	assert.Contains(t, msgs[0].Values["payload"].(string), job.JobID)

	stored, err := env.jobRepo.FindByJobID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Nil(t, stored.NextRetryAt)

	untouched, err := env.jobRepo.FindByJobID(ctx, notDue.JobID)
	require.NoError(t, err)
	assert.NotNil(t, untouched.NextRetryAt)
}

func TestJobProcessor_ProcessStalled(t *testing.T) {
	env := newProcessorEnv(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)
	started := time.Now().Add(-2 * time.Hour)
	stalled := testutil.TestJob(t, env.db, location.ID, func(j *entity.ScrapeJob) {
		j.Status = entity.JobStatusActive
		j.Attempts = 3
		j.StartedAt = &started
	})
	// Started long ago too, but its progress writes keep updated_at fresh.
	reporting := testutil.TestJob(t, env.db, location.ID, func(j *entity.ScrapeJob) {
		j.Status = entity.JobStatusActive
		j.Attempts = 1
		j.StartedAt = &started
	})

	stale := time.Now().Add(-time.Hour)
	require.NoError(t, env.db.Exec(
		"UPDATE scrape_jobs SET updated_at = ? WHERE job_id = ?", stale, stalled.JobID).Error)

	env.svc.ProcessStalled(ctx)

	stored, err := env.jobRepo.FindByJobID(ctx, stalled.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "stalled")

	untouched, err := env.jobRepo.FindByJobID(ctx, reporting.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusActive, untouched.Status,
		"a long run that keeps reporting progress is left alone")
}

// progressPeekCoordinator records the job's persisted progress at the moment
// analysis starts.
type progressPeekCoordinator struct {
	jobRepo repository.ScrapeJobRepository
	jobID   string
	seen    entity.JobProgress
}

func (c *progressPeekCoordinator) AnalyzeLocation(ctx context.Context, locationID string) (*dto.AnalysisStats, error) {
	job, err := c.jobRepo.FindByJobID(ctx, c.jobID)
	if err == nil && job != nil {
		c.seen = job.GetProgress()
	}
	return &dto.AnalysisStats{}, nil
}

func (c *progressPeekCoordinator) RecalculateLocation(ctx context.Context, locationID string) error {
	return nil
}

func TestJobProcessor_IntermediateStagesReportPartialProgress(t *testing.T) {
	env := newProcessorEnv(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)
	job := testutil.TestJob(t, env.db, location.ID)

	peek := &progressPeekCoordinator{jobRepo: env.jobRepo, jobID: job.JobID}
	svc := NewJobProcessorService(
		env.svc.cfg, env.redisClient, env.svc.publisher,
		env.jobRepo, env.locRepo, env.reviewRepo,
		env.scraper, peek, env.notifier, env.svc.logger,
	).(*jobProcessorService)

	require.NoError(t, svc.RunJob(ctx, job))

	assert.Equal(t, common.StageAnalyzing, peek.seen.Stage)
	assert.Greater(t, peek.seen.Percentage, 0)
	assert.Less(t, peek.seen.Percentage, 100, "progress reads full only on completion")

	stored, err := env.jobRepo.FindByJobID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.GetProgress().Percentage)
}
