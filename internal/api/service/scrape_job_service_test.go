package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"review-insights/internal/api/dto"
	"review-insights/internal/entity"
	"review-insights/internal/repository"
	"review-insights/internal/testutil"
	"review-insights/pkg/common"
	"review-insights/pkg/logger"
	"review-insights/pkg/queue"
)

type jobServiceEnv struct {
	db           *gorm.DB
	mr           *miniredis.Miniredis
	redisClient  *redis.Client
	jobRepo      repository.ScrapeJobRepository
	locationRepo repository.LocationRepository
	service      ScrapeJobService
}

func setupJobService(t *testing.T) *jobServiceEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	log, err := logger.New("error", "console")
	require.NoError(t, err)

	jobRepo := repository.NewScrapeJobRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	publisher := queue.NewPublisher(redisClient, 1000, log)

	return &jobServiceEnv{
		db:           db,
		mr:           mr,
		redisClient:  redisClient,
		jobRepo:      jobRepo,
		locationRepo: locationRepo,
		service:      NewScrapeJobService(jobRepo, locationRepo, publisher, log),
	}
}

func TestScrapeJobService_Submit(t *testing.T) {
	env := setupJobService(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)

	resp, err := env.service.Submit(ctx, &dto.SubmitScrapeRequest{
		LocationID: location.ID,
		UserID:     "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusQueued, resp.Status)
	assert.Equal(t, location.ID, resp.LocationID)

	job, err := env.jobRepo.FindByJobID(ctx, resp.JobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 100, job.MaxItems)
	assert.Equal(t, "user-1", job.RequestedBy)
	assert.Equal(t, entity.DefaultMaxAttempts, job.MaxAttempts)

	updated, err := env.locationRepo.FindByID(ctx, location.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ScrapeStatusPending, updated.ScrapeStatus)

	msgs, err := env.redisClient.XRange(ctx, common.RedisStreamScrapeJobs, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestScrapeJobService_SubmitValidation(t *testing.T) {
	env := setupJobService(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)

	_, err := env.service.Submit(ctx, &dto.SubmitScrapeRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.service.Submit(ctx, &dto.SubmitScrapeRequest{LocationID: location.ID, MaxReviews: 801})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.service.Submit(ctx, &dto.SubmitScrapeRequest{LocationID: location.ID, MaxReviews: -1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.service.Submit(ctx, &dto.SubmitScrapeRequest{
		LocationID: location.ID,
		URL:        "https://example.com/not-maps",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.service.Submit(ctx, &dto.SubmitScrapeRequest{LocationID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScrapeJobService_SubmitConflictOnOpenJob(t *testing.T) {
	env := setupJobService(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)
	testutil.TestJob(t, env.db, location.ID, testutil.WithJobStatus(entity.JobStatusActive))

	_, err := env.service.Submit(ctx, &dto.SubmitScrapeRequest{LocationID: location.ID})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestScrapeJobService_SubmitAllowedAfterTerminalJob(t *testing.T) {
	env := setupJobService(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)
	testutil.TestJob(t, env.db, location.ID, testutil.WithJobStatus(entity.JobStatusCompleted))

	_, err := env.service.Submit(ctx, &dto.SubmitScrapeRequest{LocationID: location.ID})
	assert.NoError(t, err)
}

func TestScrapeJobService_CancelRemovesJob(t *testing.T) {
	env := setupJobService(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db, testutil.WithScrapeStatus(entity.ScrapeStatusPending))
	job := testutil.TestJob(t, env.db, location.ID)

	err := env.service.Cancel(ctx, job.JobID, "")
	require.NoError(t, err)

	_, err = env.service.GetStatus(ctx, job.JobID)
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := env.locationRepo.FindByID(ctx, location.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ScrapeStatusFailed, updated.ScrapeStatus)
	assert.Equal(t, "Job cancelled by user", updated.LastScrapeError)
}

func TestScrapeJobService_CancelRejectsTerminalJob(t *testing.T) {
	env := setupJobService(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)
	job := testutil.TestJob(t, env.db, location.ID, testutil.WithJobStatus(entity.JobStatusFailed))

	err := env.service.Cancel(ctx, job.JobID, "")
	assert.ErrorIs(t, err, ErrConflict)

	err = env.service.Cancel(ctx, "unknown-job", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScrapeJobService_CancelRejectsOtherUser(t *testing.T) {
	env := setupJobService(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)
	job := testutil.TestJob(t, env.db, location.ID, func(j *entity.ScrapeJob) {
		j.RequestedBy = "owner"
	})

	err := env.service.Cancel(ctx, job.JobID, "intruder")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestScrapeJobService_QueueStats(t *testing.T) {
	env := setupJobService(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)
	testutil.TestJob(t, env.db, location.ID)
	testutil.TestJob(t, env.db, location.ID, testutil.WithJobStatus(entity.JobStatusActive))
	testutil.TestJob(t, env.db, location.ID, testutil.WithJobStatus(entity.JobStatusFailed))
	testutil.TestJob(t, env.db, location.ID, testutil.WithJobStatus(entity.JobStatusFailed))

	stats, err := env.service.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Queued)
	assert.Equal(t, int64(1), stats.Active)
	assert.Equal(t, int64(0), stats.Completed)
	assert.Equal(t, int64(2), stats.Failed)
}

func TestScrapeJobService_ListByLocation(t *testing.T) {
	env := setupJobService(t)
	ctx := context.Background()

	location := testutil.TestLocation(t, env.db)
	other := testutil.TestLocation(t, env.db)
	testutil.TestJob(t, env.db, location.ID)
	testutil.TestJob(t, env.db, location.ID, testutil.WithJobStatus(entity.JobStatusCompleted))
	testutil.TestJob(t, env.db, other.ID)

	jobs, err := env.service.ListByLocation(ctx, location.ID)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}
