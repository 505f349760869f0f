package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"review-insights/internal/repository"
	"review-insights/internal/worker/dto"
	"review-insights/pkg/cache"
	"review-insights/pkg/logger"
)

// AnalysisCoordinatorService drives incremental sentiment analysis for a
// location: only reviews without a usable summary are sent to the analyzer,
// results are upserted, and the location aggregate is recomputed from all
// stored summaries.
type AnalysisCoordinatorService interface {
	AnalyzeLocation(ctx context.Context, locationID string) (*dto.AnalysisStats, error)
	RecalculateLocation(ctx context.Context, locationID string) error
}

// NewAnalysisCoordinatorService creates a new AnalysisCoordinatorService.
func NewAnalysisCoordinatorService(
	reviewRepo repository.ReviewRepository,
	summaryRepo repository.ReviewSummaryRepository,
	locationRepo repository.LocationRepository,
	analyzer BatchAnalyzerService,
	cacheStore *cache.Store,
	log *logger.Logger,
) AnalysisCoordinatorService {
	return &analysisCoordinatorService{
		reviewRepo:   reviewRepo,
		summaryRepo:  summaryRepo,
		locationRepo: locationRepo,
		analyzer:     analyzer,
		cacheStore:   cacheStore,
		logger:       log,
	}
}

type analysisCoordinatorService struct {
	reviewRepo   repository.ReviewRepository
	summaryRepo  repository.ReviewSummaryRepository
	locationRepo repository.LocationRepository
	analyzer     BatchAnalyzerService
	cacheStore   *cache.Store
	logger       *logger.Logger
}

// AnalyzeLocation analyzes the location's unanalyzed reviews. Reviews that
// already have a non-error summary are skipped, so repeated runs only pay
// for new or previously failed reviews.
func (s *analysisCoordinatorService) AnalyzeLocation(ctx context.Context, locationID string) (*dto.AnalysisStats, error) {
	pending, err := s.reviewRepo.FindUnanalyzed(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find unanalyzed reviews: %w", err)
	}

	if len(pending) == 0 {
		s.logger.Info("No unanalyzed reviews", logger.StringField("location_id", locationID))
		stats := dto.AnalysisStats{}
		if err := s.RecalculateLocation(ctx, locationID); err != nil {
			return nil, err
		}
		return &stats, nil
	}

	s.logger.Info("Analyzing unanalyzed reviews",
		logger.StringField("location_id", locationID),
		logger.IntField("pending", len(pending)))

	summaries, stats := s.analyzer.Analyze(ctx, pending)

	saved, err := s.summaryRepo.UpsertBatch(ctx, summaries)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert review summaries: %w", err)
	}
	s.logger.Info("Summaries saved",
		logger.StringField("location_id", locationID),
		logger.IntField("inserted", saved.Inserted),
		logger.IntField("updated", saved.Updated),
		logger.IntField("failed", saved.Failed))

	if err := s.RecalculateLocation(ctx, locationID); err != nil {
		return nil, err
	}

	s.refreshInsight(ctx, locationID)

	return &stats, nil
}

// refreshInsight regenerates the location's aggregated insight narrative.
// Best effort: the analysis results are already persisted, so a provider
// failure here only costs the narrative.
func (s *analysisCoordinatorService) refreshInsight(ctx context.Context, locationID string) {
	location, err := s.locationRepo.FindByID(ctx, locationID)
	if err != nil || location == nil {
		return
	}

	summaries, err := s.summaryRepo.FindAnalyzedByLocation(ctx, locationID)
	if err != nil || len(summaries) == 0 {
		return
	}

	insight, err := s.analyzer.Summarize(ctx, location.Name, summaries)
	if err != nil {
		s.logger.Warn("Failed to generate insight narrative",
			logger.StringField("location_id", locationID),
			logger.ErrorField(err))
		return
	}

	raw, err := json.Marshal(insight)
	if err != nil {
		return
	}
	location.Insight = raw
	if err := s.locationRepo.Update(ctx, location); err != nil {
		s.logger.Error("Failed to store insight narrative",
			logger.StringField("location_id", locationID),
			logger.ErrorField(err))
	}
}

// RecalculateLocation folds every usable summary for the location into its
// aggregated sentiment fields and invalidates the location's cache entries.
func (s *analysisCoordinatorService) RecalculateLocation(ctx context.Context, locationID string) error {
	location, err := s.locationRepo.FindByID(ctx, locationID)
	if err != nil {
		return fmt.Errorf("failed to load location: %w", err)
	}
	if location == nil {
		return fmt.Errorf("location %s not found", locationID)
	}

	summaries, err := s.summaryRepo.FindAnalyzedByLocation(ctx, locationID)
	if err != nil {
		return fmt.Errorf("failed to load summaries: %w", err)
	}

	totalReviews, err := s.reviewRepo.CountByLocation(ctx, locationID)
	if err != nil {
		return fmt.Errorf("failed to count reviews: %w", err)
	}

	stats := ComputeStats(summaries)

	var ratingSum int
	for i := range summaries {
		ratingSum += summaries[i].Rating
	}

	now := time.Now()
	location.PositivePct = stats.PositivePct
	location.NegativePct = stats.NegativePct
	location.NeutralPct = stats.NeutralPct
	location.TotalReviews = int(totalReviews)
	location.LastCalculatedAt = &now
	if len(summaries) > 0 {
		location.AverageRating = round1(float64(ratingSum) / float64(len(summaries)))
	} else {
		location.AverageRating = 0
	}

	if err := s.locationRepo.Update(ctx, location); err != nil {
		return fmt.Errorf("failed to update location aggregate: %w", err)
	}

	s.cacheStore.InvalidateLocation(ctx, locationID)

	s.logger.Info("Location aggregate recalculated",
		logger.StringField("location_id", locationID),
		logger.IntField("analyzed", len(summaries)),
		logger.IntField("total_reviews", int(totalReviews)))

	return nil
}
