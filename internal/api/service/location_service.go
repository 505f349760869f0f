package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"review-insights/internal/api/dto"
	"review-insights/internal/entity"
	"review-insights/internal/repository"
	"review-insights/pkg/cache"
	"review-insights/pkg/logger"
	"review-insights/pkg/utils"
)

const topTermsLimit = 10

// LocationService manages locations and the read-side aggregations built
// on top of their analyzed reviews.
type LocationService interface {
	Create(ctx context.Context, req *dto.CreateLocationRequest) (*dto.LocationResponse, error)
	Get(ctx context.Context, userID, locationID string) (*dto.LocationResponse, error)
	ListByUser(ctx context.Context, userID string) ([]dto.LocationResponse, error)
	GetReviews(ctx context.Context, userID, locationID string) ([]entity.Review, error)
	GetSummaries(ctx context.Context, userID, locationID string) ([]entity.ReviewSummary, error)
	GetCoverage(ctx context.Context, userID, locationID string) (*dto.CoverageResponse, error)
	InsightSummary(ctx context.Context, userID string, locationIDs []string) (*dto.InsightSummaryResponse, error)
}

// NewLocationService creates a new location service.
func NewLocationService(
	locationRepo repository.LocationRepository,
	reviewRepo repository.ReviewRepository,
	summaryRepo repository.ReviewSummaryRepository,
	cacheStore *cache.Store,
	log *logger.Logger,
) LocationService {
	return &locationService{
		locationRepo: locationRepo,
		reviewRepo:   reviewRepo,
		summaryRepo:  summaryRepo,
		cacheStore:   cacheStore,
		logger:       log,
	}
}

type locationService struct {
	locationRepo repository.LocationRepository
	reviewRepo   repository.ReviewRepository
	summaryRepo  repository.ReviewSummaryRepository
	cacheStore   *cache.Store
	logger       *logger.Logger
}

// Create registers a location for a user. When the place is already known,
// the existing record is linked to the user instead of duplicated.
func (s *locationService) Create(ctx context.Context, req *dto.CreateLocationRequest) (*dto.LocationResponse, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if !utils.ValidateGoogleMapsURL(req.GoogleMapsURL) {
		return nil, fmt.Errorf("%w: not a Google Maps place URL", ErrValidation)
	}

	info := utils.ExtractPlaceInfo(req.GoogleMapsURL)

	name := req.Name
	if name == "" {
		name = info.PlaceName
	}
	if name == "" {
		return nil, fmt.Errorf("%w: location name is required", ErrValidation)
	}

	placeID := info.PlaceID
	if placeID == "" {
		placeID = utils.Slugify(name)
	}

	existing, err := s.locationRepo.FindByPlaceID(ctx, placeID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing, err = s.locationRepo.FindByURL(ctx, req.GoogleMapsURL)
		if err != nil {
			return nil, err
		}
	}

	if existing != nil {
		linked, err := s.locationRepo.IsLinked(ctx, req.UserID, existing.ID)
		if err != nil {
			return nil, err
		}
		if !linked {
			if err := s.locationRepo.LinkUser(ctx, req.UserID, existing.ID); err != nil {
				return nil, err
			}
		}
		return dto.NewLocationResponse(existing), nil
	}

	frequency := req.ScrapeFrequency
	if frequency == "" {
		frequency = entity.ScrapeFrequencyManual
	}
	switch frequency {
	case entity.ScrapeFrequencyDaily, entity.ScrapeFrequencyWeekly, entity.ScrapeFrequencyManual:
	default:
		return nil, fmt.Errorf("%w: unknown scrape frequency %q", ErrValidation, frequency)
	}

	maxReviews := req.MaxReviews
	if maxReviews == 0 {
		maxReviews = defaultMaxReviews
	}
	if maxReviews < 1 || maxReviews > maxReviewsCeiling {
		return nil, fmt.Errorf("%w: max_reviews must be between 1 and %d", ErrValidation, maxReviewsCeiling)
	}

	location := &entity.Location{
		PlaceID:         placeID,
		Name:            name,
		Slug:            utils.Slugify(name),
		Address:         req.Address,
		GoogleMapsURL:   req.GoogleMapsURL,
		ScrapeStatus:    entity.ScrapeStatusIdle,
		ScrapeFrequency: frequency,
		MaxReviews:      maxReviews,
	}
	if frequency != entity.ScrapeFrequencyManual {
		next := nextScrapeTime(frequency, time.Now())
		location.NextScheduledScrapeAt = &next
	}

	if err := s.locationRepo.Create(ctx, location); err != nil {
		return nil, err
	}
	if err := s.locationRepo.LinkUser(ctx, req.UserID, location.ID); err != nil {
		return nil, err
	}

	s.logger.Info("Location created",
		logger.StringField("location_id", location.ID),
		logger.StringField("place_id", location.PlaceID),
		logger.StringField("user_id", req.UserID))

	return dto.NewLocationResponse(location), nil
}

// Get returns one of the user's locations.
func (s *locationService) Get(ctx context.Context, userID, locationID string) (*dto.LocationResponse, error) {
	location, err := s.authorizedLocation(ctx, userID, locationID)
	if err != nil {
		return nil, err
	}
	resp := dto.NewLocationResponse(location)
	if analyzed, err := s.summaryRepo.CountAnalyzedByLocation(ctx, locationID); err == nil {
		resp.Stats.AnalyzedReviews = int(analyzed)
	}
	return resp, nil
}

// ListByUser returns every location linked to the user.
func (s *locationService) ListByUser(ctx context.Context, userID string) ([]dto.LocationResponse, error) {
	locations, err := s.locationRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LocationResponse, 0, len(locations))
	for i := range locations {
		out = append(out, *dto.NewLocationResponse(&locations[i]))
	}
	return out, nil
}

// GetReviews returns the location's raw reviews, cached per location.
func (s *locationService) GetReviews(ctx context.Context, userID, locationID string) ([]entity.Review, error) {
	if _, err := s.authorizedLocation(ctx, userID, locationID); err != nil {
		return nil, err
	}

	key := cache.LocationReviewsKey(locationID)
	var reviews []entity.Review
	if s.cacheStore.Get(ctx, key, &reviews) {
		return reviews, nil
	}

	reviews, err := s.reviewRepo.FindByLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	s.cacheStore.Set(ctx, key, reviews, cache.TTLReviews)
	return reviews, nil
}

// GetSummaries returns the location's per-review analysis results, cached
// per location.
func (s *locationService) GetSummaries(ctx context.Context, userID, locationID string) ([]entity.ReviewSummary, error) {
	if _, err := s.authorizedLocation(ctx, userID, locationID); err != nil {
		return nil, err
	}

	key := cache.LocationSummariesKey(locationID)
	var summaries []entity.ReviewSummary
	if s.cacheStore.Get(ctx, key, &summaries) {
		return summaries, nil
	}

	summaries, err := s.summaryRepo.FindByLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	s.cacheStore.Set(ctx, key, summaries, cache.TTLSummaries)
	return summaries, nil
}

// GetCoverage reports how many of the location's reviews have a usable
// analysis result.
func (s *locationService) GetCoverage(ctx context.Context, userID, locationID string) (*dto.CoverageResponse, error) {
	if _, err := s.authorizedLocation(ctx, userID, locationID); err != nil {
		return nil, err
	}

	total, err := s.reviewRepo.CountByLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	analyzed, err := s.summaryRepo.CountAnalyzedByLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	resp := &dto.CoverageResponse{
		LocationID:      locationID,
		TotalReviews:    total,
		AnalyzedReviews: analyzed,
	}
	if total > 0 {
		resp.CoveragePct = round1(float64(analyzed) / float64(total) * 100)
	}
	return resp, nil
}

// InsightSummary folds the analyzed reviews of the requested locations
// (or all of the user's locations when none are given) into one combined
// report. The result is cached under a key derived from the sorted
// location set, so the same selection always hits the same entry.
func (s *locationService) InsightSummary(ctx context.Context, userID string, locationIDs []string) (*dto.InsightSummaryResponse, error) {
	key := cache.BuildSummaryKey(userID, locationIDs)
	var cached dto.InsightSummaryResponse
	if s.cacheStore.Get(ctx, key, &cached) {
		return &cached, nil
	}

	targets := locationIDs
	if len(targets) == 0 {
		locations, err := s.locationRepo.FindByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, l := range locations {
			targets = append(targets, l.ID)
		}
	} else {
		for _, id := range targets {
			if _, err := s.authorizedLocation(ctx, userID, id); err != nil {
				return nil, err
			}
		}
	}

	resp := s.aggregate(ctx, targets)
	s.cacheStore.Set(ctx, key, resp, cache.TTLInsightSummary)
	return resp, nil
}

func (s *locationService) aggregate(ctx context.Context, locationIDs []string) *dto.InsightSummaryResponse {
	var (
		analyzed, errors            int
		positive, neutral, negative int
		scoreSum, ratingSum         float64
		latestPositive              *entity.ReviewSummary
		keywordCounts               = map[string]int{}
		topicCounts                 = map[string]int{}
	)

	for _, id := range locationIDs {
		summaries, err := s.summaryRepo.FindByLocation(ctx, id)
		if err != nil {
			s.logger.Error("Failed to load summaries for aggregation",
				logger.ErrorField(err),
				logger.StringField("location_id", id))
			continue
		}
		for i := range summaries {
			sum := &summaries[i]
			if sum.IsError() {
				errors++
				continue
			}
			analyzed++
			scoreSum += sum.SentimentScore
			ratingSum += float64(sum.Rating)
			switch sum.Sentiment {
			case entity.SentimentPositive:
				positive++
				if latestPositive == nil || sum.PublishedAt.After(latestPositive.PublishedAt) {
					latestPositive = sum
				}
			case entity.SentimentNegative:
				negative++
			default:
				neutral++
			}
			for _, kw := range sum.Keywords {
				keywordCounts[kw]++
			}
			for _, topic := range sum.Topics {
				topicCounts[topic]++
			}
		}
	}

	resp := &dto.InsightSummaryResponse{
		LocationIDs:   locationIDs,
		TotalAnalyzed: analyzed,
		TotalErrors:   errors,
		TopKeywords:   topTerms(keywordCounts, topTermsLimit),
		TopTopics:     topTerms(topicCounts, topTermsLimit),
		GeneratedAt:   time.Now(),
	}
	if analyzed > 0 {
		total := float64(analyzed)
		resp.PositivePct = round1(float64(positive) / total * 100)
		resp.NeutralPct = round1(float64(neutral) / total * 100)
		resp.NegativePct = round1(float64(negative) / total * 100)
		resp.AverageScore = round1(scoreSum / total)
		resp.AverageRating = round1(ratingSum / total)
	}
	if latestPositive != nil {
		resp.RecentHighlight = latestPositive.Summary
	}
	return resp
}

func (s *locationService) authorizedLocation(ctx context.Context, userID, locationID string) (*entity.Location, error) {
	location, err := s.locationRepo.FindByID(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if location == nil {
		return nil, fmt.Errorf("%w: location %s", ErrNotFound, locationID)
	}
	if userID != "" {
		linked, err := s.locationRepo.IsLinked(ctx, userID, locationID)
		if err != nil {
			return nil, err
		}
		if !linked {
			return nil, fmt.Errorf("%w: location %s", ErrNotFound, locationID)
		}
	}
	return location, nil
}

// topTerms sorts terms by count, breaking ties alphabetically so the
// result is stable.
func topTerms(counts map[string]int, limit int) []dto.WeightedTerm {
	terms := make([]dto.WeightedTerm, 0, len(counts))
	for term, count := range counts {
		terms = append(terms, dto.WeightedTerm{Term: term, Count: count})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

// nextScrapeTime computes when a location should be scraped again.
func nextScrapeTime(frequency string, now time.Time) time.Time {
	switch frequency {
	case entity.ScrapeFrequencyDaily:
		return now.Add(24 * time.Hour)
	case entity.ScrapeFrequencyWeekly:
		return now.Add(7 * 24 * time.Hour)
	default:
		return now
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
