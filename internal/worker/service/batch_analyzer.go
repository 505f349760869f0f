package service

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"review-insights/internal/entity"
	"review-insights/internal/worker/config"
	"review-insights/internal/worker/dto"
	"review-insights/internal/worker/repository"
	"review-insights/pkg/logger"
)

// BatchAnalyzerService runs sentiment analysis over reviews in parallel
// batches. A failed item becomes an error summary instead of failing the
// run, so one bad review never loses the rest of the batch.
type BatchAnalyzerService interface {
	Analyze(ctx context.Context, reviews []entity.Review) ([]entity.ReviewSummary, dto.AnalysisStats)
	Summarize(ctx context.Context, locationName string, summaries []entity.ReviewSummary) (*dto.InsightSummaryResult, error)
}

// NewBatchAnalyzerService creates a new BatchAnalyzerService.
func NewBatchAnalyzerService(cfg *config.Config, aiRepo repository.AIRepository, log *logger.Logger) BatchAnalyzerService {
	return &batchAnalyzerService{
		cfg:    cfg,
		aiRepo: aiRepo,
		logger: log,
	}
}

type batchAnalyzerService struct {
	cfg    *config.Config
	aiRepo repository.AIRepository
	logger *logger.Logger
}

// Analyze processes the reviews in batches of BatchSize, running up to
// Concurrency batches at a time. Every item in the in-flight batches gets
// its own goroutine, so a full group runs BatchSize*Concurrency analyses
// at once. Results come back in input order.
func (s *batchAnalyzerService) Analyze(ctx context.Context, reviews []entity.Review) ([]entity.ReviewSummary, dto.AnalysisStats) {
	started := time.Now()
	results := make([]entity.ReviewSummary, len(reviews))

	batchSize := s.cfg.Worker.BatchSize
	concurrency := s.cfg.Worker.Concurrency

	var batches [][2]int
	for start := 0; start < len(reviews); start += batchSize {
		end := start + batchSize
		if end > len(reviews) {
			end = len(reviews)
		}
		batches = append(batches, [2]int{start, end})
	}

	s.logger.Info("Analyzing reviews",
		logger.IntField("total", len(reviews)),
		logger.IntField("batches", len(batches)),
		logger.IntField("batch_size", batchSize),
		logger.IntField("concurrency", concurrency))

	for group := 0; group < len(batches); group += concurrency {
		groupEnd := group + concurrency
		if groupEnd > len(batches) {
			groupEnd = len(batches)
		}

		var wg sync.WaitGroup
		for _, bounds := range batches[group:groupEnd] {
			for i := bounds[0]; i < bounds[1]; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = s.analyzeOne(ctx, &reviews[i])
				}(i)
			}
		}
		wg.Wait()

		s.logger.Debug("Batch group completed",
			logger.IntField("processed", batches[groupEnd-1][1]),
			logger.IntField("total", len(reviews)))
	}

	stats := ComputeStats(results)
	stats.ElapsedSeconds = time.Since(started).Seconds()
	if len(reviews) > 0 {
		stats.AvgSecondsPerReview = stats.ElapsedSeconds / float64(len(reviews))
	}
	stats.Batch = dto.BatchConfig{BatchSize: batchSize, Concurrency: concurrency}
	return results, stats
}

func (s *batchAnalyzerService) analyzeOne(ctx context.Context, review *entity.Review) entity.ReviewSummary {
	summary := entity.ReviewSummary{
		ReviewID:    review.ReviewID,
		LocationID:  review.LocationID,
		AuthorName:  review.AuthorName,
		Rating:      review.Rating,
		Text:        review.Text,
		PublishedAt: review.PublishedAt,
		ProcessedAt: time.Now(),
	}

	verdict, err := s.aiRepo.AnalyzeReview(ctx, review)
	if err == nil {
		err = verdict.Validate()
	}
	if err != nil {
		s.logger.Warn("Review analysis failed",
			logger.StringField("review_id", review.ReviewID),
			logger.ErrorField(err))
		summary.Sentiment = entity.SentimentError
		summary.ErrorMessage = err.Error()
		return summary
	}

	summary.Sentiment = verdict.Sentiment
	summary.SentimentScore = verdict.SentimentScore
	summary.Confidence = verdict.Confidence
	summary.Keywords = verdict.Keywords
	summary.Topics = verdict.Topics
	summary.Summary = verdict.Summary
	return summary
}

// Summarize produces one aggregated insight report over the location's
// analyzed reviews.
func (s *batchAnalyzerService) Summarize(ctx context.Context, locationName string, summaries []entity.ReviewSummary) (*dto.InsightSummaryResult, error) {
	return s.aiRepo.SummarizeInsights(ctx, locationName, summaries)
}

const (
	topKeywordsLimit = 20
	topTopicsLimit   = 10
)

// ComputeStats folds summaries into a sentiment distribution plus score and
// rating means and keyword/topic frequency tables. Error rows are counted but
// excluded from the percentages and means.
func ComputeStats(summaries []entity.ReviewSummary) dto.AnalysisStats {
	stats := dto.AnalysisStats{Total: len(summaries)}

	var scoreSum, ratingSum float64
	keywordCounts := make(map[string]int)
	topicCounts := make(map[string]int)

	for i := range summaries {
		switch summaries[i].Sentiment {
		case entity.SentimentPositive:
			stats.Positive++
		case entity.SentimentNegative:
			stats.Negative++
		case entity.SentimentNeutral:
			stats.Neutral++
		default:
			stats.Errors++
			continue
		}
		scoreSum += summaries[i].SentimentScore
		ratingSum += float64(summaries[i].Rating)
		for _, kw := range summaries[i].Keywords {
			keywordCounts[kw]++
		}
		for _, topic := range summaries[i].Topics {
			topicCounts[topic]++
		}
	}

	analyzed := stats.Positive + stats.Negative + stats.Neutral
	if analyzed > 0 {
		stats.PositivePct = round1(float64(stats.Positive) / float64(analyzed) * 100)
		stats.NegativePct = round1(float64(stats.Negative) / float64(analyzed) * 100)
		stats.NeutralPct = round1(float64(stats.Neutral) / float64(analyzed) * 100)
		stats.AvgSentimentScore = scoreSum / float64(analyzed)
		stats.AvgRating = round1(ratingSum / float64(analyzed))
	}
	stats.TopKeywords = topTermCounts(keywordCounts, topKeywordsLimit)
	stats.TopTopics = topTermCounts(topicCounts, topTopicsLimit)
	return stats
}

func topTermCounts(counts map[string]int, limit int) []dto.TermCount {
	terms := make([]dto.TermCount, 0, len(counts))
	for term, count := range counts {
		terms = append(terms, dto.TermCount{Term: term, Count: count})
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

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
