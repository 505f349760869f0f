package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-insights/internal/entity"
	"review-insights/internal/worker/config"
	"review-insights/internal/worker/dto"
	"review-insights/internal/worker/repository"
	"review-insights/pkg/logger"
)

type stubAIRepository struct {
	mu       sync.Mutex
	calls    int
	failFor  map[string]error
	verdicts map[string]*dto.SentimentVerdict
}

func (s *stubAIRepository) AnalyzeReview(ctx context.Context, review *entity.Review) (*dto.SentimentVerdict, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if err, ok := s.failFor[review.ReviewID]; ok {
		return nil, err
	}
	if v, ok := s.verdicts[review.ReviewID]; ok {
		return v, nil
	}
	return &dto.SentimentVerdict{Sentiment: entity.SentimentNeutral, Confidence: 0.5}, nil
}

func (s *stubAIRepository) SummarizeInsights(ctx context.Context, locationName string, summaries []entity.ReviewSummary) (*dto.InsightSummaryResult, error) {
	return &dto.InsightSummaryResult{Summary: "stub"}, nil
}

func newAnalyzer(t *testing.T, ai repository.AIRepository) BatchAnalyzerService {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Worker.BatchSize = 15
	cfg.Worker.Concurrency = 10

	return NewBatchAnalyzerService(cfg, ai, log)
}

func makeReviews(n int) []entity.Review {
	reviews := make([]entity.Review, n)
	for i := range reviews {
		reviews[i] = entity.Review{
			ReviewID:   fmt.Sprintf("gmr_%024d", i),
			LocationID: "loc-1",
			Rating:     4,
			Text:       "solid",
		}
	}
	return reviews
}

func TestBatchAnalyzer_AllSucceed(t *testing.T) {
	ai := &stubAIRepository{}
	reviews := makeReviews(40)

	summaries, stats := newAnalyzer(t, ai).Analyze(context.Background(), reviews)

	require.Len(t, summaries, 40)
	assert.Equal(t, 40, ai.calls)
	assert.Equal(t, 40, stats.Total)
	assert.Equal(t, 40, stats.Neutral)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 100.0, stats.NeutralPct)

	for i, s := range summaries {
		assert.Equal(t, reviews[i].ReviewID, s.ReviewID, "results keep input order")
		assert.False(t, s.ProcessedAt.IsZero())
	}
}

func TestBatchAnalyzer_PerItemIsolation(t *testing.T) {
	reviews := makeReviews(20)
	ai := &stubAIRepository{
		failFor: map[string]error{
			reviews[3].ReviewID:  errors.New("rate limited"),
			reviews[17].ReviewID: errors.New("rate limited"),
		},
		verdicts: map[string]*dto.SentimentVerdict{
			reviews[0].ReviewID: {Sentiment: entity.SentimentPositive, SentimentScore: 0.9, Confidence: 0.95, Keywords: []string{"great"}},
		},
	}

	summaries, stats := newAnalyzer(t, ai).Analyze(context.Background(), reviews)

	require.Len(t, summaries, 20)
	assert.Equal(t, entity.SentimentError, summaries[3].Sentiment)
	assert.Contains(t, summaries[3].ErrorMessage, "rate limited")
	assert.Equal(t, entity.SentimentError, summaries[17].Sentiment)

	assert.Equal(t, entity.SentimentPositive, summaries[0].Sentiment)
	assert.Equal(t, []string{"great"}, []string(summaries[0].Keywords))

	assert.Equal(t, 2, stats.Errors)
	assert.Equal(t, 18, stats.Positive+stats.Negative+stats.Neutral)
}

func TestComputeStats_ExcludesErrors(t *testing.T) {
	summaries := []entity.ReviewSummary{
		{Sentiment: entity.SentimentPositive},
		{Sentiment: entity.SentimentPositive},
		{Sentiment: entity.SentimentNegative},
		{Sentiment: entity.SentimentNeutral},
		{Sentiment: entity.SentimentError},
		{Sentiment: entity.SentimentError},
	}

	stats := ComputeStats(summaries)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 2, stats.Errors)
	assert.Equal(t, 50.0, stats.PositivePct)
	assert.Equal(t, 25.0, stats.NegativePct)
	assert.Equal(t, 25.0, stats.NeutralPct)
}

func TestComputeStats_AllErrors(t *testing.T) {
	stats := ComputeStats([]entity.ReviewSummary{
		{Sentiment: entity.SentimentError},
		{Sentiment: entity.SentimentError},
	})
	assert.Equal(t, 2, stats.Errors)
	assert.Zero(t, stats.PositivePct)
	assert.Zero(t, stats.NegativePct)
	assert.Zero(t, stats.NeutralPct)
}

// gatedAIRepository blocks every AnalyzeReview call until the test opens the
// gate, recording how many calls were in flight at once.
type gatedAIRepository struct {
	mu       sync.Mutex
	inflight int
	max      int
	started  chan struct{}
	release  chan struct{}
}

func (s *gatedAIRepository) AnalyzeReview(ctx context.Context, review *entity.Review) (*dto.SentimentVerdict, error) {
	s.mu.Lock()
	s.inflight++
	if s.inflight > s.max {
		s.max = s.inflight
	}
	s.mu.Unlock()

	s.started <- struct{}{}
	<-s.release

	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	return &dto.SentimentVerdict{Sentiment: entity.SentimentNeutral, Confidence: 0.5}, nil
}

func (s *gatedAIRepository) SummarizeInsights(ctx context.Context, locationName string, summaries []entity.ReviewSummary) (*dto.InsightSummaryResult, error) {
	return &dto.InsightSummaryResult{}, nil
}

func TestBatchAnalyzer_WholeBatchInFlightAtOnce(t *testing.T) {
	const n = 15
	ai := &gatedAIRepository{
		started: make(chan struct{}, n),
		release: make(chan struct{}),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		newAnalyzer(t, ai).Analyze(context.Background(), makeReviews(n))
	}()

	for i := 0; i < n; i++ {
		select {
		case <-ai.started:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d analyses in flight, items in a batch must run concurrently", i, n)
		}
	}
	close(ai.release)
	<-done

	assert.Equal(t, n, ai.max)
}

func TestBatchAnalyzer_RejectsInvalidVerdicts(t *testing.T) {
	reviews := makeReviews(3)
	ai := &stubAIRepository{
		verdicts: map[string]*dto.SentimentVerdict{
			reviews[0].ReviewID: {Sentiment: "Positive", SentimentScore: 42, Confidence: 3},
			reviews[1].ReviewID: {Sentiment: entity.SentimentPositive, SentimentScore: 1.5, Confidence: 0.9},
			reviews[2].ReviewID: {Sentiment: entity.SentimentPositive, SentimentScore: 0.8, Confidence: 0.9},
		},
	}

	summaries, stats := newAnalyzer(t, ai).Analyze(context.Background(), reviews)

	assert.Equal(t, entity.SentimentError, summaries[0].Sentiment, "unknown label is not stored as a verdict")
	assert.Contains(t, summaries[0].ErrorMessage, "sentiment")
	assert.Equal(t, entity.SentimentError, summaries[1].Sentiment, "out-of-range score is not stored as a verdict")
	assert.Equal(t, entity.SentimentPositive, summaries[2].Sentiment)

	assert.Equal(t, 2, stats.Errors)
	assert.Equal(t, 1, stats.Positive)
}

func TestComputeStats_MeansAndTopTerms(t *testing.T) {
	summaries := []entity.ReviewSummary{
		{Sentiment: entity.SentimentPositive, SentimentScore: 0.8, Rating: 5,
			Keywords: pq.StringArray{"coffee", "service"}, Topics: pq.StringArray{"drinks"}},
		{Sentiment: entity.SentimentNegative, SentimentScore: -0.6, Rating: 2,
			Keywords: pq.StringArray{"coffee", "queue"}, Topics: pq.StringArray{"service"}},
		{Sentiment: entity.SentimentNeutral, SentimentScore: 0.1, Rating: 3,
			Keywords: pq.StringArray{"coffee"}},
		{Sentiment: entity.SentimentError, Rating: 1, Keywords: pq.StringArray{"ignored"}},
	}

	stats := ComputeStats(summaries)

	assert.InDelta(t, 0.1, stats.AvgSentimentScore, 1e-9)
	assert.Equal(t, 3.3, stats.AvgRating, "error rows are excluded from the rating mean")

	require.NotEmpty(t, stats.TopKeywords)
	assert.Equal(t, dto.TermCount{Term: "coffee", Count: 3}, stats.TopKeywords[0])
	for _, kw := range stats.TopKeywords {
		assert.NotEqual(t, "ignored", kw.Term, "error row terms stay out of the tables")
	}
	assert.Equal(t, []dto.TermCount{{Term: "drinks", Count: 1}, {Term: "service", Count: 1}}, stats.TopTopics)
}

func TestComputeStats_TermTableLimits(t *testing.T) {
	summaries := make([]entity.ReviewSummary, 25)
	for i := range summaries {
		summaries[i] = entity.ReviewSummary{
			Sentiment: entity.SentimentPositive,
			Keywords:  pq.StringArray{fmt.Sprintf("kw-%02d", i)},
			Topics:    pq.StringArray{fmt.Sprintf("topic-%02d", i)},
		}
	}

	stats := ComputeStats(summaries)
	assert.Len(t, stats.TopKeywords, topKeywordsLimit)
	assert.Len(t, stats.TopTopics, topTopicsLimit)
}

func TestBatchAnalyzer_RunMetadata(t *testing.T) {
	_, stats := newAnalyzer(t, &stubAIRepository{}).Analyze(context.Background(), makeReviews(5))

	assert.Equal(t, dto.BatchConfig{BatchSize: 15, Concurrency: 10}, stats.Batch)
	assert.Greater(t, stats.ElapsedSeconds, 0.0)
	assert.Greater(t, stats.AvgSecondsPerReview, 0.0)
}

func TestBatchAnalyzer_Empty(t *testing.T) {
	summaries, stats := newAnalyzer(t, &stubAIRepository{}).Analyze(context.Background(), nil)
	assert.Empty(t, summaries)
	assert.Zero(t, stats.Total)
}
