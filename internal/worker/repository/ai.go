package repository

import (
	"context"
	"fmt"

	"review-insights/internal/entity"
	"review-insights/internal/worker/config"
	"review-insights/internal/worker/dto"
	"review-insights/pkg/logger"

	"google.golang.org/genai"
)

// AIRepository defines the interface for AI-backed review analysis.
type AIRepository interface {
	AnalyzeReview(ctx context.Context, review *entity.Review) (*dto.SentimentVerdict, error)
	SummarizeInsights(ctx context.Context, locationName string, summaries []entity.ReviewSummary) (*dto.InsightSummaryResult, error)
}

// NewAIRepository selects the provider implementation based on configuration.
func NewAIRepository(ctx context.Context, cfg *config.Config, log *logger.Logger) (AIRepository, error) {
	switch cfg.AI.Provider {
	case "openai":
		return NewOpenAIRepository(cfg, log), nil
	case "gemini":
		genAiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.Gemini.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create genai client: %w", err)
		}
		return NewGeminiAIRepository(cfg, log, genAiClient)
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.AI.Provider)
	}
}
