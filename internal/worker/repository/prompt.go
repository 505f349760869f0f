package repository

import (
	"fmt"
	"strings"

	"review-insights/internal/entity"
)

func BuildAnalyzeReviewPrompt(review *entity.Review) string {
	promptTemplate := `You are an expert sentiment analyzer for customer reviews. Analyze the given review text and respond ONLY with valid JSON (no markdown, no backticks):
{
  "sentiment": "positive" | "negative" | "neutral",
  "sentiment_score": {number between -1 and 1},
  "confidence": {number between 0 and 1},
  "keywords": ["keyword1", "keyword2", ...],
  "topics": ["topic1", "topic2", ...],
  "summary": "brief summary of the sentiment and key points"
}

Guidelines:
- sentiment: overall sentiment classification
- sentiment_score: -1 (very negative) to 1 (very positive)
- confidence: how certain the classification is
- keywords: important words or phrases that influenced the sentiment (5-10 keywords)
- topics: main themes discussed in the review, 3-5 topics like "service quality", "pricing", "cleanliness"
- summary: a brief explanation of the sentiment and main points

Review (rating %d/5):
"""
%s
"""`

	return fmt.Sprintf(promptTemplate, review.Rating, review.Text)
}

func BuildInsightSummaryPrompt(locationName string, summaries []entity.ReviewSummary) string {
	var reviewBuilder strings.Builder
	for i, s := range summaries {
		reviewBuilder.WriteString(fmt.Sprintf(
			"%d. Rating: %d/5, Sentiment: %s (score %.2f)\n   Summary: %s\n   Topics: %s\n\n",
			i+1, s.Rating, s.Sentiment, s.SentimentScore, s.Summary, strings.Join(s.Topics, ", "),
		))
	}

	promptTemplate := `You are a business analyst. Below are analyzed customer reviews for "%s":

%s
Based on all reviews above, respond ONLY with valid JSON (no markdown, no backticks):

{
  "summary": "{one paragraph overall assessment}",
  "key_themes": ["{recurring theme}"],
  "strengths": ["{what customers praise}"],
  "weaknesses": ["{what customers complain about}"],
  "recommendations": ["{concrete improvement suggestion}"]
}`

	return fmt.Sprintf(promptTemplate, locationName, reviewBuilder.String())
}
