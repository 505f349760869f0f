package repository

import (
	"context"

	"review-insights/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveStats reports the outcome of a bulk summary save.
type SaveStats struct {
	Inserted int
	Updated  int
	Failed   int
}

// ReviewSummaryRepository defines the interface for review analysis results.
type ReviewSummaryRepository interface {
	Upsert(ctx context.Context, summary *entity.ReviewSummary) error
	UpsertBatch(ctx context.Context, summaries []entity.ReviewSummary) (SaveStats, error)
	FindByLocation(ctx context.Context, locationID string) ([]entity.ReviewSummary, error)
	FindAnalyzedByLocation(ctx context.Context, locationID string) ([]entity.ReviewSummary, error)
	CountByLocation(ctx context.Context, locationID string) (int64, error)
	CountAnalyzedByLocation(ctx context.Context, locationID string) (int64, error)
}

// NewReviewSummaryRepository creates a new GORM-based review summary repository.
func NewReviewSummaryRepository(db *gorm.DB) ReviewSummaryRepository {
	return &reviewSummaryRepository{db: db}
}

type reviewSummaryRepository struct {
	db *gorm.DB
}

var summaryConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "review_id"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"sentiment", "sentiment_score", "confidence", "keywords", "topics",
		"summary", "error_message", "processed_at", "updated_at",
	}),
}

// Upsert inserts the summary, or overwrites the analysis columns when a row
// for the review already exists.
func (r *reviewSummaryRepository) Upsert(ctx context.Context, summary *entity.ReviewSummary) error {
	return r.db.WithContext(ctx).Clauses(summaryConflict).Create(summary).Error
}

// UpsertBatch upserts the summaries row by row, so a rejected row costs
// itself rather than the whole batch. Row failures are counted in the
// returned stats instead of aborting the save.
func (r *reviewSummaryRepository) UpsertBatch(ctx context.Context, summaries []entity.ReviewSummary) (SaveStats, error) {
	var stats SaveStats
	if len(summaries) == 0 {
		return stats, nil
	}

	reviewIDs := make([]string, 0, len(summaries))
	for i := range summaries {
		reviewIDs = append(reviewIDs, summaries[i].ReviewID)
	}
	var existingIDs []string
	err := r.db.WithContext(ctx).
		Model(&entity.ReviewSummary{}).
		Where("review_id IN ?", reviewIDs).
		Pluck("review_id", &existingIDs).Error
	if err != nil {
		return stats, err
	}
	existing := make(map[string]bool, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = true
	}

	for i := range summaries {
		if err := r.db.WithContext(ctx).Clauses(summaryConflict).Create(&summaries[i]).Error; err != nil {
			stats.Failed++
			continue
		}
		if existing[summaries[i].ReviewID] {
			stats.Updated++
		} else {
			stats.Inserted++
		}
	}
	return stats, nil
}

// FindByLocation retrieves all summaries for a location, error rows included.
func (r *reviewSummaryRepository) FindByLocation(ctx context.Context, locationID string) ([]entity.ReviewSummary, error) {
	var summaries []entity.ReviewSummary
	err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("published_at desc").
		Find(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// FindAnalyzedByLocation retrieves the summaries with a usable verdict,
// excluding error rows.
func (r *reviewSummaryRepository) FindAnalyzedByLocation(ctx context.Context, locationID string) ([]entity.ReviewSummary, error) {
	var summaries []entity.ReviewSummary
	err := r.db.WithContext(ctx).
		Where("location_id = ? AND sentiment <> ?", locationID, entity.SentimentError).
		Order("published_at desc").
		Find(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// CountByLocation counts all summaries for a location.
func (r *reviewSummaryRepository) CountByLocation(ctx context.Context, locationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ReviewSummary{}).
		Where("location_id = ?", locationID).
		Count(&count).Error
	return count, err
}

// CountAnalyzedByLocation counts the summaries with a usable verdict.
func (r *reviewSummaryRepository) CountAnalyzedByLocation(ctx context.Context, locationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ReviewSummary{}).
		Where("location_id = ? AND sentiment <> ?", locationID, entity.SentimentError).
		Count(&count).Error
	return count, err
}
