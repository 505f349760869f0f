package repository

import (
	"context"

	"review-insights/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewRepository defines the interface for review data operations.
type ReviewRepository interface {
	BulkInsertIgnoreDuplicates(ctx context.Context, reviews []entity.Review) (int64, error)
	FindByLocation(ctx context.Context, locationID string) ([]entity.Review, error)
	FindUnanalyzed(ctx context.Context, locationID string) ([]entity.Review, error)
	CountByLocation(ctx context.Context, locationID string) (int64, error)
}

// NewReviewRepository creates a new GORM-based review repository.
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

type reviewRepository struct {
	db *gorm.DB
}

// BulkInsertIgnoreDuplicates inserts the reviews, skipping rows whose
// review_id already exists. Returns the number of rows actually inserted.
func (r *reviewRepository) BulkInsertIgnoreDuplicates(ctx context.Context, reviews []entity.Review) (int64, error) {
	if len(reviews) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "review_id"}},
			DoNothing: true,
		}).
		Create(&reviews)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// FindByLocation retrieves all reviews for a location, newest first.
func (r *reviewRepository) FindByLocation(ctx context.Context, locationID string) ([]entity.Review, error) {
	var reviews []entity.Review
	err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("published_at desc").
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// FindUnanalyzed retrieves the reviews that have no summary yet, or whose
// last analysis ended in error. Ordered oldest first so progress is steady
// across interrupted runs.
func (r *reviewRepository) FindUnanalyzed(ctx context.Context, locationID string) ([]entity.Review, error) {
	var reviews []entity.Review
	err := r.db.WithContext(ctx).
		Joins("LEFT JOIN review_summaries rs ON rs.review_id = reviews.review_id").
		Where("reviews.location_id = ?", locationID).
		Where("rs.id IS NULL OR rs.sentiment = ?", entity.SentimentError).
		Order("reviews.published_at asc").
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// CountByLocation counts the stored reviews for a location.
func (r *reviewRepository) CountByLocation(ctx context.Context, locationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Review{}).
		Where("location_id = ?", locationID).
		Count(&count).Error
	return count, err
}
