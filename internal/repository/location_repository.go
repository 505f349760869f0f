package repository

import (
	"context"
	"time"

	"review-insights/internal/entity"

	"gorm.io/gorm"
)

// LocationRepository defines the interface for location data operations.
type LocationRepository interface {
	Create(ctx context.Context, location *entity.Location) error
	FindByID(ctx context.Context, id string) (*entity.Location, error)
	FindByIDs(ctx context.Context, ids []string) ([]entity.Location, error)
	FindByPlaceID(ctx context.Context, placeID string) (*entity.Location, error)
	FindByURL(ctx context.Context, url string) (*entity.Location, error)
	Update(ctx context.Context, location *entity.Location) error
	UpdateScrapeStatus(ctx context.Context, id, status string) error
	UpdateNextScrapeAt(ctx context.Context, id string, next time.Time) error
	FindDueForRescrape(ctx context.Context, now time.Time) ([]entity.Location, error)
	LinkUser(ctx context.Context, userID, locationID string) error
	IsLinked(ctx context.Context, userID, locationID string) (bool, error)
	FindByUser(ctx context.Context, userID string) ([]entity.Location, error)
}

// NewLocationRepository creates a new GORM-based location repository.
func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepository{db: db}
}

type locationRepository struct {
	db *gorm.DB
}

// Create creates a new location in the database.
func (r *locationRepository) Create(ctx context.Context, location *entity.Location) error {
	return r.db.WithContext(ctx).Create(location).Error
}

// FindByID retrieves a location by its ID. Returns nil when not found.
func (r *locationRepository) FindByID(ctx context.Context, id string) (*entity.Location, error) {
	var location entity.Location
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&location)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &location, nil
}

// FindByIDs retrieves the locations for the given IDs, skipping unknown ones.
func (r *locationRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.Location, error) {
	var locations []entity.Location
	if len(ids) == 0 {
		return locations, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&locations).Error; err != nil {
		return nil, err
	}
	return locations, nil
}

// FindByPlaceID retrieves a location by its Google place ID. Returns nil when not found.
func (r *locationRepository) FindByPlaceID(ctx context.Context, placeID string) (*entity.Location, error) {
	var location entity.Location
	result := r.db.WithContext(ctx).Where("place_id = ?", placeID).First(&location)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &location, nil
}

// FindByURL retrieves a location by its Google Maps URL. Returns nil when not found.
func (r *locationRepository) FindByURL(ctx context.Context, url string) (*entity.Location, error) {
	var location entity.Location
	result := r.db.WithContext(ctx).Where("google_maps_url = ?", url).First(&location)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &location, nil
}

// Update saves all fields of an existing location.
func (r *locationRepository) Update(ctx context.Context, location *entity.Location) error {
	return r.db.WithContext(ctx).Save(location).Error
}

// UpdateScrapeStatus updates only the scrape status column.
func (r *locationRepository) UpdateScrapeStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Location{}).
		Where("id = ?", id).
		Update("scrape_status", status).Error
}

// UpdateNextScrapeAt updates only the next scheduled scrape time, leaving
// the scrape status alone so an in-flight job is not disturbed.
func (r *locationRepository) UpdateNextScrapeAt(ctx context.Context, id string, next time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.Location{}).
		Where("id = ?", id).
		Update("next_scheduled_scrape_at", next).Error
}

// FindDueForRescrape finds locations whose scheduled rescrape time has
// passed and that are not already being scraped.
func (r *locationRepository) FindDueForRescrape(ctx context.Context, now time.Time) ([]entity.Location, error) {
	var locations []entity.Location
	err := r.db.WithContext(ctx).
		Where("scrape_frequency IN ?", []string{entity.ScrapeFrequencyDaily, entity.ScrapeFrequencyWeekly}).
		Where("next_scheduled_scrape_at IS NOT NULL AND next_scheduled_scrape_at <= ?", now).
		Where("scrape_status NOT IN ?", []string{entity.ScrapeStatusPending, entity.ScrapeStatusScraping}).
		Find(&locations).Error
	if err != nil {
		return nil, err
	}
	return locations, nil
}

// LinkUser associates a user with a location.
func (r *locationRepository) LinkUser(ctx context.Context, userID, locationID string) error {
	return r.db.WithContext(ctx).Create(&entity.UserLocation{
		UserID:     userID,
		LocationID: locationID,
	}).Error
}

// IsLinked reports whether the user already has access to the location.
func (r *locationRepository) IsLinked(ctx context.Context, userID, locationID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.UserLocation{}).
		Where("user_id = ? AND location_id = ?", userID, locationID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByUser retrieves all locations linked to the user.
func (r *locationRepository) FindByUser(ctx context.Context, userID string) ([]entity.Location, error) {
	var locations []entity.Location
	err := r.db.WithContext(ctx).
		Joins("JOIN user_locations ul ON ul.location_id = locations.id").
		Where("ul.user_id = ?", userID).
		Order("locations.created_at desc").
		Find(&locations).Error
	if err != nil {
		return nil, err
	}
	return locations, nil
}
