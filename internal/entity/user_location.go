package entity

import (
	"time"
)

// UserLocation links a user to a shared location. A user cannot link the
// same location twice.
type UserLocation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_user_location" json:"user_id"`
	LocationID string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_location;index" json:"location_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the UserLocation model.
func (UserLocation) TableName() string {
	return "user_locations"
}
