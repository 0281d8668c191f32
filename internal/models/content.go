package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Visibility options for location-tagged content
const (
	VisibilityPublic  = "public"
	VisibilityFriends = "friends"
)

// Story is an ephemeral post visible for 24 hours after creation.
// Expired stories are hard-deleted by the cleanup engine along with
// their media, so there is no soft-delete column here.
type Story struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Content string      `gorm:"type:text" json:"content"`
	Images  StringArray `gorm:"type:text[]" json:"images"`

	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	ViewCount int       `gorm:"default:0" json:"view_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none is provided.
func (s *Story) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// SharedLocation is a user's live position broadcast. One row per user;
// re-sharing refreshes the coordinates and the expiry.
type SharedLocation struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"not null;uniqueIndex" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Latitude  float64 `gorm:"not null" json:"latitude"`
	Longitude float64 `gorm:"not null" json:"longitude"`

	Visibility string    `gorm:"not null;default:friends" json:"visibility"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none is provided.
func (l *SharedLocation) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// Shoutout is an ephemeral location-tagged message ("digital graffiti")
// that disappears 24 hours after posting.
type Shoutout struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Content string `gorm:"size:200;not null" json:"content"`

	Latitude  float64 `gorm:"not null" json:"latitude"`
	Longitude float64 `gorm:"not null" json:"longitude"`

	Visibility string    `gorm:"default:public" json:"visibility"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID primary key when none is provided.
func (s *Shoutout) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
