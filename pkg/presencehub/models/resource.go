package models

import (
	"time"
)

// AnonymizedName replaces reviewer/author display names when resources are
// archived after a disconnect.
const AnonymizedName = "Anonymous"

// Resource tables have no gorm soft-delete column on purpose: the archive
// flag covers the "kept after disconnect" state, and Delete() must remove
// rows outright so a hard-deleted connection never leaves orphans behind.

// Location is a synced business location owned by a Connection.
type Location struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ConnectionID uint   `gorm:"not null;index" json:"connection_id"`
	UserID       uint   `gorm:"not null;uniqueIndex:idx_locations_user_external" json:"user_id"`
	ExternalID   string `gorm:"not null;uniqueIndex:idx_locations_user_external" json:"external_id"`

	Title      string `json:"title"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	WebsiteURL string `json:"website_url"`

	Archived   bool       `gorm:"default:false" json:"archived"`
	ArchivedAt *time.Time `json:"archived_at"`
}

// Review is a synced customer review for a location.
type Review struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ConnectionID       uint   `gorm:"not null;index" json:"connection_id"`
	UserID             uint   `gorm:"not null;uniqueIndex:idx_reviews_user_external" json:"user_id"`
	ExternalID         string `gorm:"not null;uniqueIndex:idx_reviews_user_external" json:"external_id"`
	LocationExternalID string `gorm:"index" json:"location_external_id"`

	Reviewer         string `json:"reviewer"`
	ReviewerPhotoURL string `json:"reviewer_photo_url"`
	Rating           int    `json:"rating"`
	Comment          string `json:"comment"`
	ReplyComment     string `json:"reply_comment"`

	Archived   bool       `gorm:"default:false" json:"archived"`
	ArchivedAt *time.Time `json:"archived_at"`
}

// Question is a synced customer question for a location.
type Question struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ConnectionID       uint   `gorm:"not null;index" json:"connection_id"`
	UserID             uint   `gorm:"not null;uniqueIndex:idx_questions_user_external" json:"user_id"`
	ExternalID         string `gorm:"not null;uniqueIndex:idx_questions_user_external" json:"external_id"`
	LocationExternalID string `gorm:"index" json:"location_external_id"`

	Author         string `json:"author"`
	AuthorPhotoURL string `json:"author_photo_url"`
	Text           string `json:"text"`
	Answer         string `json:"answer"`

	Archived   bool       `gorm:"default:false" json:"archived"`
	ArchivedAt *time.Time `json:"archived_at"`
}

// Post is a synced local post published on a location's profile.
type Post struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ConnectionID       uint   `gorm:"not null;index" json:"connection_id"`
	UserID             uint   `gorm:"not null;uniqueIndex:idx_posts_user_external" json:"user_id"`
	ExternalID         string `gorm:"not null;uniqueIndex:idx_posts_user_external" json:"external_id"`
	LocationExternalID string `gorm:"index" json:"location_external_id"`

	Summary  string `json:"summary"`
	MediaURL string `json:"media_url"`
	State    string `json:"state"`

	Archived   bool       `gorm:"default:false" json:"archived"`
	ArchivedAt *time.Time `json:"archived_at"`
}
