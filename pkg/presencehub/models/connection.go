package models

import (
	"time"
)

// Connection represents one external business-profile account linked to one
// user. It holds the OAuth credential and the sync/disconnect state.
//
// Exactly one Connection per (user, external account) pair may be active at a
// time; re-authentication reactivates an inactive row instead of creating a
// duplicate. Disconnect soft-deactivates the row (Active=false) and always
// clears the stored tokens, whatever retention option was chosen.
type Connection struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID            uint   `gorm:"not null;uniqueIndex:idx_connections_user_account" json:"user_id"`
	ExternalAccountID string `gorm:"not null;uniqueIndex:idx_connections_user_account" json:"external_account_id"`
	AccountName       string `json:"account_name"`
	AccountEmail      string `json:"account_email"`

	// OAuth credential. Cleared on disconnect.
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenExpiry  *time.Time `json:"-"`

	Active          bool       `gorm:"default:true" json:"active"`
	LastSyncAt      *time.Time `json:"last_sync_at"`
	LastSyncAttempt *time.Time `json:"last_sync_attempt"`
	DisconnectedAt  *time.Time `json:"disconnected_at"`

	// Retention policy applied to archived resources after disconnect.
	RetentionDays     int  `gorm:"default:30" json:"retention_days"`
	DeleteImmediately bool `gorm:"default:false" json:"delete_immediately"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
