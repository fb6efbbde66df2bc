package sync

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/presencehub/presencehub/pkg/presencehub/models"
)

// CooldownError rejects a sync that arrives before the per-connection
// cooldown window has elapsed. RetryAfter is how long the caller should wait.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("sync on cooldown, retry after %s", e.RetryAfter)
}

// Gate enforces a minimum interval between sync attempts per connection.
//
// The check is a conditional UPDATE on the connection's last_sync_attempt
// column: it only succeeds when the previous attempt is older than the
// window, so concurrent requests from any number of server instances race
// on the database row, not on process-local state. The attempt timestamp is
// recorded before any network I/O happens.
type Gate struct {
	db     *gorm.DB
	window time.Duration
}

// NewGate creates a cooldown gate with the given window.
func NewGate(db *gorm.DB, window time.Duration) *Gate {
	return &Gate{db: db, window: window}
}

// Acquire records a sync attempt for the connection, or returns
// *CooldownError with the remaining wait when the window has not elapsed.
func (g *Gate) Acquire(connectionID uint, now time.Time) error {
	cutoff := now.Add(-g.window)
	res := g.db.Model(&models.Connection{}).
		Where("id = ? AND (last_sync_attempt IS NULL OR last_sync_attempt <= ?)", connectionID, cutoff).
		Update("last_sync_attempt", now)
	if res.Error != nil {
		return &StorageError{Op: "record sync attempt", Err: res.Error}
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var conn models.Connection
	if err := g.db.Select("last_sync_attempt").First(&conn, connectionID).Error; err != nil {
		return &StorageError{Op: "read sync attempt", Err: err}
	}
	remaining := g.window
	if conn.LastSyncAttempt != nil {
		remaining = g.window - now.Sub(*conn.LastSyncAttempt)
	}
	if remaining < time.Second {
		remaining = time.Second
	}
	return &CooldownError{RetryAfter: remaining}
}
