package retention

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/presencehub/presencehub/pkg/presencehub/cache"
	"github.com/presencehub/presencehub/pkg/presencehub/models"
)

// Option selects what happens to a connection's synced resources on
// disconnect.
type Option string

const (
	// OptionKeep archives resources with PII scrubbed.
	OptionKeep Option = "keep"
	// OptionExport returns a full snapshot first, then archives like keep.
	OptionExport Option = "export"
	// OptionDelete removes all resources outright.
	OptionDelete Option = "delete"
)

var (
	// ErrNotFound means the connection does not exist.
	ErrNotFound = errors.New("connection not found")
	// ErrForbidden means the connection belongs to a different tenant.
	ErrForbidden = errors.New("connection does not belong to caller")
	// ErrInvalidOption means the disconnect option is not keep/export/delete.
	ErrInvalidOption = errors.New("invalid disconnect option")
)

// Manager applies the disconnect and retention workflow.
type Manager struct {
	db    *gorm.DB
	cache cache.Cache
}

// NewManager creates a retention manager.
func NewManager(db *gorm.DB, c cache.Cache) *Manager {
	return &Manager{db: db, cache: c}
}

// Result reports a completed disconnect.
type Result struct {
	Message string         `json:"message"`
	Export  *ExportPayload `json:"export,omitempty"`
}

// cascadeStep is one entity type in the fixed-order disconnect cascade.
type cascadeStep struct {
	name string
	fn   func() error
}

// Disconnect severs a connection and applies the chosen retention option to
// its resources.
//
// The export snapshot (if requested) is built before anything mutates, and
// its failure aborts the whole disconnect. Credential revocation is applied
// next and is the one step that must never be skipped: whatever happens to
// the cascade afterwards, the tokens are gone. The per-entity cascade is
// best effort; individual step failures are logged and do not fail the
// operation, since an incomplete cascade beats leaving credentials live.
//
// A connection whose policy says DeleteImmediately skips archiving and has
// its resources removed outright even under keep/export (the export
// snapshot, when requested, is still produced first).
func (m *Manager) Disconnect(ctx context.Context, userID, connectionID uint, opt Option) (*Result, error) {
	switch opt {
	case OptionKeep, OptionExport, OptionDelete:
	default:
		return nil, ErrInvalidOption
	}

	var conn models.Connection
	if err := m.db.First(&conn, connectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if conn.UserID != userID {
		return nil, ErrForbidden
	}

	var export *ExportPayload
	if opt == OptionExport {
		payload, err := m.buildExport(&conn)
		if err != nil {
			return nil, fmt.Errorf("building export snapshot: %w", err)
		}
		export = payload
	}

	// Revoke credentials and deactivate. Never skipped, never rolled back.
	now := time.Now()
	err := m.db.Model(&models.Connection{}).Where("id = ?", conn.ID).Updates(map[string]interface{}{
		"access_token":    "",
		"refresh_token":   "",
		"token_expiry":    nil,
		"active":          false,
		"disconnected_at": now,
	}).Error
	if err != nil {
		return nil, err
	}

	if opt == OptionDelete || conn.DeleteImmediately {
		m.runCascade(conn.ID, m.deleteSteps(conn.ID))
	} else {
		m.runCascade(conn.ID, m.archiveSteps(conn.ID, now))
	}

	m.cache.InvalidatePattern(ctx, cache.TenantLocationsPattern(userID))

	return &Result{
		Message: fmt.Sprintf("Account disconnected (%s)", opt),
		Export:  export,
	}, nil
}

func (m *Manager) runCascade(connectionID uint, steps []cascadeStep) {
	for _, step := range steps {
		if err := step.fn(); err != nil {
			log.Printf("disconnect: cascade step %s for connection %d: %v", step.name, connectionID, err)
		}
	}
}

// archiveSteps marks every resource archived and scrubs the
// personally-identifying fields: reviewer/author names become the fixed
// placeholder, photo and media URLs are emptied.
func (m *Manager) archiveSteps(connectionID uint, now time.Time) []cascadeStep {
	return []cascadeStep{
		{"archive locations", func() error {
			return m.db.Model(&models.Location{}).Where("connection_id = ?", connectionID).
				Updates(map[string]interface{}{"archived": true, "archived_at": now}).Error
		}},
		{"archive reviews", func() error {
			return m.db.Model(&models.Review{}).Where("connection_id = ?", connectionID).
				Updates(map[string]interface{}{
					"archived": true, "archived_at": now,
					"reviewer": models.AnonymizedName, "reviewer_photo_url": "",
				}).Error
		}},
		{"archive questions", func() error {
			return m.db.Model(&models.Question{}).Where("connection_id = ?", connectionID).
				Updates(map[string]interface{}{
					"archived": true, "archived_at": now,
					"author": models.AnonymizedName, "author_photo_url": "",
				}).Error
		}},
		{"archive posts", func() error {
			return m.db.Model(&models.Post{}).Where("connection_id = ?", connectionID).
				Updates(map[string]interface{}{"archived": true, "archived_at": now, "media_url": ""}).Error
		}},
	}
}

// deleteSteps removes resources outright, children before their parent
// locations so no step can strand orphans if a later one fails.
func (m *Manager) deleteSteps(connectionID uint) []cascadeStep {
	return []cascadeStep{
		{"delete reviews", func() error {
			return m.db.Where("connection_id = ?", connectionID).Delete(&models.Review{}).Error
		}},
		{"delete questions", func() error {
			return m.db.Where("connection_id = ?", connectionID).Delete(&models.Question{}).Error
		}},
		{"delete posts", func() error {
			return m.db.Where("connection_id = ?", connectionID).Delete(&models.Post{}).Error
		}},
		{"delete locations", func() error {
			return m.db.Where("connection_id = ?", connectionID).Delete(&models.Location{}).Error
		}},
	}
}

// PurgeArchived permanently deletes a connection's archived resources.
// Idempotent: purging an empty archive set succeeds with count zero.
func (m *Manager) PurgeArchived(ctx context.Context, userID, connectionID uint) (int64, error) {
	var conn models.Connection
	if err := m.db.First(&conn, connectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if conn.UserID != userID {
		return 0, ErrForbidden
	}

	purged := m.purgeConnection(connectionID)
	m.cache.InvalidatePattern(ctx, cache.TenantLocationsPattern(userID))
	return purged, nil
}

// SweepExpired permanently deletes archived resources of disconnected
// connections whose retention window has lapsed. Returns the number of rows
// removed. Intended to be run on a schedule or triggered by an admin.
func (m *Manager) SweepExpired(now time.Time) (int64, error) {
	var conns []models.Connection
	err := m.db.Where("active = ? AND disconnected_at IS NOT NULL", false).Find(&conns).Error
	if err != nil {
		return 0, err
	}

	var total int64
	for _, conn := range conns {
		deadline := conn.DisconnectedAt.AddDate(0, 0, conn.RetentionDays)
		if now.Before(deadline) {
			continue
		}
		total += m.purgeConnection(conn.ID)
	}
	return total, nil
}

func (m *Manager) purgeConnection(connectionID uint) int64 {
	var purged int64
	for _, step := range []struct {
		name  string
		model interface{}
	}{
		{"reviews", &models.Review{}},
		{"questions", &models.Question{}},
		{"posts", &models.Post{}},
		{"locations", &models.Location{}},
	} {
		res := m.db.Where("connection_id = ? AND archived = ?", connectionID, true).Delete(step.model)
		if res.Error != nil {
			log.Printf("purge: deleting archived %s for connection %d: %v", step.name, connectionID, res.Error)
			continue
		}
		purged += res.RowsAffected
	}
	return purged
}
