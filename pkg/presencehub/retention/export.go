package retention

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/presencehub/presencehub/pkg/presencehub/models"
)

// ExportPayload is the full structured snapshot of a connection's resources
// taken at disconnect time, before any archiving or scrubbing.
type ExportPayload struct {
	ExportID    string            `json:"export_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Connection  ConnectionSummary `json:"connection"`
	Locations   []models.Location `json:"locations"`
	Reviews     []models.Review   `json:"reviews"`
	Questions   []models.Question `json:"questions"`
	Posts       []models.Post     `json:"posts"`
}

// ConnectionSummary identifies the exported connection without leaking
// credential fields into the payload.
type ConnectionSummary struct {
	ID                uint   `json:"id"`
	ExternalAccountID string `json:"external_account_id"`
	AccountName       string `json:"account_name"`
}

// buildExport gathers every resource under the connection. Any query
// failure aborts the disconnect: failing loudly beats silently losing the
// snapshot the user asked for.
func (m *Manager) buildExport(conn *models.Connection) (*ExportPayload, error) {
	payload := &ExportPayload{
		ExportID:    uuid.New().String(),
		GeneratedAt: time.Now(),
		Connection: ConnectionSummary{
			ID:                conn.ID,
			ExternalAccountID: conn.ExternalAccountID,
			AccountName:       conn.AccountName,
		},
	}

	if err := m.db.Where("connection_id = ?", conn.ID).Find(&payload.Locations).Error; err != nil {
		return nil, fmt.Errorf("exporting locations: %w", err)
	}
	if err := m.db.Where("connection_id = ?", conn.ID).Find(&payload.Reviews).Error; err != nil {
		return nil, fmt.Errorf("exporting reviews: %w", err)
	}
	if err := m.db.Where("connection_id = ?", conn.ID).Find(&payload.Questions).Error; err != nil {
		return nil, fmt.Errorf("exporting questions: %w", err)
	}
	if err := m.db.Where("connection_id = ?", conn.ID).Find(&payload.Posts).Error; err != nil {
		return nil, fmt.Errorf("exporting posts: %w", err)
	}

	return payload, nil
}
