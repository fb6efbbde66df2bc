package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/presencehub/presencehub/pkg/presencehub/cache"
	"github.com/presencehub/presencehub/pkg/presencehub/models"
	"github.com/presencehub/presencehub/pkg/presencehub/provider"
)

// upsertBatchSize bounds how many rows go into a single upsert statement.
const upsertBatchSize = 50

// ErrNoActiveConnection means the tenant has no active connection to sync.
var ErrNoActiveConnection = errors.New("no active connection")

// StorageError wraps a persistence failure during a sync. Upserts are
// idempotent by (user, external id), so a failed sync is partially applied
// and safe to retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Result reports what a completed sync did.
type Result struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// Service coordinates one tenant's sync: cooldown gate, token refresh,
// paginated fetch, and batched idempotent upserts.
type Service struct {
	db       *gorm.DB
	provider *provider.Provider
	gate     *Gate
	cache    cache.Cache
}

// NewService creates a sync service.
func NewService(db *gorm.DB, p *provider.Provider, gate *Gate, c cache.Cache) *Service {
	return &Service{db: db, provider: p, gate: gate, cache: c}
}

// SyncAccount syncs the tenant's most recently synced active connection.
//
// The attempt is recorded on the cooldown gate before any network call.
// Locations are fetched and upserted first, then each location's reviews,
// questions, and posts. Zero upstream items is a successful sync with count
// zero. A failed upsert batch aborts the rest but already-committed batches
// stay committed. The final last_sync_at write is best effort: its failure
// is logged, never surfaced.
func (s *Service) SyncAccount(ctx context.Context, userID uint) (*Result, error) {
	var conn models.Connection
	err := s.db.Where("user_id = ? AND active = ?", userID, true).
		Order("last_sync_at DESC").
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveConnection
		}
		return nil, &StorageError{Op: "resolve connection", Err: err}
	}

	if err := s.gate.Acquire(conn.ID, time.Now()); err != nil {
		return nil, err
	}

	token, err := s.provider.EnsureValidToken(ctx, &conn)
	if err != nil {
		return nil, err
	}

	items, err := s.provider.FetchAllPages(ctx, s.provider.LocationsEndpoint(conn.ExternalAccountID), token)
	if err != nil {
		return nil, err
	}
	locations, err := mapLocations(items, &conn)
	if err != nil {
		return nil, err
	}
	if err := upsertRows(s.db, locations, resourceUpdateColumns(&models.Location{})); err != nil {
		return nil, err
	}
	count := len(locations)

	for _, loc := range locations {
		n, err := s.syncLocationChildren(ctx, &conn, loc.ExternalID, token)
		if err != nil {
			return nil, err
		}
		count += n
	}

	now := time.Now()
	if err := s.db.Model(&models.Connection{}).Where("id = ?", conn.ID).
		Update("last_sync_at", now).Error; err != nil {
		// Timestamp staleness is non-fatal; the sync itself succeeded.
		log.Printf("sync: updating last_sync_at for connection %d: %v", conn.ID, err)
	}

	s.cache.InvalidatePattern(ctx, cache.TenantLocationsPattern(userID))

	return &Result{
		Count:   count,
		Message: fmt.Sprintf("Synced %d items", count),
	}, nil
}

func (s *Service) syncLocationChildren(ctx context.Context, conn *models.Connection, locationID, token string) (int, error) {
	items, err := s.provider.FetchAllPages(ctx, s.provider.ReviewsEndpoint(locationID), token)
	if err != nil {
		return 0, err
	}
	reviews, err := mapReviews(items, conn, locationID)
	if err != nil {
		return 0, err
	}
	if err := upsertRows(s.db, reviews, resourceUpdateColumns(&models.Review{})); err != nil {
		return 0, err
	}
	count := len(reviews)

	items, err = s.provider.FetchAllPages(ctx, s.provider.QuestionsEndpoint(locationID), token)
	if err != nil {
		return 0, err
	}
	questions, err := mapQuestions(items, conn, locationID)
	if err != nil {
		return 0, err
	}
	if err := upsertRows(s.db, questions, resourceUpdateColumns(&models.Question{})); err != nil {
		return 0, err
	}
	count += len(questions)

	items, err = s.provider.FetchAllPages(ctx, s.provider.PostsEndpoint(locationID), token)
	if err != nil {
		return 0, err
	}
	posts, err := mapPosts(items, conn, locationID)
	if err != nil {
		return 0, err
	}
	if err := upsertRows(s.db, posts, resourceUpdateColumns(&models.Post{})); err != nil {
		return 0, err
	}
	count += len(posts)

	return count, nil
}

// upsertRows writes rows in bounded batches, keyed (user_id, external_id).
// Each batch commits on its own: a failure aborts the remaining batches but
// leaves earlier ones in place, which is safe because re-running the sync
// upserts the same keys.
func upsertRows[T any](db *gorm.DB, rows []T, updateColumns []string) error {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}
	for start := 0; start < len(rows); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(rows))
		batch := rows[start:end]
		if err := db.Clauses(onConflict).Create(&batch).Error; err != nil {
			return &StorageError{Op: fmt.Sprintf("upsert batch at offset %d", start), Err: err}
		}
	}
	return nil
}

// resourceUpdateColumns lists the columns an upsert refreshes on conflict.
// Archive state is deliberately excluded: a re-sync must not resurrect
// archived flags, and identity/ownership columns never change.
func resourceUpdateColumns(model interface{}) []string {
	switch model.(type) {
	case *models.Location:
		return []string{"connection_id", "title", "address", "phone", "website_url", "updated_at"}
	case *models.Review:
		return []string{"connection_id", "location_external_id", "reviewer", "reviewer_photo_url", "rating", "comment", "reply_comment", "updated_at"}
	case *models.Question:
		return []string{"connection_id", "location_external_id", "author", "author_photo_url", "text", "answer", "updated_at"}
	case *models.Post:
		return []string{"connection_id", "location_external_id", "summary", "media_url", "state", "updated_at"}
	}
	return nil
}

func mapLocations(items []json.RawMessage, conn *models.Connection) ([]models.Location, error) {
	out := make([]models.Location, 0, len(items))
	for _, raw := range items {
		var item provider.LocationItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &provider.UpstreamError{Body: "malformed location item: " + err.Error()}
		}
		out = append(out, models.Location{
			ConnectionID: conn.ID,
			UserID:       conn.UserID,
			ExternalID:   item.Name,
			Title:        item.Title,
			Address:      item.Address,
			Phone:        item.Phone,
			WebsiteURL:   item.WebsiteURL,
		})
	}
	return out, nil
}

func mapReviews(items []json.RawMessage, conn *models.Connection, locationID string) ([]models.Review, error) {
	out := make([]models.Review, 0, len(items))
	for _, raw := range items {
		var item provider.ReviewItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &provider.UpstreamError{Body: "malformed review item: " + err.Error()}
		}
		out = append(out, models.Review{
			ConnectionID:       conn.ID,
			UserID:             conn.UserID,
			ExternalID:         item.Name,
			LocationExternalID: locationID,
			Reviewer:           item.Reviewer.DisplayName,
			ReviewerPhotoURL:   item.Reviewer.ProfilePhotoURL,
			Rating:             item.StarRating,
			Comment:            item.Comment,
			ReplyComment:       item.Reply.Comment,
		})
	}
	return out, nil
}

func mapQuestions(items []json.RawMessage, conn *models.Connection, locationID string) ([]models.Question, error) {
	out := make([]models.Question, 0, len(items))
	for _, raw := range items {
		var item provider.QuestionItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &provider.UpstreamError{Body: "malformed question item: " + err.Error()}
		}
		out = append(out, models.Question{
			ConnectionID:       conn.ID,
			UserID:             conn.UserID,
			ExternalID:         item.Name,
			LocationExternalID: locationID,
			Author:             item.Author.DisplayName,
			AuthorPhotoURL:     item.Author.ProfilePhotoURL,
			Text:               item.Text,
			Answer:             item.TopAnswer.Text,
		})
	}
	return out, nil
}

func mapPosts(items []json.RawMessage, conn *models.Connection, locationID string) ([]models.Post, error) {
	out := make([]models.Post, 0, len(items))
	for _, raw := range items {
		var item provider.PostItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &provider.UpstreamError{Body: "malformed post item: " + err.Error()}
		}
		out = append(out, models.Post{
			ConnectionID:       conn.ID,
			UserID:             conn.UserID,
			ExternalID:         item.Name,
			LocationExternalID: locationID,
			Summary:            item.Summary,
			MediaURL:           item.MediaURL,
			State:              item.State,
		})
	}
	return out, nil
}
