package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/presencehub/presencehub/pkg/presencehub/cache"
	"github.com/presencehub/presencehub/pkg/presencehub/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

// seedConnectedAccount creates a user with an active connection and one of
// each resource type underneath it.
func seedConnectedAccount(t *testing.T, db *gorm.DB) (*models.User, *models.Connection) {
	user := models.User{Email: "owner@example.com", Name: "Owner"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	expiry := time.Now().Add(time.Hour)
	conn := models.Connection{
		UserID:            user.ID,
		ExternalAccountID: "accounts/1",
		AccountName:       "Acme Plumbing",
		AccessToken:       "access",
		RefreshToken:      "refresh",
		TokenExpiry:       &expiry,
		Active:            true,
	}
	if err := db.Create(&conn).Error; err != nil {
		t.Fatalf("Failed to create connection: %v", err)
	}

	location := models.Location{
		ConnectionID: conn.ID, UserID: user.ID,
		ExternalID: "accounts/1/locations/1", Title: "Downtown",
	}
	review := models.Review{
		ConnectionID: conn.ID, UserID: user.ID,
		ExternalID: "accounts/1/locations/1/reviews/1", LocationExternalID: location.ExternalID,
		Reviewer: "Pat", ReviewerPhotoURL: "https://p.example/pat", Rating: 5, Comment: "Great",
	}
	question := models.Question{
		ConnectionID: conn.ID, UserID: user.ID,
		ExternalID: "accounts/1/locations/1/questions/1", LocationExternalID: location.ExternalID,
		Author: "Lee", AuthorPhotoURL: "https://p.example/lee", Text: "Open Sundays?",
	}
	post := models.Post{
		ConnectionID: conn.ID, UserID: user.ID,
		ExternalID: "accounts/1/locations/1/posts/1", LocationExternalID: location.ExternalID,
		Summary: "Sale", MediaURL: "https://m.example/sale.jpg",
	}
	for _, row := range []interface{}{&location, &review, &question, &post} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("Failed to seed resource: %v", err)
		}
	}
	return &user, &conn
}

func assertCredentialsRevoked(t *testing.T, db *gorm.DB, connID uint) {
	t.Helper()
	var conn models.Connection
	db.First(&conn, connID)
	if conn.AccessToken != "" || conn.RefreshToken != "" || conn.TokenExpiry != nil {
		t.Error("Expected credentials to be cleared")
	}
	if conn.Active {
		t.Error("Expected connection to be inactive")
	}
	if conn.DisconnectedAt == nil {
		t.Error("Expected disconnected_at to be set")
	}
}

func TestDisconnectKeepArchivesAndScrubs(t *testing.T) {
	db := setupTestDB(t)
	user, conn := seedConnectedAccount(t, db)
	m := NewManager(db, cache.NewNop())

	result, err := m.Disconnect(context.Background(), user.ID, conn.ID, OptionKeep)
	if err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if result.Export != nil {
		t.Error("keep must not produce an export payload")
	}

	assertCredentialsRevoked(t, db, conn.ID)

	var location models.Location
	db.First(&location)
	if !location.Archived || location.ArchivedAt == nil {
		t.Error("Expected location to be archived")
	}

	var review models.Review
	db.First(&review)
	if !review.Archived {
		t.Error("Expected review to be archived")
	}
	if review.Reviewer != models.AnonymizedName || review.ReviewerPhotoURL != "" {
		t.Errorf("Expected reviewer scrubbed, got %q / %q", review.Reviewer, review.ReviewerPhotoURL)
	}
	if review.Comment != "Great" {
		t.Error("Review content should survive archiving")
	}

	var question models.Question
	db.First(&question)
	if question.Author != models.AnonymizedName || question.AuthorPhotoURL != "" {
		t.Errorf("Expected author scrubbed, got %q / %q", question.Author, question.AuthorPhotoURL)
	}

	var post models.Post
	db.First(&post)
	if post.MediaURL != "" {
		t.Errorf("Expected media URL cleared, got %q", post.MediaURL)
	}
}

func TestDisconnectDeleteRemovesResources(t *testing.T) {
	db := setupTestDB(t)
	user, conn := seedConnectedAccount(t, db)
	m := NewManager(db, cache.NewNop())

	if _, err := m.Disconnect(context.Background(), user.ID, conn.ID, OptionDelete); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	assertCredentialsRevoked(t, db, conn.ID)

	for name, model := range map[string]interface{}{
		"locations": &models.Location{},
		"reviews":   &models.Review{},
		"questions": &models.Question{},
		"posts":     &models.Post{},
	} {
		var count int64
		db.Model(model).Count(&count)
		if count != 0 {
			t.Errorf("Expected no %s left, got %d", name, count)
		}
	}
}

func TestDisconnectExportReturnsSnapshot(t *testing.T) {
	db := setupTestDB(t)
	user, conn := seedConnectedAccount(t, db)
	m := NewManager(db, cache.NewNop())

	result, err := m.Disconnect(context.Background(), user.ID, conn.ID, OptionExport)
	if err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if result.Export == nil {
		t.Fatal("Expected an export payload")
	}

	export := result.Export
	if export.ExportID == "" || export.GeneratedAt.IsZero() {
		t.Error("Expected export metadata to be populated")
	}
	if export.Connection.ExternalAccountID != "accounts/1" {
		t.Errorf("Unexpected connection summary: %+v", export.Connection)
	}
	if len(export.Locations) != 1 || len(export.Reviews) != 1 || len(export.Questions) != 1 || len(export.Posts) != 1 {
		t.Fatalf("Expected full snapshot, got %d/%d/%d/%d",
			len(export.Locations), len(export.Reviews), len(export.Questions), len(export.Posts))
	}

	// The snapshot is taken before scrubbing.
	if export.Reviews[0].Reviewer != "Pat" {
		t.Errorf("Export must carry original reviewer, got %q", export.Reviews[0].Reviewer)
	}

	// Afterwards the data is archived like keep.
	var review models.Review
	db.First(&review)
	if !review.Archived || review.Reviewer != models.AnonymizedName {
		t.Error("Expected resources archived and scrubbed after export")
	}
}

func TestDisconnectDeleteImmediatelyPolicy(t *testing.T) {
	db := setupTestDB(t)
	user, conn := seedConnectedAccount(t, db)
	db.Model(&models.Connection{}).Where("id = ?", conn.ID).Update("delete_immediately", true)
	m := NewManager(db, cache.NewNop())

	// keep is overridden by the connection's delete_immediately policy.
	if _, err := m.Disconnect(context.Background(), user.ID, conn.ID, OptionKeep); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	var count int64
	db.Model(&models.Location{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected resources deleted under delete_immediately, got %d locations", count)
	}
}

func TestDisconnectInvalidOption(t *testing.T) {
	db := setupTestDB(t)
	user, conn := seedConnectedAccount(t, db)
	m := NewManager(db, cache.NewNop())

	_, err := m.Disconnect(context.Background(), user.ID, conn.ID, Option("purge"))
	if !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("Expected ErrInvalidOption, got %v", err)
	}
}

func TestDisconnectForbidden(t *testing.T) {
	db := setupTestDB(t)
	_, conn := seedConnectedAccount(t, db)
	m := NewManager(db, cache.NewNop())

	_, err := m.Disconnect(context.Background(), 9999, conn.ID, OptionKeep)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("Expected ErrForbidden, got %v", err)
	}

	// Nothing happened to the connection.
	var stored models.Connection
	db.First(&stored, conn.ID)
	if !stored.Active || stored.AccessToken == "" {
		t.Error("Foreign disconnect attempt must not touch the connection")
	}
}

func TestDisconnectNotFound(t *testing.T) {
	db := setupTestDB(t)
	user, _ := seedConnectedAccount(t, db)
	m := NewManager(db, cache.NewNop())

	_, err := m.Disconnect(context.Background(), user.ID, 9999, OptionKeep)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestPurgeArchivedIdempotent(t *testing.T) {
	db := setupTestDB(t)
	user, conn := seedConnectedAccount(t, db)
	m := NewManager(db, cache.NewNop())

	if _, err := m.Disconnect(context.Background(), user.ID, conn.ID, OptionKeep); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	purged, err := m.PurgeArchived(context.Background(), user.ID, conn.ID)
	if err != nil {
		t.Fatalf("PurgeArchived failed: %v", err)
	}
	if purged != 4 {
		t.Errorf("Expected 4 purged rows, got %d", purged)
	}

	purged, err = m.PurgeArchived(context.Background(), user.ID, conn.ID)
	if err != nil {
		t.Fatalf("Second PurgeArchived failed: %v", err)
	}
	if purged != 0 {
		t.Errorf("Expected purge to be idempotent, got %d", purged)
	}
}

func TestPurgeArchivedLeavesLiveRows(t *testing.T) {
	db := setupTestDB(t)
	user, conn := seedConnectedAccount(t, db)
	m := NewManager(db, cache.NewNop())

	purged, err := m.PurgeArchived(context.Background(), user.ID, conn.ID)
	if err != nil {
		t.Fatalf("PurgeArchived failed: %v", err)
	}
	if purged != 0 {
		t.Errorf("Expected nothing purged while rows are live, got %d", purged)
	}

	var count int64
	db.Model(&models.Location{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected live rows untouched, got %d locations", count)
	}
}

func TestSweepExpired(t *testing.T) {
	db := setupTestDB(t)
	m := NewManager(db, cache.NewNop())

	expiredUser, expiredConn := seedConnectedAccount(t, db)
	if _, err := m.Disconnect(context.Background(), expiredUser.ID, expiredConn.ID, OptionKeep); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	// Retention is 30 days by default; back-date the disconnect past it.
	old := time.Now().AddDate(0, 0, -40)
	db.Model(&models.Connection{}).Where("id = ?", expiredConn.ID).Update("disconnected_at", old)

	recentUser := models.User{Email: "recent@example.com", Name: "Recent"}
	db.Create(&recentUser)
	recentConn := models.Connection{UserID: recentUser.ID, ExternalAccountID: "accounts/2", Active: true}
	db.Create(&recentConn)
	db.Create(&models.Location{
		ConnectionID: recentConn.ID, UserID: recentUser.ID,
		ExternalID: "accounts/2/locations/1", Title: "Recent",
	})
	if _, err := m.Disconnect(context.Background(), recentUser.ID, recentConn.ID, OptionKeep); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	purged, err := m.SweepExpired(time.Now())
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if purged != 4 {
		t.Errorf("Expected 4 rows purged from the expired connection, got %d", purged)
	}

	var remaining int64
	db.Model(&models.Location{}).Where("connection_id = ?", recentConn.ID).Count(&remaining)
	if remaining != 1 {
		t.Errorf("Sweep must not touch connections inside their retention window, got %d", remaining)
	}
}
