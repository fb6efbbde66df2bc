package resources

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/presencehub/presencehub/pkg/presencehub/auth"
	"github.com/presencehub/presencehub/pkg/presencehub/cache"
	"github.com/presencehub/presencehub/pkg/presencehub/models"
)

// Handler serves read access to synced resources
type Handler struct {
	db       *gorm.DB
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewHandler creates a new resources handler
func NewHandler(db *gorm.DB, c cache.Cache, cacheTTL time.Duration) *Handler {
	return &Handler{db: db, cache: c, cacheTTL: cacheTTL}
}

// Locations lists the locations synced under a connection
// @Summary List locations
// @Description Locations synced under a connection; filterable by archive state
// @Tags resources
// @Produce json
// @Param id path int true "Connection ID"
// @Param archived query string false "Filter: true, false (default) or all"
// @Success 200 {array} models.Location
// @Failure 404 {object} map[string]string "Connection not found"
// @Security BearerAuth
// @Router /connections/{id}/locations [get]
func (h *Handler) Locations(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	connID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection ID"})
		return
	}

	archived := c.DefaultQuery("archived", "false")
	if archived != "true" && archived != "false" && archived != "all" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "archived must be true, false or all"})
		return
	}

	var conn models.Connection
	if err := h.db.Where("id = ? AND user_id = ?", connID, userID).First(&conn).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		return
	}

	ctx := c.Request.Context()
	key := cache.LocationsKey(userID, conn.ID, archived)
	if body, ok := h.cache.Get(ctx, key); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	query := h.db.Where("connection_id = ?", conn.ID)
	switch archived {
	case "true":
		query = query.Where("archived = ?", true)
	case "false":
		query = query.Where("archived = ?", false)
	}

	var locations []models.Location
	if err := query.Order("title ASC").Find(&locations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list locations"})
		return
	}

	// Cache failures fall through to the response; a cold cache is not an
	// error condition.
	if body, err := json.Marshal(locations); err == nil {
		h.cache.Set(ctx, key, body, h.cacheTTL)
	}

	c.JSON(http.StatusOK, locations)
}

// Reviews lists the reviews synced under a location
// @Summary List reviews
// @Tags resources
// @Produce json
// @Param id path int true "Location ID"
// @Success 200 {array} models.Review
// @Failure 404 {object} map[string]string "Location not found"
// @Security BearerAuth
// @Router /locations/{id}/reviews [get]
func (h *Handler) Reviews(c *gin.Context) {
	loc, ok := h.ownedLocation(c)
	if !ok {
		return
	}

	var reviews []models.Review
	err := h.db.Where("user_id = ? AND location_external_id = ?", loc.UserID, loc.ExternalID).
		Order("created_at DESC").Find(&reviews).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list reviews"})
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// Questions lists the questions synced under a location
// @Summary List questions
// @Tags resources
// @Produce json
// @Param id path int true "Location ID"
// @Success 200 {array} models.Question
// @Failure 404 {object} map[string]string "Location not found"
// @Security BearerAuth
// @Router /locations/{id}/questions [get]
func (h *Handler) Questions(c *gin.Context) {
	loc, ok := h.ownedLocation(c)
	if !ok {
		return
	}

	var questions []models.Question
	err := h.db.Where("user_id = ? AND location_external_id = ?", loc.UserID, loc.ExternalID).
		Order("created_at DESC").Find(&questions).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list questions"})
		return
	}
	c.JSON(http.StatusOK, questions)
}

// Posts lists the local posts synced under a location
// @Summary List posts
// @Tags resources
// @Produce json
// @Param id path int true "Location ID"
// @Success 200 {array} models.Post
// @Failure 404 {object} map[string]string "Location not found"
// @Security BearerAuth
// @Router /locations/{id}/posts [get]
func (h *Handler) Posts(c *gin.Context) {
	loc, ok := h.ownedLocation(c)
	if !ok {
		return
	}

	var posts []models.Post
	err := h.db.Where("user_id = ? AND location_external_id = ?", loc.UserID, loc.ExternalID).
		Order("created_at DESC").Find(&posts).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list posts"})
		return
	}
	c.JSON(http.StatusOK, posts)
}

// ownedLocation loads the :id location and enforces ownership. A foreign
// location reads as not found.
func (h *Handler) ownedLocation(c *gin.Context) (*models.Location, bool) {
	userID, _ := auth.GetUserID(c)
	locID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid location ID"})
		return nil, false
	}

	var loc models.Location
	if err := h.db.Where("id = ? AND user_id = ?", locID, userID).First(&loc).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Location not found"})
		return nil, false
	}
	return &loc, true
}

// RegisterRoutes registers resource read routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/connections/:id/locations", h.Locations)
	rg.GET("/locations/:id/reviews", h.Reviews)
	rg.GET("/locations/:id/questions", h.Questions)
	rg.GET("/locations/:id/posts", h.Posts)
}
