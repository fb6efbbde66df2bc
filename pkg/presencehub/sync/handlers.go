package sync

import (
	"errors"
	"log"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/presencehub/presencehub/pkg/presencehub/auth"
	"github.com/presencehub/presencehub/pkg/presencehub/provider"
)

// Handler handles sync requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new sync handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Sync triggers a full sync of the caller's active connection
// @Summary Sync the connected account
// @Description Pull locations, reviews, questions and posts from the provider and upsert them
// @Tags sync
// @Produce json
// @Success 200 {object} map[string]interface{} "Sync result"
// @Failure 401 {object} map[string]string "Account must be reconnected"
// @Failure 404 {object} map[string]string "No active connection"
// @Failure 429 {object} map[string]interface{} "Cooldown or upstream rate limit"
// @Failure 500 {object} map[string]string "Sync failed"
// @Security BearerAuth
// @Router /sync [post]
func (h *Handler) Sync(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	result, err := h.svc.SyncAccount(c.Request.Context(), userID)
	if err != nil {
		respondSyncError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   result.Count,
		"message": result.Message,
	})
}

// respondSyncError maps the sync error taxonomy onto HTTP responses.
// Rate-limit and auth errors carry actionable messages; upstream and
// storage details stay in server logs only.
func respondSyncError(c *gin.Context, err error) {
	var cooldown *CooldownError
	var rateLimited *provider.RateLimitedError
	var upstream *provider.UpstreamError
	var storage *StorageError

	switch {
	case errors.Is(err, ErrNoActiveConnection):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "No active connection to sync"})
	case errors.Is(err, provider.ErrAuthExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Please reconnect your account"})
	case errors.As(err, &cooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success":             false,
			"error":               "Sync is on cooldown, please wait",
			"retry_after_seconds": ceilSeconds(cooldown.RetryAfter.Seconds()),
		})
	case errors.As(err, &rateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success":             false,
			"error":               "Provider is rate limiting, please wait",
			"retry_after_seconds": ceilSeconds(rateLimited.RetryAfter.Seconds()),
		})
	case errors.As(err, &upstream):
		log.Printf("sync: upstream failure: %v", upstream)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Sync failed, please try again"})
	case errors.As(err, &storage):
		log.Printf("sync: %v", storage)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Sync failed, please try again"})
	default:
		log.Printf("sync: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Sync failed, please try again"})
	}
}

func ceilSeconds(secs float64) int {
	return int(math.Ceil(secs))
}

// RegisterRoutes registers sync routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync", h.Sync)
}
