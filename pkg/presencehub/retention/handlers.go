package retention

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/presencehub/presencehub/pkg/presencehub/auth"
)

// Handler handles disconnect and retention requests
type Handler struct {
	manager *Manager
}

// NewHandler creates a new retention handler
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// DisconnectRequest selects the retention option for a disconnect
type DisconnectRequest struct {
	Option string `json:"option" binding:"required,oneof=keep export delete"`
}

// Disconnect severs a connection and applies the chosen retention option
// @Summary Disconnect an account
// @Description Clear credentials and archive or delete the connection's synced resources
// @Tags connections
// @Accept json
// @Produce json
// @Param id path int true "Connection ID"
// @Param request body DisconnectRequest true "Retention option: keep, export or delete"
// @Success 200 {object} map[string]interface{} "Disconnect result, with export payload for option=export"
// @Failure 400 {object} map[string]string "Invalid option"
// @Failure 403 {object} map[string]string "Not the connection owner"
// @Failure 404 {object} map[string]string "Connection not found"
// @Security BearerAuth
// @Router /connections/{id}/disconnect [post]
func (h *Handler) Disconnect(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	connID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection ID"})
		return
	}

	var req DisconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.manager.Disconnect(c.Request.Context(), userID, uint(connID), Option(req.Option))
	if err != nil {
		respondRetentionError(c, err)
		return
	}

	resp := gin.H{"success": true, "message": result.Message}
	if result.Export != nil {
		resp["export"] = result.Export
	}
	c.JSON(http.StatusOK, resp)
}

// Purge permanently deletes a connection's archived resources
// @Summary Purge archived resources
// @Description Permanently delete archived resources for a connection; idempotent
// @Tags connections
// @Produce json
// @Param id path int true "Connection ID"
// @Success 200 {object} map[string]interface{} "Number of purged rows"
// @Failure 403 {object} map[string]string "Not the connection owner"
// @Failure 404 {object} map[string]string "Connection not found"
// @Security BearerAuth
// @Router /connections/{id}/archive [delete]
func (h *Handler) Purge(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	connID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection ID"})
		return
	}

	purged, err := h.manager.PurgeArchived(c.Request.Context(), userID, uint(connID))
	if err != nil {
		respondRetentionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "purged": purged})
}

// Sweep purges every disconnected connection past its retention window
// @Summary Run the retention sweep
// @Description Permanently delete archived resources whose retention window has lapsed
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Number of purged rows"
// @Security BearerAuth
// @Router /admin/retention/sweep [post]
func (h *Handler) Sweep(c *gin.Context) {
	purged, err := h.manager.SweepExpired(time.Now())
	if err != nil {
		log.Printf("retention sweep: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "purged": purged})
}

func respondRetentionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidOption):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Option must be keep, export or delete"})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not the owner of this connection"})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
	default:
		log.Printf("retention: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Operation failed, please try again"})
	}
}

// RegisterRoutes registers disconnect/retention routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/connections/:id/disconnect", h.Disconnect)
	rg.DELETE("/connections/:id/archive", h.Purge)
}

// RegisterAdminRoutes registers the retention sweep on the admin group
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/retention/sweep", h.Sweep)
}
