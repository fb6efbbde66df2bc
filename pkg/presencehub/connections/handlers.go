package connections

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/presencehub/presencehub/pkg/presencehub/auth"
	"github.com/presencehub/presencehub/pkg/presencehub/models"
	"github.com/presencehub/presencehub/pkg/presencehub/provider"
)

// Handler handles connection requests
type Handler struct {
	db          *gorm.DB
	provider    *provider.Provider
	stateSecret []byte
}

// NewHandler creates a new connections handler. stateSecret keys the HMAC
// that signs OAuth state across the redirect.
func NewHandler(db *gorm.DB, p *provider.Provider, stateSecret []byte) *Handler {
	return &Handler{db: db, provider: p, stateSecret: stateSecret}
}

// ConnectionResponse represents a connection in API responses. Credential
// fields are never included.
type ConnectionResponse struct {
	ID                uint       `json:"id"`
	ExternalAccountID string     `json:"external_account_id"`
	AccountName       string     `json:"account_name"`
	AccountEmail      string     `json:"account_email,omitempty"`
	Active            bool       `json:"active"`
	LastSyncAt        *time.Time `json:"last_sync_at"`
	DisconnectedAt    *time.Time `json:"disconnected_at,omitempty"`
	RetentionDays     int        `json:"retention_days"`
	DeleteImmediately bool       `json:"delete_immediately"`
	CreatedAt         time.Time  `json:"created_at"`
}

func connectionToResponse(conn *models.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:                conn.ID,
		ExternalAccountID: conn.ExternalAccountID,
		AccountName:       conn.AccountName,
		AccountEmail:      conn.AccountEmail,
		Active:            conn.Active,
		LastSyncAt:        conn.LastSyncAt,
		DisconnectedAt:    conn.DisconnectedAt,
		RetentionDays:     conn.RetentionDays,
		DeleteImmediately: conn.DeleteImmediately,
		CreatedAt:         conn.CreatedAt,
	}
}

// List returns all of the caller's connections
// @Summary List connections
// @Tags connections
// @Produce json
// @Success 200 {array} ConnectionResponse
// @Security BearerAuth
// @Router /connections [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var conns []models.Connection
	if err := h.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&conns).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list connections"})
		return
	}

	responses := make([]ConnectionResponse, len(conns))
	for i := range conns {
		responses[i] = connectionToResponse(&conns[i])
	}
	c.JSON(http.StatusOK, responses)
}

// Get returns one of the caller's connections
// @Summary Get a connection
// @Tags connections
// @Produce json
// @Param id path int true "Connection ID"
// @Success 200 {object} ConnectionResponse
// @Failure 404 {object} map[string]string "Connection not found"
// @Security BearerAuth
// @Router /connections/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, connectionToResponse(conn))
}

// UpdateRetentionRequest updates a connection's retention policy
type UpdateRetentionRequest struct {
	RetentionDays     *int  `json:"retention_days" binding:"omitempty,min=1,max=365"`
	DeleteImmediately *bool `json:"delete_immediately"`
}

// UpdateRetention updates a connection's retention policy
// @Summary Update retention policy
// @Description Set how long archived resources are kept after disconnect
// @Tags connections
// @Accept json
// @Produce json
// @Param id path int true "Connection ID"
// @Param request body UpdateRetentionRequest true "Retention policy"
// @Success 200 {object} ConnectionResponse
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 404 {object} map[string]string "Connection not found"
// @Security BearerAuth
// @Router /connections/{id}/retention [patch]
func (h *Handler) UpdateRetention(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}

	var req UpdateRetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := make(map[string]interface{})
	if req.RetentionDays != nil {
		updates["retention_days"] = *req.RetentionDays
	}
	if req.DeleteImmediately != nil {
		updates["delete_immediately"] = *req.DeleteImmediately
	}

	if len(updates) > 0 {
		if err := h.db.Model(conn).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update retention policy"})
			return
		}
		h.db.First(conn, conn.ID)
	}

	c.JSON(http.StatusOK, connectionToResponse(conn))
}

// ownedConnection loads the :id connection and enforces ownership. A foreign
// connection reads as not found so IDs are not enumerable.
func (h *Handler) ownedConnection(c *gin.Context) (*models.Connection, bool) {
	userID, _ := auth.GetUserID(c)
	connID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection ID"})
		return nil, false
	}

	var conn models.Connection
	if err := h.db.Where("id = ? AND user_id = ?", connID, userID).First(&conn).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		return nil, false
	}
	return &conn, true
}

// RegisterRoutes registers authenticated connection routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/connections", h.List)
	rg.GET("/connections/connect-url", h.ConnectURL)
	rg.GET("/connections/:id", h.Get)
	rg.PATCH("/connections/:id/retention", h.UpdateRetention)
}

// RegisterPublicRoutes registers the OAuth callback, which carries identity
// in the state parameter instead of an Authorization header.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/connections/callback", h.Callback)
}
