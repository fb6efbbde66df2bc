package connections

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/presencehub/presencehub/pkg/presencehub/auth"
	"github.com/presencehub/presencehub/pkg/presencehub/models"
)

// ConnectURL returns the provider consent page URL for the caller
// @Summary Start connecting an account
// @Description Returns the provider authorization URL the caller should be sent to
// @Tags connections
// @Produce json
// @Param return_url query string false "Frontend URL to redirect back to after the callback"
// @Success 200 {object} map[string]string "Authorization URL"
// @Security BearerAuth
// @Router /connections/connect-url [get]
func (h *Handler) ConnectURL(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	state := h.signState(StateData{
		UserID:    userID,
		ReturnURL: c.Query("return_url"),
		Nonce:     generateNonce(32),
	})

	c.JSON(http.StatusOK, gin.H{"auth_url": h.provider.AuthCodeURL(state)})
}

// Callback handles the provider redirect after consent. It exchanges the
// code, resolves the primary account the credential can manage, and either
// reactivates an existing connection row for that (user, account) pair or
// creates a new one. The route is unauthenticated; identity comes from the
// HMAC-signed state, which only this server can mint.
func (h *Handler) Callback(c *gin.Context) {
	stateData, err := h.verifyState(c.Query("state"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state"})
		return
	}

	code := c.Query("code")
	if code == "" {
		errorDesc := c.Query("error_description")
		if errorDesc == "" {
			errorDesc = c.Query("error")
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Authorization failed: " + errorDesc})
		return
	}

	ctx := c.Request.Context()
	token, err := h.provider.Exchange(ctx, code)
	if err != nil {
		log.Printf("connect: code exchange: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to exchange authorization code"})
		return
	}

	account, err := h.provider.FetchPrimaryAccount(ctx, token.AccessToken)
	if err != nil {
		log.Printf("connect: resolving account: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve the connected account"})
		return
	}

	// Best effort: the ID token carries the account holder's email when the
	// provider issues one and verification is configured.
	accountEmail := ""
	if claims, ok := h.provider.VerifyIDToken(ctx, token); ok {
		accountEmail = claims.Email
	}

	conn, err := h.upsertConnection(stateData.UserID, account.Name, account.AccountName, accountEmail, token.AccessToken, token.RefreshToken, token.Expiry)
	if err != nil {
		log.Printf("connect: saving connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save the connection"})
		return
	}

	if stateData.ReturnURL != "" {
		c.Redirect(http.StatusFound, stateData.ReturnURL+"?connected=1")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"connection": connectionToResponse(conn),
	})
}

// upsertConnection enforces one row per (user, external account): a repeat
// authorization reactivates the existing row with fresh credentials instead
// of creating a duplicate.
func (h *Handler) upsertConnection(userID uint, externalAccountID, accountName, accountEmail, accessToken, refreshToken string, expiry time.Time) (*models.Connection, error) {
	var expiryPtr *time.Time
	if !expiry.IsZero() {
		expiryPtr = &expiry
	}

	var conn models.Connection
	err := h.db.Where("user_id = ? AND external_account_id = ?", userID, externalAccountID).First(&conn).Error
	if err == nil {
		updates := map[string]interface{}{
			"account_name":    accountName,
			"access_token":    accessToken,
			"token_expiry":    expiryPtr,
			"active":          true,
			"disconnected_at": nil,
		}
		// The provider may omit the refresh token on re-consent; keep the
		// stored one in that case.
		if refreshToken != "" {
			updates["refresh_token"] = refreshToken
		}
		if accountEmail != "" {
			updates["account_email"] = accountEmail
		}
		if err := h.db.Model(&conn).Updates(updates).Error; err != nil {
			return nil, err
		}
		h.db.First(&conn, conn.ID)
		return &conn, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conn = models.Connection{
		UserID:            userID,
		ExternalAccountID: externalAccountID,
		AccountName:       accountName,
		AccountEmail:      accountEmail,
		AccessToken:       accessToken,
		RefreshToken:      refreshToken,
		TokenExpiry:       expiryPtr,
		Active:            true,
	}
	if err := h.db.Create(&conn).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}
