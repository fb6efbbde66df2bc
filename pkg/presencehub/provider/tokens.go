package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/presencehub/presencehub/pkg/presencehub/models"
)

// tokenExpiryBuffer is how long before the stored expiry a token is treated
// as already expired, so a sync never starts with a token about to lapse.
const tokenExpiryBuffer = 5 * time.Minute

func tokenStillValid(conn *models.Connection) bool {
	return conn.TokenExpiry != nil && time.Until(*conn.TokenExpiry) > tokenExpiryBuffer
}

// EnsureValidToken returns a currently valid access token for the
// connection, refreshing through the provider's token endpoint when the
// stored one is expired or inside the expiry buffer. Every successful
// refresh is written through to the database before returning, so
// concurrent callers observe the new token. The connection struct is
// updated in place.
//
// A refresh rejected by the provider surfaces as ErrAuthExpired: the grant
// is gone and the user has to reconnect.
func (p *Provider) EnsureValidToken(ctx context.Context, conn *models.Connection) (string, error) {
	// Common cheap path: stored token still comfortably valid.
	if tokenStillValid(conn) {
		return conn.AccessToken, nil
	}

	mu := p.lockFor(conn.ID)
	mu.Lock()
	defer mu.Unlock()

	// Another caller may have refreshed while we waited on the lock.
	var fresh models.Connection
	if err := p.db.First(&fresh, conn.ID).Error; err == nil {
		*conn = fresh
		if tokenStillValid(conn) {
			return conn.AccessToken, nil
		}
	}

	// Force a refresh by handing oauth2 an already-expired token. The
	// library retains the old refresh token when the provider does not
	// reissue one.
	stale := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	tok, err := p.oauth.TokenSource(ctx, stale).Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}

	expiry := tok.Expiry
	updates := map[string]interface{}{
		"access_token": tok.AccessToken,
		"token_expiry": expiry,
	}
	if tok.RefreshToken != "" {
		updates["refresh_token"] = tok.RefreshToken
	}
	if err := p.db.Model(&models.Connection{}).Where("id = ?", conn.ID).Updates(updates).Error; err != nil {
		return "", fmt.Errorf("persisting refreshed token: %w", err)
	}

	conn.AccessToken = tok.AccessToken
	conn.TokenExpiry = &expiry
	if tok.RefreshToken != "" {
		conn.RefreshToken = tok.RefreshToken
	}

	return tok.AccessToken, nil
}
