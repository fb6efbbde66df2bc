package provider

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// Config describes the OAuth provider and its resource API.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	// IssuerURL enables ID token verification on the connect callback.
	// Optional; when empty the callback relies on the accounts API alone.
	IssuerURL string
	// APIBaseURL is the root of the paginated resource API, without a
	// trailing slash.
	APIBaseURL string
	Scopes     []string
}

// Provider wraps the OAuth credential lifecycle and the provider's paginated
// resource API behind one client.
type Provider struct {
	db         *gorm.DB
	oauth      *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	apiBaseURL string
	httpClient *http.Client

	// refreshLocks serializes token refreshes per connection so concurrent
	// callers do not race to refresh the same expired token.
	refreshLocks sync.Map // connection ID -> *sync.Mutex
}

// New creates a Provider. ID token verification is set up only when an
// issuer is configured and discovery succeeds; a discovery failure is logged
// and the provider still works without it.
func New(db *gorm.DB, cfg Config) *Provider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "https://www.googleapis.com/auth/business.manage"}
	}

	p := &Provider{
		db: db,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			Scopes: scopes,
		},
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	if cfg.IssuerURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		oidcProvider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
		if err != nil {
			log.Printf("OIDC discovery for %s failed, ID token verification disabled: %v", cfg.IssuerURL, err)
		} else {
			p.verifier = oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
		}
	}

	return p
}

// AuthCodeURL returns the provider's consent page URL for the given state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauth.Exchange(ctx, code)
}

// VerifyIDToken verifies the raw ID token from a token response and returns
// its claims. Returns ok=false when verification is not configured.
type IDClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

func (p *Provider) VerifyIDToken(ctx context.Context, tok *oauth2.Token) (*IDClaims, bool) {
	if p.verifier == nil {
		return nil, false
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil, false
	}
	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		log.Printf("ID token verification failed: %v", err)
		return nil, false
	}
	var claims IDClaims
	if err := idToken.Claims(&claims); err != nil {
		log.Printf("ID token claims decode failed: %v", err)
		return nil, false
	}
	return &claims, true
}

func (p *Provider) lockFor(connectionID uint) *sync.Mutex {
	mu, _ := p.refreshLocks.LoadOrStore(connectionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
