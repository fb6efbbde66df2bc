package provider

import (
	"context"
	"encoding/json"
)

// Item shapes returned by the resource API. External identifiers are
// hierarchical resource names ("accounts/1", "accounts/1/locations/2", ...).

// Account identifies one business account the credential can manage.
type Account struct {
	Name        string `json:"name"`
	AccountName string `json:"accountName"`
}

// LocationItem is one business location as returned by the API.
type LocationItem struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	WebsiteURL string `json:"websiteUrl"`
}

// ReviewItem is one customer review as returned by the API.
type ReviewItem struct {
	Name     string `json:"name"`
	Reviewer struct {
		DisplayName     string `json:"displayName"`
		ProfilePhotoURL string `json:"profilePhotoUrl"`
	} `json:"reviewer"`
	StarRating int    `json:"starRating"`
	Comment    string `json:"comment"`
	Reply      struct {
		Comment string `json:"comment"`
	} `json:"reviewReply"`
}

// QuestionItem is one customer question as returned by the API.
type QuestionItem struct {
	Name   string `json:"name"`
	Author struct {
		DisplayName     string `json:"displayName"`
		ProfilePhotoURL string `json:"profilePhotoUrl"`
	} `json:"author"`
	Text      string `json:"text"`
	TopAnswer struct {
		Text string `json:"text"`
	} `json:"topAnswer"`
}

// PostItem is one local post as returned by the API.
type PostItem struct {
	Name     string `json:"name"`
	Summary  string `json:"summary"`
	MediaURL string `json:"mediaUrl"`
	State    string `json:"state"`
}

// AccountsEndpoint lists the accounts reachable with a credential.
func (p *Provider) AccountsEndpoint() string {
	return p.apiBaseURL + "/accounts"
}

// LocationsEndpoint lists the locations under an account resource name.
func (p *Provider) LocationsEndpoint(accountID string) string {
	return p.apiBaseURL + "/" + accountID + "/locations"
}

// ReviewsEndpoint lists the reviews under a location resource name.
func (p *Provider) ReviewsEndpoint(locationID string) string {
	return p.apiBaseURL + "/" + locationID + "/reviews"
}

// QuestionsEndpoint lists the questions under a location resource name.
func (p *Provider) QuestionsEndpoint(locationID string) string {
	return p.apiBaseURL + "/" + locationID + "/questions"
}

// PostsEndpoint lists the local posts under a location resource name.
func (p *Provider) PostsEndpoint(locationID string) string {
	return p.apiBaseURL + "/" + locationID + "/posts"
}

// FetchPrimaryAccount returns the first account the token can manage, which
// is the account a new connection is bound to.
func (p *Provider) FetchPrimaryAccount(ctx context.Context, token string) (*Account, error) {
	items, err := p.FetchAllPages(ctx, p.AccountsEndpoint(), token)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &UpstreamError{Body: "credential has no manageable accounts"}
	}
	var account Account
	if err := json.Unmarshal(items[0], &account); err != nil {
		return nil, &UpstreamError{Body: "malformed account item: " + err.Error()}
	}
	return &account, nil
}
