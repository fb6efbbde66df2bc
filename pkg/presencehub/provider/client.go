package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// pageSize is the fixed page size requested from the resource API.
	pageSize = 100
	// maxRetries is how many times a single page fetch is retried before
	// the whole collection fetch fails.
	maxRetries = 3
	// minRetryAfter is the floor applied to Retry-After header values.
	minRetryAfter = time.Second
	// bodySnippetLen bounds how much of an error response body is kept for logs.
	bodySnippetLen = 256
)

type page struct {
	Items         []json.RawMessage `json:"items"`
	NextPageToken string            `json:"nextPageToken"`
}

// FetchAllPages pulls a full collection from a paginated endpoint. Pages are
// requested strictly sequentially because each page token comes from the
// previous response. Any page failure aborts the whole fetch: partial
// results are discarded so the caller never upserts a truncated collection.
//
// An empty items array on a page is valid; only a missing nextPageToken
// terminates pagination.
func (p *Provider) FetchAllPages(ctx context.Context, endpoint, token string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	pageToken := ""
	for {
		pg, err := p.fetchPage(ctx, endpoint, token, pageToken)
		if err != nil {
			return nil, err
		}
		items = append(items, pg.Items...)
		if pg.NextPageToken == "" {
			return items, nil
		}
		pageToken = pg.NextPageToken
	}
}

// fetchPage requests one page, retrying with backoff on 429 and transient
// upstream failures. 429 delays honor the Retry-After header (seconds,
// floored at one second); otherwise the delay doubles per attempt.
func (p *Provider) fetchPage(ctx context.Context, endpoint, token, pageToken string) (*page, error) {
	for attempt := 0; ; attempt++ {
		pg, err := p.doPageRequest(ctx, endpoint, token, pageToken)
		if err == nil {
			return pg, nil
		}
		if attempt >= maxRetries {
			return nil, err
		}
		if serr := sleepContext(ctx, retryDelay(err, attempt)); serr != nil {
			return nil, serr
		}
	}
}

func (p *Provider) doPageRequest(ctx context.Context, endpoint, token, pageToken string) (*page, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &UpstreamError{Body: fmt.Sprintf("bad endpoint %q: %v", endpoint, err)}
	}
	q := u.Query()
	q.Set("pageSize", strconv.Itoa(pageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &UpstreamError{Body: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Context cancellation is not an upstream fault and must not be retried.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UpstreamError{Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, &RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: snippet(body)}
	}

	var pg page
	if err := json.Unmarshal(body, &pg); err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: "malformed response: " + snippet(body)}
	}
	return &pg, nil
}

// parseRetryAfter interprets a Retry-After header as seconds; zero means the
// header was absent or unusable.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d < minRetryAfter {
		d = minRetryAfter
	}
	return d
}

// retryDelay picks the wait before the next attempt: a server-provided
// Retry-After wins, otherwise exponential backoff starting at one second.
func retryDelay(err error, attempt int) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	return time.Duration(1<<attempt) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(body []byte) string {
	if len(body) > bodySnippetLen {
		return string(body[:bodySnippetLen])
	}
	return string(body)
}
