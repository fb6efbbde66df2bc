package provider

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuthExpired means the stored refresh token was rejected by the provider
// (revoked or expired grant). The user must reconnect the account; the
// operation is never retried automatically.
var ErrAuthExpired = errors.New("authorization expired, account must be reconnected")

// RateLimitedError is returned when the upstream API kept answering 429
// after all retries for a page were exhausted.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("upstream rate limited, retry after %s", e.RetryAfter)
}

// UpstreamError is a non-429 failure from the external API after retries
// were exhausted. Body holds a snippet of the response for server logs; it
// is never shown to end users.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream request failed: %s", e.Body)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}
