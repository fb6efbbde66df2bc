package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func itemsPage(n int, next string) page {
	pg := page{NextPageToken: next}
	for i := 0; i < n; i++ {
		pg.Items = append(pg.Items, json.RawMessage(fmt.Sprintf(`{"name":"item-%d"}`, i)))
	}
	return pg
}

func TestFetchAllPagesPaginates(t *testing.T) {
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if got := r.URL.Query().Get("pageSize"); got != "100" {
			t.Errorf("Expected pageSize=100, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Expected bearer token header, got %q", got)
		}

		var pg page
		switch r.URL.Query().Get("pageToken") {
		case "":
			pg = itemsPage(100, "page2")
		case "page2":
			pg = itemsPage(100, "page3")
		case "page3":
			pg = itemsPage(37, "")
		default:
			t.Errorf("Unexpected pageToken %q", r.URL.Query().Get("pageToken"))
		}
		json.NewEncoder(w).Encode(pg)
	}))
	defer ts.Close()

	p := New(nil, Config{APIBaseURL: ts.URL})

	items, err := p.FetchAllPages(context.Background(), ts.URL+"/accounts/1/locations", "tok")
	if err != nil {
		t.Fatalf("FetchAllPages failed: %v", err)
	}
	if len(items) != 237 {
		t.Errorf("Expected 237 items, got %d", len(items))
	}
	if requests != 3 {
		t.Errorf("Expected 3 requests, got %d", requests)
	}
}

func TestFetchAllPagesEmptyCollection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(page{})
	}))
	defer ts.Close()

	p := New(nil, Config{APIBaseURL: ts.URL})

	items, err := p.FetchAllPages(context.Background(), ts.URL+"/accounts/1/locations", "tok")
	if err != nil {
		t.Fatalf("FetchAllPages failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items, got %d", len(items))
	}
}

func TestFetchAllPagesRetriesRateLimit(t *testing.T) {
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(itemsPage(5, ""))
	}))
	defer ts.Close()

	p := New(nil, Config{APIBaseURL: ts.URL})

	start := time.Now()
	items, err := p.FetchAllPages(context.Background(), ts.URL+"/accounts/1/reviews", "tok")
	if err != nil {
		t.Fatalf("FetchAllPages failed: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("Expected 5 items, got %d", len(items))
	}
	if requests != 2 {
		t.Errorf("Expected 2 requests, got %d", requests)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("Expected to honor Retry-After of 1s, waited only %s", elapsed)
	}
}

func TestFetchAllPagesRateLimitExhausted(t *testing.T) {
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	p := New(nil, Config{APIBaseURL: ts.URL})

	_, err := p.FetchAllPages(context.Background(), ts.URL+"/accounts/1/reviews", "tok")
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("Expected RateLimitedError, got %v", err)
	}
	// Initial attempt plus maxRetries.
	if requests != 4 {
		t.Errorf("Expected 4 requests, got %d", requests)
	}
}

func TestFetchAllPagesContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	p := New(nil, Config{APIBaseURL: ts.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.FetchAllPages(ctx, ts.URL+"/accounts/1/reviews", "tok")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context deadline error, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Cancellation should interrupt the retry sleep")
	}
}

func TestFetchAllPagesMalformedBody(t *testing.T) {
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests <= 1 {
			w.Write([]byte("not json"))
			return
		}
		json.NewEncoder(w).Encode(itemsPage(1, ""))
	}))
	defer ts.Close()

	p := New(nil, Config{APIBaseURL: ts.URL})

	// Malformed responses are treated as transient upstream failures and
	// retried.
	items, err := p.FetchAllPages(context.Background(), ts.URL+"/accounts/1/posts", "tok")
	if err != nil {
		t.Fatalf("FetchAllPages failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(items))
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"2", 2 * time.Second},
		{"0", time.Second},
		{"-1", 0},
		{"soon", 0},
	}
	for _, tc := range cases {
		if got := parseRetryAfter(tc.header); got != tc.want {
			t.Errorf("parseRetryAfter(%q) = %s, want %s", tc.header, got, tc.want)
		}
	}
}

func TestFetchPrimaryAccount(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		pg := page{Items: []json.RawMessage{
			json.RawMessage(`{"name":"accounts/1","accountName":"Acme Plumbing"}`),
			json.RawMessage(`{"name":"accounts/2","accountName":"Acme Roofing"}`),
		}}
		json.NewEncoder(w).Encode(pg)
	}))
	defer ts.Close()

	p := New(nil, Config{APIBaseURL: ts.URL})

	account, err := p.FetchPrimaryAccount(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FetchPrimaryAccount failed: %v", err)
	}
	if account.Name != "accounts/1" || account.AccountName != "Acme Plumbing" {
		t.Errorf("Unexpected account %+v", account)
	}
}

func TestFetchPrimaryAccountNoAccounts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(page{})
	}))
	defer ts.Close()

	p := New(nil, Config{APIBaseURL: ts.URL})

	_, err := p.FetchPrimaryAccount(context.Background(), "tok")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
}
