package scryfall

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	return NewClient(
		WithBaseURL(serverURL),
		WithRateLimit(0),
		WithBackoff(time.Millisecond),
	)
}

func TestNewClient(t *testing.T) {
	client := NewClient()

	if client == nil {
		t.Fatal("NewClient() returned nil")
	}

	if client.httpClient == nil {
		t.Error("httpClient is nil")
	}

	if client.rateLimiter == nil {
		t.Error("rateLimiter is nil")
	}

	if client.userAgent == "" {
		t.Error("userAgent is empty")
	}

	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, DefaultBaseURL)
	}
}

func TestNewClient_Options(t *testing.T) {
	client := NewClient(WithBaseURL("http://example.test/"), WithUserAgent("test-agent/2.0"))

	if client.baseURL != "http://example.test" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", client.baseURL)
	}
	if client.userAgent != "test-agent/2.0" {
		t.Errorf("userAgent = %q", client.userAgent)
	}
}

func TestClient_RateLimiting(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"test","name":"Test Card"}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(50*time.Millisecond))
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.GetCard(ctx, "test"); err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
	}
	elapsed := time.Since(start)

	if got := atomic.LoadInt32(&requestCount); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}

	// The first request is immediate, the next two wait one interval each.
	if elapsed < 90*time.Millisecond {
		t.Errorf("Requests completed too quickly (%v), rate limiting may not be working", elapsed)
	}
}

func TestClient_GetCard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cards/abc-123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc-123","name":"Opt","set":"xln","collector_number":"65"}`))
	}))
	defer server.Close()

	card, err := newTestClient(server.URL).GetCard(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("GetCard() error = %v", err)
	}
	if card.Name != "Opt" || card.SetCode != "xln" || card.CollectorNumber != "65" {
		t.Errorf("unexpected card: %+v", card)
	}
	if !strings.Contains(string(card.Raw), `"collector_number":"65"`) {
		t.Errorf("Raw = %s", card.Raw)
	}
}

func TestClient_GetCardBySetNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cards/xln/65" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"abc-123","name":"Opt","set":"xln","collector_number":"65"}`))
	}))
	defer server.Close()

	card, err := newTestClient(server.URL).GetCardBySetNumber(context.Background(), "XLN", "65")
	if err != nil {
		t.Fatalf("GetCardBySetNumber() error = %v", err)
	}
	if card.ID != "abc-123" {
		t.Errorf("ID = %q, want abc-123", card.ID)
	}
}

func TestClient_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"object":"error","code":"not_found","status":404,"details":"No card found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetCard(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
}

func TestClient_RetryOn429(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"ok","name":"Opt"}`))
	}))
	defer server.Close()

	card, err := newTestClient(server.URL).GetCard(context.Background(), "ok")
	if err != nil {
		t.Fatalf("GetCard() error = %v", err)
	}
	if card.ID != "ok" {
		t.Errorf("ID = %q, want ok", card.ID)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClient_MaxRetriesExceeded(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetCard(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error after retries")
	}
	if got := atomic.LoadInt32(&attempts); got != maxRetries+1 {
		t.Errorf("attempts = %d, want %d", got, maxRetries+1)
	}
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","code":"bad_request","status":400,"details":"Invalid identifiers"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetCard(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("Status = %d", apiErr.Status)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestClient(server.URL).GetCard(ctx, "x"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "with details",
			err:  &APIError{Status: 400, Details: "bad input"},
			want: "Scryfall API error (HTTP 400): bad input",
		},
		{
			name: "code only",
			err:  &APIError{Status: 500, Code: "internal"},
			want: "Scryfall API error (HTTP 500): internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
