package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func completionPayload(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message": map[string]any{
					"content": content,
				},
			},
		},
	}
}

func TestClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		if err := json.NewEncoder(w).Encode(completionPayload("lonely city street")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	content, err := client.Complete(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if content != "lonely city street" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestClientCompleteSendsOptionalHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("HTTP-Referer"); got != "https://example.test" {
			t.Fatalf("unexpected referer header %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "Demo" {
			t.Fatalf("unexpected title header %q", got)
		}
		_ = json.NewEncoder(w).Encode(completionPayload("ok"))
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:  "test",
		BaseURL: server.URL,
		Model:   "demo-model",
		Referer: "https://example.test",
		Title:   "Demo",
	})
	if _, err := client.Complete(context.Background(), "system", "user"); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(completionPayload("OK")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestClientCompleteDeltaContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "",
					"delta": map[string]any{
						"content": "moonlit city street",
					},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	content, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if content != "moonlit city street" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestClientCompleteLegacyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "stop",
					"text":          "shadowed alleyway",
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	content, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if content != "shadowed alleyway" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestClientCompleteEmptyContentHasSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(completionPayload("")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected complete to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(completionPayload("sunrise over water"))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	content, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if content != "sunrise over water" {
		t.Fatalf("unexpected content %q", content)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientBackoffDoublesUntilCap(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "upstream"})
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(2*time.Second, 16*time.Second),
		WithRetryMaxAttempts(4),
	)
	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected complete to fail after retries")
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), slept)
	}
	for i, d := range want {
		if slept[i] != d {
			t.Fatalf("sleep %d: expected %v, got %v", i, d, slept[i])
		}
	}
	if !strings.Contains(err.Error(), "failed after 4 attempts") {
		t.Fatalf("expected exhausted-retries error, got %v", err)
	}
}

func TestClientNoRetryOnPermanentStatus(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad request"})
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected complete to fail")
	}
	if calls != 1 {
		t.Fatalf("expected single call for permanent failure, got %d", calls)
	}
	if Retryable(err) {
		t.Fatalf("expected 400 error to be permanent, got retryable: %v", err)
	}
}

func TestRetryableClassifiesEscapedErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "down"})
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(2),
	)
	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected complete to fail")
	}
	if !Retryable(err) {
		t.Fatalf("expected exhausted 503 error to classify retryable: %v", err)
	}
	if Retryable(nil) {
		t.Fatal("expected nil to not be retryable")
	}
	if Retryable(context.Canceled) {
		t.Fatal("expected context cancel to not be retryable")
	}
}

func TestClientCompleteRequiresPrompts(t *testing.T) {
	client := NewClient(Config{APIKey: "test", Model: "demo"})
	if _, err := client.Complete(context.Background(), "", "user"); err == nil {
		t.Fatal("expected missing system prompt error")
	}
	if _, err := client.Complete(context.Background(), "system", ""); err == nil {
		t.Fatal("expected missing user prompt error")
	}
	keyless := NewClient(Config{Model: "demo"})
	if _, err := keyless.Complete(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected missing api key error")
	}
}
