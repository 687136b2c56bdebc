package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenRouterClientParsesArrayContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model":"openai/gpt-4.1-mini",
			"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"line 1"},{"type":"text","text":"line 2"}]}}],
			"usage":{"prompt_tokens":5,"completion_tokens":5,"total_tokens":10}
		}`))
	}))
	defer server.Close()

	client := NewOpenRouterClient(OpenRouterClientConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	})
	result, err := client.Complete(context.Background(), ChatRequest{
		Model:    "openai/gpt-4.1-mini",
		Messages: []ChatMessage{{Role: "user", Content: "test"}},
	})
	if err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if got := result.Content; got != "line 1\nline 2" {
		t.Fatalf("unexpected parsed text: %q", got)
	}
}

func TestOpenRouterClientUnavailableWithoutKey(t *testing.T) {
	client := NewOpenRouterClient(OpenRouterClientConfig{})
	_, err := client.Complete(context.Background(), ChatRequest{
		Model:    "openai/gpt-4.1-mini",
		Messages: []ChatMessage{{Role: "user", Content: "test"}},
	})
	if err != ErrClientUnavailable {
		t.Fatalf("expected ErrClientUnavailable, got %v", err)
	}
}

func TestOpenRouterClientSendsAttributionHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("HTTP-Referer"); got != "https://example.com" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(fmt.Sprintf(`{"error":"unexpected referer %q"}`, got)))
			return
		}
		if got := r.Header.Get("X-Title"); got != "Feed Agent" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(fmt.Sprintf(`{"error":"unexpected title %q"}`, got)))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model":"openai/gpt-4.1-mini",
			"choices":[{"message":{"role":"assistant","content":"FINAL ANSWER: ok"}}]
		}`))
	}))
	defer server.Close()

	client := NewOpenRouterClient(OpenRouterClientConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		SiteURL: "https://example.com",
	})
	_, err := client.Complete(context.Background(), ChatRequest{
		Model:    "openai/gpt-4.1-mini",
		Messages: []ChatMessage{{Role: "user", Content: "test"}},
	})
	if err != nil {
		t.Fatalf("expected success with attribution headers, got err=%v", err)
	}
	if !IsOpenRouterURL("https://openrouter.ai/api/v1") || IsOpenRouterURL("https://api.openai.com/v1") {
		t.Fatalf("unexpected openrouter url detection")
	}
}
