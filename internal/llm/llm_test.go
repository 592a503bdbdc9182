package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/config"
)

func TestNewSelectsProvider(t *testing.T) {
	openai, err := New(config.LLMConfig{Provider: "openai", APIKey: "k"})
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := openai.(*OpenAIClient); !ok {
		t.Fatalf("openai client = %T", openai)
	}

	gemini, err := New(config.LLMConfig{Provider: "gemini", APIKey: "k"})
	if err != nil {
		t.Fatalf("gemini: %v", err)
	}
	if _, ok := gemini.(*GeminiClient); !ok {
		t.Fatalf("gemini client = %T", gemini)
	}

	if _, err := New(config.LLMConfig{Provider: "llama", APIKey: "k"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if len(payload.Messages) != 1 || payload.Messages[0].Content != "hello" {
			t.Errorf("messages = %#v", payload.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "[]"}},
			},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("client setup failed: %v", err)
	}
	got, err := client.Complete(t.Context(), "hello")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if got != "[]" {
		t.Fatalf("completion = %q", got)
	}
}

func TestOpenAIClientSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("client setup failed: %v", err)
	}
	if _, err := client.Complete(t.Context(), "hello"); err == nil {
		t.Fatal("expected error")
	}
}

func TestGeminiClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.5-flash:generateContent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{
					"parts": []map[string]string{{"text": "part one "}, {"text": "part two"}},
				}},
			},
		})
	}))
	defer server.Close()

	client, err := NewGeminiClient(GeminiConfig{BaseURL: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("client setup failed: %v", err)
	}
	got, err := client.Complete(t.Context(), "hello")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if got != "part one part two" {
		t.Fatalf("completion = %q", got)
	}
}
