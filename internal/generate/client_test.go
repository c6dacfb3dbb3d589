package generate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGeminiClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "key" {
			t.Errorf("expected api key header, got %q", r.Header.Get("x-goog-api-key"))
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "draft it" {
			t.Errorf("unexpected request %+v", req)
		}
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"**Purpose**\n"},{"text":"Fix it."}]}}]}`)
	}))
	defer srv.Close()

	c := NewGeminiClient("key", "gemini-2.5-flash", time.Second)
	c.baseURL = srv.URL
	got, err := c.Generate(context.Background(), "draft it")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "**Purpose**\nFix it." {
		t.Errorf("expected joined parts, got %q", got)
	}
	if c.Model() != "gemini-2.5-flash" {
		t.Errorf("unexpected model %q", c.Model())
	}
}

func TestGeminiClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
		contains  string
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, true, "429"},
		{"server error", http.StatusBadGateway, `oops`, true, "502"},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"API key not valid"}}`, false, "API key not valid"},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, false, "SAFETY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewGeminiClient("key", "m", time.Second)
			c.baseURL = srv.URL
			_, err := c.Generate(context.Background(), "p")
			if err == nil {
				t.Fatal("expected error")
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("retryable: expected %v, got %v (%v)", tt.retryable, IsRetryable(err), err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("expected %q in %q", tt.contains, err.Error())
			}
		})
	}
}

func TestClaudeClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" || r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "claude-test" || req.Messages[0].Content != "draft it" {
			t.Errorf("unexpected request %+v", req)
		}
		io.WriteString(w, `{"content":[{"type":"text","text":"**Scope**"},{"type":"tool_use"},{"type":"text","text":"\nAll plants."}]}`)
	}))
	defer srv.Close()

	c := NewClaudeClient("key", "claude-test", time.Second)
	c.url = srv.URL
	got, err := c.Generate(context.Background(), "draft it")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "**Scope**\nAll plants." {
		t.Errorf("unexpected text %q", got)
	}
}

func TestClaudeClient_RetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClaudeClient("key", "m", time.Second)
	c.url = srv.URL
	if _, err := c.Generate(context.Background(), "p"); !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}
