package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anishmolla/creator-support-army-bot/llm"
)

func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"":                                      "https://api.openai.com/v1/chat/completions",
		"https://api.x.ai/v1/chat/completions":  "https://api.x.ai/v1/chat/completions",
		"https://api.x.ai/v1/chat/completions/": "https://api.x.ai/v1/chat/completions",
		"https://api.x.ai/v1":                   "https://api.x.ai/v1/chat/completions",
		" https://proxy.local ":                 "https://proxy.local/v1/chat/completions",
	}
	for in, want := range cases {
		if got := NormalizeEndpoint(in); got != want {
			t.Fatalf("NormalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChatSendsRequestAndParsesReply(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k-123" {
			t.Errorf("Authorization = %q, want Bearer k-123", got)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"fair enough"}}],"usage":{"prompt_tokens":10,"completion_tokens":3,"total_tokens":13}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "k-123", time.Second)
	res, err := c.Chat(context.Background(), llm.Request{
		Model:       "grok-beta",
		Messages:    []llm.Message{llm.System("judge"), llm.User("deal")},
		MaxTokens:   120,
		Temperature: llm.Float(0.7),
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Text != "fair enough" {
		t.Fatalf("Chat().Text = %q, want %q", res.Text, "fair enough")
	}
	if res.Usage.TotalTokens != 13 {
		t.Fatalf("Usage.TotalTokens = %d, want 13", res.Usage.TotalTokens)
	}
	if gotBody["model"] != "grok-beta" {
		t.Fatalf("model = %v, want grok-beta", gotBody["model"])
	}
	if gotBody["max_tokens"] != float64(120) {
		t.Fatalf("max_tokens = %v, want 120", gotBody["max_tokens"])
	}
	if _, ok := gotBody["response_format"]; ok {
		t.Fatalf("response_format present without ForceJSON")
	}
}

func TestChatRetriesWithoutResponseFormat(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		raw, _ := io.ReadAll(r.Body)
		if n == 1 {
			if !strings.Contains(string(raw), "response_format") {
				t.Errorf("first call missing response_format")
			}
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"response_format is not supported"}}`)
			return
		}
		if strings.Contains(string(raw), "response_format") {
			t.Errorf("retry still sent response_format")
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{}"}}]}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL, "", time.Second).Chat(context.Background(), llm.Request{Model: "m", ForceJSON: true})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Text != "{}" || calls.Load() != 2 {
		t.Fatalf("Chat() = %q after %d calls, want {} after 2", res.Text, calls.Load())
	}
}

func TestChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "x", time.Second).Chat(context.Background(), llm.Request{Model: "m"})
	if err == nil || !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("Chat() error = %v, want http 401 bad key", err)
	}
}

func TestChatNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer srv.Close()

	_, err := New(srv.URL, "x", time.Second).Chat(context.Background(), llm.Request{Model: "m"})
	if err == nil || !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("Chat() error = %v, want http 502 upstream down", err)
	}
}
