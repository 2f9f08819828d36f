package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flemzord/convocore/internal/conversation"
	"github.com/flemzord/convocore/internal/provider"
)

func newTestSummarizer(baseURL string) *Summarizer {
	return New(Config{APIKey: "test-key", BaseURL: baseURL})
}

func TestSummarize_Success(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_123",
			"type": "message",
			"role": "assistant",
			"content": [{"type": "text", "text": "  A short recap.  "}],
			"model": "claude-3-5-haiku-latest",
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 20, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	s := newTestSummarizer(srv.URL)
	summary, err := s.Summarize(context.Background(), []conversation.Message{
		{Role: conversation.RoleUser, Content: "Hello"},
		{Role: conversation.RoleAssistant, Content: "Hi there"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "A short recap." {
		t.Errorf("summary = %q, want trimmed text", summary)
	}

	// The request carried the transcript as a single user message.
	var req struct {
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
		System []struct {
			Text string `json:"text"`
		} `json:"system"`
	}
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("request messages = %+v, want one user message", req.Messages)
	}
	if !strings.Contains(string(req.Messages[0].Content), "Hi there") {
		t.Error("transcript missing from request body")
	}
	if len(req.System) != 1 {
		t.Errorf("got %d system blocks, want 1", len(req.System))
	}
}

func TestSummarize_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{
			"rate limit", http.StatusTooManyRequests,
			`{"type":"error","error":{"type":"rate_limit_error","message":"rate limited"}}`,
			provider.ErrRateLimited,
		},
		{
			"overloaded", 529,
			`{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`,
			provider.ErrOverloaded,
		},
		{
			"service unavailable", http.StatusServiceUnavailable,
			`{"type":"error","error":{"type":"api_error","message":"unavailable"}}`,
			provider.ErrOverloaded,
		},
		{
			"auth", http.StatusUnauthorized,
			`{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`,
			provider.ErrAuth,
		},
		{
			"bad request", http.StatusBadRequest,
			`{"type":"error","error":{"type":"invalid_request_error","message":"bad input"}}`,
			provider.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s := newTestSummarizer(srv.URL)
			_, err := s.Summarize(context.Background(), []conversation.Message{
				{Role: conversation.RoleUser, Content: "Hello"},
			})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSummarize_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestSummarizer(srv.URL)
	_, err := s.Summarize(ctx, []conversation.Message{
		{Role: conversation.RoleUser, Content: "Hello"},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.defaults()
	if cfg.Model != defaultModel {
		t.Errorf("Model = %q, want %q", cfg.Model, defaultModel)
	}
	if cfg.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", cfg.MaxTokens, defaultMaxTokens)
	}

	pinned := Config{Model: "claude-sonnet-4-5", MaxTokens: 2048}
	pinned.defaults()
	if pinned.Model != "claude-sonnet-4-5" || pinned.MaxTokens != 2048 {
		t.Error("defaults overwrote configured values")
	}
}

func TestRenderTranscript(t *testing.T) {
	msgs := []conversation.Message{
		{Role: conversation.RoleSystem, Content: "[Conversation Summary]\nearlier recap"},
		{Role: conversation.RoleUser, Content: "look at this", Images: []conversation.ImageRef{{URL: "https://img.test/a"}}},
		{Role: conversation.RoleAssistant, Content: "nice photo"},
	}

	got := renderTranscript(msgs)
	for _, want := range []string{
		"system: [Conversation Summary]\nearlier recap",
		"user: look at this",
		"[1 image(s) attached]",
		"assistant: nice photo",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("transcript missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "img.test") {
		t.Error("transcript embeds image payloads, want a note only")
	}
}
