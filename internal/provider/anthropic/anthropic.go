// Package anthropic implements conversation summarization against the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"os"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/flemzord/convocore/internal/conversation"
)

// defaultModel is the model used when none is configured. Summaries are
// short, structured text, so the small model is the right default.
const defaultModel = "claude-3-5-haiku-latest"

// defaultMaxTokens bounds the summary length the API may produce.
const defaultMaxTokens = 1024

// summarySystem is the instruction block sent with every summarization
// request.
const summarySystem = "You condense conversation transcripts. Produce a concise summary " +
	"that preserves key facts, decisions, names, and open questions from the " +
	"transcript. Write plain prose with no preamble."

// Config holds the YAML-decoded configuration for the Anthropic summarizer.
type Config struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

// defaults fills in zero-value fields.
func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
}

// Summarizer condenses conversation history via the Anthropic Messages API.
type Summarizer struct {
	config Config
	client *sdkanthropic.Client
}

// Interface guard.
var _ conversation.AIProvider = (*Summarizer)(nil)

// New creates a Summarizer. The API key falls back to the ANTHROPIC_API_KEY
// environment variable when the config leaves it empty.
func New(cfg Config) *Summarizer {
	cfg.defaults()

	apiKey := cfg.APIKey
	if apiKey == "" {
		if envKey, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
			apiKey = envKey
		}
	}

	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	// Retries are the caller's decision; a failed summarization leaves the
	// channel due for the next trigger.
	opts = append(opts, option.WithMaxRetries(0))

	client := sdkanthropic.NewClient(opts...)
	return &Summarizer{config: cfg, client: &client}
}

// Validate reports configuration problems before first use.
func (s *Summarizer) Validate() error {
	if s.config.Model == "" {
		return errors.New("anthropic: model must not be empty")
	}
	return nil
}

// Summarize renders the messages as a transcript and asks the model for a
// condensed version. API failures are mapped onto the provider sentinels.
func (s *Summarizer) Summarize(ctx context.Context, messages []conversation.Message) (string, error) {
	msg, err := s.client.Messages.New(ctx, sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(s.config.Model),
		MaxTokens: int64(s.config.MaxTokens),
		System: []sdkanthropic.TextBlockParam{
			{Text: summarySystem},
		},
		Messages: []sdkanthropic.MessageParam{
			sdkanthropic.NewUserMessage(sdkanthropic.NewTextBlock(renderTranscript(messages))),
		},
	})
	if err != nil {
		return "", mapError(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
