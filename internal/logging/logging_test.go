package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactorPatterns(t *testing.T) {
	t.Parallel()

	r := NewRedactor()

	tests := []struct {
		name  string
		input string
		leak  string
	}{
		{"anthropic key", "auth failed for sk-ant-REDACTED", "sk-ant-"},
		{"openai-style key", "using sk-abcdefghijklmnopqrstuv", "sk-abcdef"},
		{"github token", "push with ghp_abcdefghijklmnopqrstuv", "ghp_"},
		{"bearer header", "got Bearer abcdefghijklmnop123456", "abcdefghijklmnop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := r.Redact(tt.input)
			if strings.Contains(got, tt.leak) {
				t.Errorf("Redact(%q) = %q, secret leaked", tt.input, got)
			}
			if !strings.Contains(got, RedactPlaceholder) {
				t.Errorf("Redact(%q) = %q, placeholder missing", tt.input, got)
			}
		})
	}

	if got := r.Redact("nothing secret here"); got != "nothing secret here" {
		t.Errorf("clean string modified: %q", got)
	}
}

func TestRedactorLiterals(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	r.AddSecret("hunter2")
	r.AddSecret("") // ignored

	if got := r.Redact("the token is hunter2, keep it safe"); strings.Contains(got, "hunter2") {
		t.Errorf("literal secret leaked: %q", got)
	}
}

func TestRedactingHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	redactor := NewRedactor()
	redactor.AddSecret("supersecret")
	logger := NewLogger(&buf, slog.LevelInfo, redactor)

	logger.Info("request failed with token supersecret",
		"token", "supersecret",
		"error", errors.New("denied for supersecret"),
	)
	logger.With("api_key", "supersecret").Warn("grouped attr")

	out := buf.String()
	if strings.Contains(out, "supersecret") {
		t.Fatalf("secret leaked into log output:\n%s", out)
	}
	if !strings.Contains(out, RedactPlaceholder) {
		t.Errorf("placeholder missing from output:\n%s", out)
	}
}

func TestRedactingHandlerRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn, NewRedactor())

	logger.Debug("too quiet")
	logger.Info("still too quiet")
	if buf.Len() != 0 {
		t.Errorf("below-level records were written: %s", buf.String())
	}

	logger.Warn("loud enough")
	if buf.Len() == 0 {
		t.Error("warn record was dropped")
	}
}
