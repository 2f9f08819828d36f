// Package logging provides the process logger: slog with a redacting
// handler so configured secrets and recognisable API keys never reach the
// log output.
package logging

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// Redactor replaces secret values in strings with a redaction placeholder.
// It matches both known API key formats and literal values registered at
// runtime. All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with patterns for common API
// key formats.
func NewRedactor() *Redactor {
	return &Redactor{patterns: defaultPatterns()}
}

// AddSecret registers a literal secret value to be redacted on sight.
// Empty strings are ignored.
func (r *Redactor) AddSecret(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact replaces all known secret patterns and literal values in s with
// RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	return s
}

// defaultPatterns covers the key formats this service is likely to handle.
func defaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Anthropic: sk-ant-... (at least 20 chars after prefix)
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
		// OpenAI-style: sk-...
		regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
		// GitHub tokens
		regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
		// Bearer headers quoted into error strings
		regexp.MustCompile(`Bearer [a-zA-Z0-9\-._~+/]{16,}`),
	}
}
