// Package token provides token cost estimation for text and image payloads.
package token

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator estimates the token cost of message payloads.
// Implementations never fail: when exact tokenization is unavailable they
// degrade to a heuristic that over-counts rather than under-counts.
type Estimator interface {
	// Estimate returns the estimated token count for the given text.
	Estimate(text string) int

	// EstimateImage returns the token cost charged for an inline image of
	// the given encoded size in bytes. Deliberately conservative.
	EstimateImage(sizeBytes int) int
}

// Image cost tiers. Under-counting risks exceeding real provider limits,
// so both tiers over-estimate.
const (
	baseImageTokens  = 765
	largeImageTokens = 1600
	largeImageBytes  = 1 << 20
)

var (
	codecOnce   sync.Once
	codecShared tokenizer.Codec
)

// sharedCodec returns the process-wide cl100k_base codec, or nil when the
// encoding tables could not be built.
func sharedCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		if c, err := tokenizer.Get(tokenizer.Cl100kBase); err == nil {
			codecShared = c
		}
	})
	return codecShared
}

// TiktokenEstimator counts tokens with the cl100k_base BPE encoding, a close
// approximation for the Claude model family. Encoding failures fall back to
// a characters-per-token heuristic.
type TiktokenEstimator struct {
	codec    tokenizer.Codec
	fallback *CharEstimator
}

// NewEstimator returns the default estimator: tiktoken cl100k_base with a
// chars-per-token fallback. Construction never fails; without a usable codec
// the estimator runs on the heuristic alone.
func NewEstimator() *TiktokenEstimator {
	return &TiktokenEstimator{
		codec:    sharedCodec(),
		fallback: NewCharEstimator(0),
	}
}

// Estimate returns the estimated token count for the given text.
func (e *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	if e.codec != nil {
		if _, toks, err := e.codec.Encode(text); err == nil {
			return len(toks)
		}
	}
	return e.fallback.Estimate(text)
}

// EstimateImage returns the image token tier for the given payload size.
func (e *TiktokenEstimator) EstimateImage(sizeBytes int) int {
	return imageTier(sizeBytes)
}

// CharEstimator estimates tokens using a simple characters-per-token ratio.
// A ratio of ~4 works well for English text.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0.
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for the given text.
// Always rounds up to avoid underestimation.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text))/e.CharsPerToken) + 1
}

// EstimateImage returns the image token tier for the given payload size.
func (e *CharEstimator) EstimateImage(sizeBytes int) int {
	return imageTier(sizeBytes)
}

func imageTier(sizeBytes int) int {
	if sizeBytes > largeImageBytes {
		return largeImageTokens
	}
	return baseImageTokens
}

// Interface guards.
var (
	_ Estimator = (*TiktokenEstimator)(nil)
	_ Estimator = (*CharEstimator)(nil)
)
