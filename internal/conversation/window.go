package conversation

import (
	"slices"

	"github.com/flemzord/convocore/internal/token"
)

// Per-message overhead: role tokens plus formatting.
const messageOverheadTokens = 4

// BuildRequest bounds a context window.
type BuildRequest struct {
	Mode Mode

	// MaxMessages caps the number of messages. 0 means unbounded.
	MaxMessages int

	// MaxTokens caps the cumulative token estimate. 0 means unbounded.
	MaxTokens int

	// MaxImages caps the number of embedded images. Negative means
	// unbounded; 0 strips all image payloads.
	MaxImages int
}

// Window is a bounded, ordered view of channel history ready for provider
// consumption.
type Window struct {
	Messages []Message

	// Tokens is the estimated token cost of the window.
	Tokens int

	// Truncated reports whether any message was dropped, cut, or stripped
	// of images to fit the bounds.
	Truncated bool
}

// Builder assembles bounded context windows from visible history.
type Builder struct {
	estimator token.Estimator
}

// NewBuilder creates a Builder with the given estimator.
func NewBuilder(estimator token.Estimator) *Builder {
	return &Builder{estimator: estimator}
}

// Build bounds the given ascending-ordered history to the request's caps.
//
// The count cap keeps the newest MaxMessages. The token cap drops
// oldest-first, except the single most recent message is never dropped: if
// it alone exceeds the budget its text is truncated, never its images.
// Images are capped independently: payloads are stripped from the oldest
// image-bearing messages first, preserving their text; a message stripped
// to textually empty is dropped entirely.
func (b *Builder) Build(history []Message, req BuildRequest) Window {
	msgs := filterMode(history, req.Mode)
	truncated := false

	if req.MaxMessages > 0 && len(msgs) > req.MaxMessages {
		msgs = msgs[len(msgs)-req.MaxMessages:]
		truncated = true
	}

	// Entries may be modified below (text truncation, image stripping);
	// never mutate the caller's history.
	msgs = slices.Clone(msgs)

	if req.MaxTokens > 0 {
		total := b.estimateAll(msgs)
		for total > req.MaxTokens && len(msgs) > 1 {
			msgs = msgs[1:]
			truncated = true
			total = b.estimateAll(msgs)
		}
		if len(msgs) == 1 && total > req.MaxTokens {
			budget := req.MaxTokens - messageOverheadTokens - b.estimateImages(msgs[0])
			msgs[0].Content = b.truncateText(msgs[0].Content, budget)
			truncated = true
		}
	}

	if req.MaxImages >= 0 {
		var stripped bool
		msgs, stripped = b.capImages(msgs, req.MaxImages)
		truncated = truncated || stripped
	}

	return Window{
		Messages:  msgs,
		Tokens:    b.estimateAll(msgs),
		Truncated: truncated,
	}
}

// EstimateMessage returns the estimated token cost of a single message,
// including its per-message overhead and image payloads.
func (b *Builder) EstimateMessage(m Message) int {
	return messageOverheadTokens + b.estimator.Estimate(m.Content) + b.estimateImages(m)
}

// EstimateChat returns the running token estimate over all chat-eligible
// messages, the figure the summarization monitor tracks.
func (b *Builder) EstimateChat(history []Message) int {
	total := 0
	for _, m := range history {
		if m.chatEligible() {
			total += b.EstimateMessage(m)
		}
	}
	return total
}

func (b *Builder) estimateAll(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += b.EstimateMessage(m)
	}
	return total
}

func (b *Builder) estimateImages(m Message) int {
	total := 0
	for _, img := range m.Images {
		total += b.estimator.EstimateImage(len(img.Data))
	}
	return total
}

// truncateText returns the longest prefix of text (on rune boundaries) whose
// estimate fits the budget. Relies on estimator monotonicity for the binary
// search.
func (b *Builder) truncateText(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if b.estimator.Estimate(text) <= budget {
		return text
	}

	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if b.estimator.Estimate(string(runes[:mid])) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}

// capImages strips image payloads from the oldest image-bearing messages
// until at most maxImages remain, preserving text. Whole messages survive
// unless stripping leaves them textually empty.
func (b *Builder) capImages(msgs []Message, maxImages int) ([]Message, bool) {
	total := 0
	for _, m := range msgs {
		total += len(m.Images)
	}
	if total <= maxImages {
		return msgs, false
	}

	excess := total - maxImages
	result := msgs[:0]
	for _, m := range msgs {
		if excess > 0 && len(m.Images) > 0 {
			drop := min(len(m.Images), excess)
			m.Images = slices.Clone(m.Images[drop:])
			if len(m.Images) == 0 {
				m.Images = nil
			}
			excess -= drop
			if m.Images == nil && m.Content == "" {
				continue
			}
		}
		result = append(result, m)
	}
	return result, true
}

// filterMode selects the message classes the mode admits.
func filterMode(history []Message, mode Mode) []Message {
	if mode == ModeAll {
		return history
	}
	var out []Message
	for _, m := range history {
		switch mode {
		case ModeChat:
			if m.chatEligible() {
				out = append(out, m)
			}
		case ModeImageSource:
			if m.HasImages() && !m.ImagePrompt {
				out = append(out, m)
			}
		}
	}
	return out
}
