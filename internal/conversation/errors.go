package conversation

import "errors"

// Sentinel errors for service operations.
var (
	// ErrInvalidMessage indicates a message with no channel, or neither
	// text content nor images.
	ErrInvalidMessage = errors.New("conversation: invalid message")

	// ErrInvalidMode indicates an unrecognised window mode.
	ErrInvalidMode = errors.New("conversation: invalid mode")

	// ErrNothingToSummarize indicates a summarization request against a
	// channel with no chat-eligible history.
	ErrNothingToSummarize = errors.New("conversation: nothing to summarize")
)
