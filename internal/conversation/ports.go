package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists channel history. The persistence layer owns messages;
// the core only holds transient views during one operation.
//
// Implementations must return messages in ascending CreatedAt order and must
// apply ApplySummary as one atomic unit: either the visibility flips and the
// summary insert all land, or none do.
type Repository interface {
	// InsertMessage appends a message to a channel's history. The channel
	// record is created lazily on first insert.
	InsertMessage(ctx context.Context, msg Message) error

	// ListVisible returns the channel's visible messages for a vendor in
	// ascending CreatedAt order.
	ListVisible(ctx context.Context, channelID, vendor string) ([]Message, error)

	// ApplySummary marks the superseded messages invisible and inserts the
	// summary message in a single atomic unit.
	ApplySummary(ctx context.Context, summary Message, superseded []uuid.UUID) error

	// ClearChannel marks all of the channel's messages for the vendor as
	// cleared.
	ClearChannel(ctx context.Context, channelID, vendor string) error
}

// AIProvider condenses a conversation segment into a summary. Failures are
// classified with the sentinel errors in internal/provider.
type AIProvider interface {
	Summarize(ctx context.Context, messages []Message) (string, error)
}

// Clock supplies the current time; injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }
