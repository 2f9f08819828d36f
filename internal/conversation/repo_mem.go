package conversation

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// InMemoryRepository is a thread-safe, in-memory Repository implementation,
// suitable for tests and zero-config runs. State is lost on restart.
type InMemoryRepository struct {
	mu       sync.RWMutex
	channels map[string][]Message
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{channels: make(map[string][]Message)}
}

// Compile-time interface check.
var _ Repository = (*InMemoryRepository)(nil)

// InsertMessage appends a message to the channel's history.
func (r *InMemoryRepository) InsertMessage(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[msg.ChannelID] = append(r.channels[msg.ChannelID], cloneMessage(msg))
	return nil
}

// ListVisible returns visible messages for the channel and vendor in
// insertion (ascending CreatedAt) order.
func (r *InMemoryRepository) ListVisible(_ context.Context, channelID, vendor string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Message
	for _, m := range r.channels[channelID] {
		if m.Visibility != VisibilityVisible {
			continue
		}
		if vendor != "" && m.Vendor != vendor {
			continue
		}
		out = append(out, cloneMessage(m))
	}
	return out, nil
}

// ApplySummary marks the superseded messages and inserts the summary as one
// atomic unit (the repository mutex covers both).
func (r *InMemoryRepository) ApplySummary(_ context.Context, summary Message, superseded []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := r.channels[summary.ChannelID]
	for i := range msgs {
		if slices.Contains(superseded, msgs[i].ID) {
			msgs[i].Visibility = VisibilitySuperseded
		}
	}
	r.channels[summary.ChannelID] = append(msgs, cloneMessage(summary))
	return nil
}

// ClearChannel marks all of the channel's messages for the vendor cleared.
func (r *InMemoryRepository) ClearChannel(_ context.Context, channelID, vendor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := r.channels[channelID]
	for i := range msgs {
		if vendor != "" && msgs[i].Vendor != vendor {
			continue
		}
		msgs[i].Visibility = VisibilityCleared
	}
	return nil
}

func cloneMessage(m Message) Message {
	m.Images = slices.Clone(m.Images)
	return m
}
