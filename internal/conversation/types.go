// Package conversation implements the conversational core: per-channel
// history, bounded context windows, and automatic summarization.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the sender of a message.
type Role string

// Role constants for conversation messages.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Visibility is the lifecycle status of a stored message. It is the only
// mutable aspect of a message.
type Visibility string

// Visibility constants.
const (
	// VisibilityVisible marks a message as part of the active context.
	VisibilityVisible Visibility = "visible"

	// VisibilitySuperseded marks a message absorbed into a summary.
	VisibilitySuperseded Visibility = "superseded"

	// VisibilityCleared marks a message removed by a history clear.
	VisibilityCleared Visibility = "cleared"
)

// ImageRef is a bounded reference to an image attached to a message.
type ImageRef struct {
	// URL is where the image can be accessed.
	URL string `json:"url"`

	// Data is optional base64-encoded inline image data.
	Data string `json:"data,omitempty"`
}

// Message is one entry in a channel's history.
type Message struct {
	ID        uuid.UUID  `json:"id"`
	ChannelID string     `json:"channel_id"`
	Vendor    string     `json:"vendor"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Images    []ImageRef `json:"images,omitempty"`

	// ImagePrompt marks a prompt used to request image generation.
	ImagePrompt bool `json:"image_prompt,omitempty"`

	// ImageContext marks an image-only context entry that chat prompts
	// must not include.
	ImageContext bool `json:"image_context,omitempty"`

	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HasImages reports whether the message carries image payloads.
func (m Message) HasImages() bool {
	return len(m.Images) > 0
}

// chatEligible reports whether the message belongs in a chat context:
// neither an image-generation prompt nor an image-only context entry.
func (m Message) chatEligible() bool {
	return !m.ImagePrompt && !m.ImageContext
}

// Mode selects which message classes a context window includes.
type Mode string

// Window construction modes.
const (
	// ModeChat excludes image-only-context and image-prompt entries.
	ModeChat Mode = "chat"

	// ModeImageSource includes only image-bearing, non-prompt entries.
	ModeImageSource Mode = "image_source"

	// ModeAll includes every visible message.
	ModeAll Mode = "all"
)

// Valid reports whether m is a recognised mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeChat, ModeImageSource, ModeAll:
		return true
	}
	return false
}

// EventType classifies service events.
type EventType string

// Event types emitted by the service.
const (
	EventAppended   EventType = "appended"
	EventSummarized EventType = "summarized"
	EventCleared    EventType = "cleared"
)

// Event describes a channel state change for observers (metrics, live
// front-end updates).
type Event struct {
	Type      EventType `json:"type"`
	ChannelID string    `json:"channel_id"`
	At        time.Time `json:"at"`
}

// EventSink receives service events. Publish must not block.
type EventSink interface {
	Publish(Event)
}
