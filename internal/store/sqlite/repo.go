package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/convocore/internal/conversation"
)

// timeLayout stores UTC timestamps at fixed-width nanosecond precision so
// that lexical order matches chronological order. RFC3339Nano would not do:
// it trims trailing fractional zeros, and a whole-second timestamp then
// sorts after fractional ones in the same second ('Z' > '.').
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository implements conversation.Repository backed by SQLite.
type Repository struct {
	db *sql.DB
}

// Compile-time interface guard.
var _ conversation.Repository = (*Repository)(nil)

// InsertMessage appends a message to a channel's history.
func (r *Repository) InsertMessage(ctx context.Context, msg conversation.Message) error {
	images, err := marshalImages(msg.Images)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel_id, vendor, role, content, images,
		                      image_prompt, image_context, visibility, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID.String(), msg.ChannelID, msg.Vendor, string(msg.Role), msg.Content, images,
		boolInt(msg.ImagePrompt), boolInt(msg.ImageContext),
		string(msg.Visibility), msg.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert message: %w", err)
	}
	return nil
}

// ListVisible returns the channel's visible messages for a vendor in
// ascending insertion order.
func (r *Repository) ListVisible(ctx context.Context, channelID, vendor string) ([]conversation.Message, error) {
	query := `
		SELECT id, channel_id, vendor, role, content, images,
		       image_prompt, image_context, visibility, created_at
		FROM messages
		WHERE channel_id = ? AND visibility = ?`
	args := []any{channelID, string(conversation.VisibilityVisible)}
	if vendor != "" {
		query += " AND vendor = ?"
		args = append(args, vendor)
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list visible: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []conversation.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list visible rows: %w", err)
	}
	return msgs, nil
}

// ApplySummary marks the superseded messages and inserts the summary as one
// transaction.
func (r *Repository) ApplySummary(ctx context.Context, summary conversation.Message, superseded []uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin summary tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(superseded) > 0 {
		placeholders := strings.Repeat("?,", len(superseded))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, 0, len(superseded)+1)
		args = append(args, string(conversation.VisibilitySuperseded))
		for _, id := range superseded {
			args = append(args, id.String())
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE messages SET visibility = ? WHERE id IN ("+placeholders+")",
			args...,
		); err != nil {
			return fmt.Errorf("sqlite: supersede messages: %w", err)
		}
	}

	images, err := marshalImages(summary.Images)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, channel_id, vendor, role, content, images,
		                      image_prompt, image_context, visibility, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.ID.String(), summary.ChannelID, summary.Vendor, string(summary.Role),
		summary.Content, images,
		boolInt(summary.ImagePrompt), boolInt(summary.ImageContext),
		string(summary.Visibility), summary.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("sqlite: insert summary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit summary: %w", err)
	}
	return nil
}

// ClearChannel marks all of the channel's messages for the vendor cleared.
// An empty vendor clears every vendor.
func (r *Repository) ClearChannel(ctx context.Context, channelID, vendor string) error {
	query := "UPDATE messages SET visibility = ? WHERE channel_id = ?"
	args := []any{string(conversation.VisibilityCleared), channelID}
	if vendor != "" {
		query += " AND vendor = ?"
		args = append(args, vendor)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: clear channel: %w", err)
	}
	return nil
}

func scanMessage(rows *sql.Rows) (conversation.Message, error) {
	var (
		msg                       conversation.Message
		id, role, visibility      string
		images, createdAt         string
		imagePrompt, imageContext int
	)
	if err := rows.Scan(&id, &msg.ChannelID, &msg.Vendor, &role, &msg.Content, &images,
		&imagePrompt, &imageContext, &visibility, &createdAt); err != nil {
		return conversation.Message{}, fmt.Errorf("sqlite: scan message: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("sqlite: parse message id %q: %w", id, err)
	}
	msg.ID = parsed
	msg.Role = conversation.Role(role)
	msg.Visibility = conversation.Visibility(visibility)
	msg.ImagePrompt = imagePrompt != 0
	msg.ImageContext = imageContext != 0

	if images != "" && images != "[]" {
		if err := json.Unmarshal([]byte(images), &msg.Images); err != nil {
			return conversation.Message{}, fmt.Errorf("sqlite: decode images: %w", err)
		}
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("sqlite: parse created_at %q: %w", createdAt, err)
	}
	msg.CreatedAt = t

	return msg, nil
}

func marshalImages(images []conversation.ImageRef) (string, error) {
	if len(images) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("sqlite: marshal images: %w", err)
	}
	return string(raw), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
