package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/convocore/internal/conversation"
)

func openTestRepo(t *testing.T) (conversation.Repository, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "convocore.db")
	repo, db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return repo, path
}

func testMessage(channel, vendor, content string, at time.Time) conversation.Message {
	return conversation.Message{
		ID:         uuid.New(),
		ChannelID:  channel,
		Vendor:     vendor,
		Role:       conversation.RoleUser,
		Content:    content,
		Visibility: conversation.VisibilityVisible,
		CreatedAt:  at,
	}
}

func TestRepositoryInsertAndList(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	msgs := []conversation.Message{
		testMessage("ch", "tg", "first", base),
		testMessage("ch", "tg", "second", base.Add(time.Second)),
		testMessage("ch", "tg", "third", base.Add(2*time.Second)),
	}
	for _, m := range msgs {
		if err := repo.InsertMessage(ctx, m); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	got, err := repo.ListVisible(ctx, "ch", "tg")
	if err != nil {
		t.Fatalf("ListVisible: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got[i].Content != want {
			t.Errorf("message %d = %q, want %q", i, got[i].Content, want)
		}
	}
	if !got[0].CreatedAt.Equal(base) {
		t.Errorf("created_at round-trip = %v, want %v", got[0].CreatedAt, base)
	}
	if got[0].ID != msgs[0].ID {
		t.Errorf("id round-trip = %v, want %v", got[0].ID, msgs[0].ID)
	}
}

func TestRepositoryOrderAcrossSecondBoundary(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// A whole-second timestamp must sort before fractional timestamps in
	// the same and following seconds. A trimmed-fraction encoding gets
	// this wrong lexically.
	msgs := []conversation.Message{
		testMessage("ch", "tg", "on the second", base),
		testMessage("ch", "tg", "half past", base.Add(500*time.Millisecond)),
		testMessage("ch", "tg", "next second", base.Add(time.Second)),
	}
	for _, m := range msgs {
		if err := repo.InsertMessage(ctx, m); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	got, err := repo.ListVisible(ctx, "ch", "tg")
	if err != nil {
		t.Fatalf("ListVisible: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	for i, want := range []string{"on the second", "half past", "next second"} {
		if got[i].Content != want {
			t.Errorf("message %d = %q, want %q", i, got[i].Content, want)
		}
	}
	if !got[0].CreatedAt.Equal(base) {
		t.Errorf("zero-nanosecond created_at round-trip = %v, want %v", got[0].CreatedAt, base)
	}
}

func TestRepositoryImagesRoundTrip(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	msg := testMessage("ch", "tg", "look", time.Now().UTC())
	msg.Images = []conversation.ImageRef{
		{URL: "https://img.test/a", Data: "aGVsbG8="},
		{URL: "https://img.test/b"},
	}
	msg.ImageContext = true
	if err := repo.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	got, err := repo.ListVisible(ctx, "ch", "tg")
	if err != nil {
		t.Fatalf("ListVisible: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	if len(got[0].Images) != 2 || got[0].Images[0].Data != "aGVsbG8=" {
		t.Errorf("images round-trip = %+v", got[0].Images)
	}
	if !got[0].ImageContext {
		t.Error("image_context flag lost in round-trip")
	}
}

func TestRepositoryVendorFilter(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	repo.InsertMessage(ctx, testMessage("ch", "tg", "telegram", now))
	repo.InsertMessage(ctx, testMessage("ch", "dc", "discord", now.Add(time.Second)))

	tg, err := repo.ListVisible(ctx, "ch", "tg")
	if err != nil {
		t.Fatalf("ListVisible: %v", err)
	}
	if len(tg) != 1 || tg[0].Content != "telegram" {
		t.Errorf("vendor tg: got %d messages", len(tg))
	}

	all, err := repo.ListVisible(ctx, "ch", "")
	if err != nil {
		t.Fatalf("ListVisible all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("empty vendor: got %d messages, want 2", len(all))
	}
}

func TestRepositoryApplySummary(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	old1 := testMessage("ch", "tg", "first", base)
	old2 := testMessage("ch", "tg", "second", base.Add(time.Second))
	keep := testMessage("ch", "tg", "untouched", base.Add(2*time.Second))
	for _, m := range []conversation.Message{old1, old2, keep} {
		if err := repo.InsertMessage(ctx, m); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	sum := testMessage("ch", "tg", "[Conversation Summary]\nfirst and second", base.Add(3*time.Second))
	sum.Role = conversation.RoleSystem
	if err := repo.ApplySummary(ctx, sum, []uuid.UUID{old1.ID, old2.ID}); err != nil {
		t.Fatalf("ApplySummary: %v", err)
	}

	got, err := repo.ListVisible(ctx, "ch", "tg")
	if err != nil {
		t.Fatalf("ListVisible: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d visible messages, want 2 (untouched + summary)", len(got))
	}
	if got[0].ID != keep.ID {
		t.Errorf("first visible = %q, want the untouched message", got[0].Content)
	}
	if got[1].ID != sum.ID || got[1].Role != conversation.RoleSystem {
		t.Errorf("last visible = %q (role %s), want the summary", got[1].Content, got[1].Role)
	}
}

func TestRepositoryClearChannel(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	repo.InsertMessage(ctx, testMessage("ch", "tg", "telegram", now))
	repo.InsertMessage(ctx, testMessage("ch", "dc", "discord", now.Add(time.Second)))
	repo.InsertMessage(ctx, testMessage("other", "tg", "elsewhere", now.Add(2*time.Second)))

	if err := repo.ClearChannel(ctx, "ch", "tg"); err != nil {
		t.Fatalf("ClearChannel: %v", err)
	}

	tg, _ := repo.ListVisible(ctx, "ch", "tg")
	if len(tg) != 0 {
		t.Errorf("got %d visible tg messages after clear, want 0", len(tg))
	}
	dc, _ := repo.ListVisible(ctx, "ch", "dc")
	if len(dc) != 1 {
		t.Errorf("got %d visible dc messages, want 1", len(dc))
	}
	other, _ := repo.ListVisible(ctx, "other", "tg")
	if len(other) != 1 {
		t.Errorf("other channel affected by clear: %d messages", len(other))
	}
}

func TestRepositoryPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convocore.db")
	ctx := context.Background()

	repo, db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	msg := testMessage("ch", "tg", "durable", time.Now().UTC())
	if err := repo.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening runs the idempotent migration and sees the old rows.
	repo2, db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = db2.Close() }()

	got, err := repo2.ListVisible(ctx, "ch", "tg")
	if err != nil {
		t.Fatalf("ListVisible after reopen: %v", err)
	}
	if len(got) != 1 || got[0].ID != msg.ID {
		t.Errorf("got %d messages after reopen, want the durable one", len(got))
	}
}
