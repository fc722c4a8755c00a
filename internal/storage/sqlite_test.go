package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "remindbot/pkg/logx"
)

func openTestSQLite(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "reminders.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteCRUD(t *testing.T) {
	t.Parallel()
	st := openTestSQLite(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Millisecond)
	saved, err := st.Insert(ctx, Reminder{
		CreatedAt:         now,
		FireAt:            now.Add(time.Hour),
		RecipientUserID:   42,
		DeliveryChannelID: -100123,
		GuildID:           -100123,
		OriginMessageID:   9,
		Message:           "water the plants",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := st.FindByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got == nil {
		t.Fatal("FindByID returned nil for existing record")
	}
	if !got.FireAt.Equal(saved.FireAt) {
		t.Fatalf("FireAt = %v, want %v", got.FireAt, saved.FireAt)
	}
	if got.Message != "water the plants" || got.GuildID != -100123 {
		t.Fatalf("unexpected record: %+v", got)
	}

	got.FireAt = now.Add(2 * time.Hour)
	got.DeliveryMessageID = 555
	if err := st.Update(ctx, *got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, err := st.FindByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("FindByID after update: %v", err)
	}
	if !again.FireAt.Equal(got.FireAt) || again.DeliveryMessageID != 555 {
		t.Fatalf("update not persisted: %+v", again)
	}

	if err := st.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	gone, err := st.FindByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("FindByID after delete: %v", err)
	}
	if gone != nil {
		t.Fatalf("record survived delete: %+v", gone)
	}
	// Deleting an absent id is fine.
	if err := st.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestSQLiteListPendingOrder(t *testing.T) {
	t.Parallel()
	st := openTestSQLite(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Millisecond)
	for _, offset := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		if _, err := st.Insert(ctx, Reminder{
			CreatedAt:       now,
			FireAt:          now.Add(offset),
			RecipientUserID: 1,
			Message:         offset.String(),
		}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	recs, err := st.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].FireAt.Before(recs[i-1].FireAt) {
			t.Fatalf("not sorted soonest first: %v before %v", recs[i].FireAt, recs[i-1].FireAt)
		}
	}
}

func TestSQLiteFindAbsent(t *testing.T) {
	t.Parallel()
	st := openTestSQLite(t)
	got, err := st.FindByID(context.Background(), 12345)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got != nil {
		t.Fatalf("expected (nil, nil) for absent id, got %+v", got)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "reminders.db")
	ctx := context.Background()

	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Now().Truncate(time.Millisecond)
	saved, err := st.Insert(ctx, Reminder{CreatedAt: now, FireAt: now.Add(time.Hour), RecipientUserID: 7, Message: "survive restart"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	got, err := st2.FindByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("FindByID after reopen: %v", err)
	}
	if got == nil || got.Message != "survive restart" {
		t.Fatalf("record lost across reopen: %+v", got)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
