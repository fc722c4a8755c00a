package router

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type stubStore struct {
	mu   sync.Mutex
	next int64
	recs map[int64]storage.Reminder
}

func newStubStore() *stubStore { return &stubStore{recs: map[int64]storage.Reminder{}} }

func (s *stubStore) ListPending(ctx context.Context) ([]storage.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.Reminder, 0, len(s.recs))
	for _, r := range s.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

func (s *stubStore) Insert(ctx context.Context, r storage.Reminder) (storage.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	r.ID = s.next
	s.recs[r.ID] = r
	return r, nil
}

func (s *stubStore) Update(ctx context.Context, r storage.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[r.ID] = r
	return nil
}

func (s *stubStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, id)
	return nil
}

func (s *stubStore) FindByID(ctx context.Context, id int64) (*storage.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[id]
	if !ok {
		return nil, nil
	}
	cp := r
	return &cp, nil
}

func (s *stubStore) Close() error { return nil }

type stubNotifier struct{}

func (stubNotifier) ResolveUser(ctx context.Context, userID int64) (*reminder.User, error) {
	return &reminder.User{ID: userID}, nil
}
func (stubNotifier) SendDirect(ctx context.Context, u *reminder.User, p reminder.Payload) (reminder.MessageRef, error) {
	return reminder.MessageRef{}, nil
}
func (stubNotifier) ResolveChannel(ctx context.Context, id int64) (*reminder.Channel, error) {
	return &reminder.Channel{ID: id}, nil
}
func (stubNotifier) SendToChannel(ctx context.Context, id int64, p reminder.Payload) (reminder.MessageRef, error) {
	return reminder.MessageRef{}, nil
}
func (stubNotifier) DeleteMessage(ctx context.Context, channelID, messageID int64) error { return nil }

// stubAdapter records outbound replies.
type stubAdapter struct {
	mu      sync.Mutex
	nextMsg int
	sent    []string
}

func (a *stubAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (a *stubAdapter) Stop(ctx context.Context) error                        { return nil }

func (a *stubAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextMsg++
	a.sent = append(a.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: a.nextMsg}, nil
}

func (a *stubAdapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error { return nil }

func (a *stubAdapter) ResolveChat(ctx context.Context, chatID int64) (*kit.ChatInfo, error) {
	return &kit.ChatInfo{ID: chatID, IsUser: chatID > 0}, nil
}

func (a *stubAdapter) lastReply() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.sent) == 0 {
		return ""
	}
	return a.sent[len(a.sent)-1]
}

func (a *stubAdapter) replyCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sent)
}

func newTestRouter(t *testing.T) (*Router, *stubAdapter, *reminder.Service, *stubStore) {
	t.Helper()
	st := newStubStore()
	ad := &stubAdapter{}
	svc := reminder.New(reminder.Config{
		MinDelay:     time.Millisecond,
		MaxLookahead: 100 * 365 * 24 * time.Hour,
		ChainStep:    time.Hour,
	}, st, stubNotifier{}, logx.Nop())
	return New(ad, svc, logx.Nop()), ad, svc, st
}

func dmMessage(text string) *kit.Message {
	return &kit.Message{ID: 100, ChatID: 42, FromID: 42, Text: text}
}

func TestRemindCommandCreatesAndConfirms(t *testing.T) {
	t.Parallel()
	rt, ad, _, st := newTestRouter(t)

	rt.handle(context.Background(), dmMessage("/remind 2h water the plants"))

	reply := ad.lastReply()
	if !strings.Contains(reply, "#1") || !strings.Contains(reply, "2h0m0s") {
		t.Fatalf("unexpected confirmation: %q", reply)
	}

	rec, err := st.FindByID(context.Background(), 1)
	if err != nil || rec == nil {
		t.Fatalf("record not persisted: %v %v", rec, err)
	}
	if rec.Message != "water the plants" || rec.RecipientUserID != 42 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !rec.DirectMessage() {
		t.Fatal("DM reminder should have no guild")
	}
	// Confirmation message id is attached for later snooze cleanup.
	if rec.DeliveryMessageID == 0 {
		t.Fatal("confirmation message id not attached")
	}
}

func TestRemindCommandGroupContext(t *testing.T) {
	t.Parallel()
	rt, _, _, st := newTestRouter(t)

	msg := &kit.Message{ID: 55, ChatID: -1001234, FromID: 42, Text: "/remind@remind_bot 1d standup", IsGroup: true}
	rt.handle(context.Background(), msg)

	rec, err := st.FindByID(context.Background(), 1)
	if err != nil || rec == nil {
		t.Fatalf("record not persisted: %v %v", rec, err)
	}
	if rec.GuildID != -1001234 || rec.DeliveryChannelID != -1001234 {
		t.Fatalf("group context not captured: %+v", rec)
	}
	if rec.OriginMessageID != 55 {
		t.Fatalf("OriginMessageID = %d, want 55", rec.OriginMessageID)
	}
}

func TestRemindCommandRejectsBadDelay(t *testing.T) {
	t.Parallel()
	rt, ad, _, st := newTestRouter(t)

	rt.handle(context.Background(), dmMessage("/remind tomorrow dentist"))
	if !strings.Contains(ad.lastReply(), "invalid delay") {
		t.Fatalf("unexpected reply: %q", ad.lastReply())
	}
	if recs, _ := st.ListPending(context.Background()); len(recs) != 0 {
		t.Fatalf("rejected command persisted %d records", len(recs))
	}
}

func TestSnoozeRequiresOwnership(t *testing.T) {
	t.Parallel()
	rt, ad, svc, _ := newTestRouter(t)

	rec, err := svc.Create(context.Background(), reminder.CreateRequest{
		RecipientUserID: 42, Message: "mine", Delay: time.Hour,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A different user cannot snooze it, and learns nothing from the reply.
	intruder := &kit.Message{ID: 1, ChatID: 99, FromID: 99, Text: "/snooze 1 2h"}
	rt.handle(context.Background(), intruder)
	if !strings.Contains(ad.lastReply(), "no such reminder") {
		t.Fatalf("unexpected reply for foreign snooze: %q", ad.lastReply())
	}

	// The owner can.
	rt.handle(context.Background(), dmMessage("/snooze 1 2h"))
	if !strings.Contains(ad.lastReply(), "snoozed") {
		t.Fatalf("owner snooze failed: %q", ad.lastReply())
	}

	got, err := svc.Find(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if time.Until(got.FireAt) < 90*time.Minute {
		t.Fatalf("fire_at not pushed out: %v", got.FireAt)
	}
}

func TestCancelCommand(t *testing.T) {
	t.Parallel()
	rt, ad, svc, st := newTestRouter(t)

	if _, err := svc.Create(context.Background(), reminder.CreateRequest{
		RecipientUserID: 42, Message: "drop me", Delay: time.Hour,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rt.handle(context.Background(), dmMessage("/cancel 1"))
	if !strings.Contains(ad.lastReply(), "cancelled") {
		t.Fatalf("unexpected reply: %q", ad.lastReply())
	}
	if recs, _ := st.ListPending(context.Background()); len(recs) != 0 {
		t.Fatal("record survived cancel")
	}

	rt.handle(context.Background(), dmMessage("/cancel 1"))
	if !strings.Contains(ad.lastReply(), "no such reminder") {
		t.Fatalf("unexpected reply for repeat cancel: %q", ad.lastReply())
	}
}

func TestListCommand(t *testing.T) {
	t.Parallel()
	rt, ad, svc, _ := newTestRouter(t)

	rt.handle(context.Background(), dmMessage("/reminders"))
	if !strings.Contains(ad.lastReply(), "No pending reminders") {
		t.Fatalf("unexpected empty-list reply: %q", ad.lastReply())
	}

	if _, err := svc.Create(context.Background(), reminder.CreateRequest{
		RecipientUserID: 42, Message: "alpha", Delay: time.Hour,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	rt.handle(context.Background(), dmMessage("/reminders"))
	if !strings.Contains(ad.lastReply(), "alpha") {
		t.Fatalf("list missing reminder: %q", ad.lastReply())
	}
}

func TestNonCommandIgnored(t *testing.T) {
	t.Parallel()
	rt, ad, _, _ := newTestRouter(t)

	rt.handle(context.Background(), dmMessage("just chatting"))
	rt.handle(context.Background(), dmMessage("/unknowncmd"))
	if ad.replyCount() != 0 {
		t.Fatalf("replied %d times to non-commands", ad.replyCount())
	}
}
