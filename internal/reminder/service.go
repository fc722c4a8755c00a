package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

// Service is the public scheduling contract used by the command layer.
//
// Ordering is load-bearing throughout: records are persisted before timers
// are armed, so a store failure can never leave a timer running for a record
// that was never durably saved.
type Service struct {
	cfg      Config
	log      logx.Logger
	store    storage.Store
	notifier Notifier
	engine   *engine
}

func New(cfg Config, st storage.Store, n Notifier, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	s := &Service{
		cfg:      cfg,
		log:      log,
		store:    st,
		notifier: n,
	}
	s.engine = newEngine(cfg, st, log, s.deliver)
	return s
}

// Create validates, persists and arms a new reminder. The returned record
// carries the assigned id and computed fire_at so the caller can render a
// confirmation and correlate later snooze/cancel actions.
func (s *Service) Create(ctx context.Context, req CreateRequest) (storage.Reminder, error) {
	if strings.TrimSpace(req.Message) == "" {
		return storage.Reminder{}, ErrEmptyMessage
	}
	if req.Delay < s.cfg.MinDelay {
		return storage.Reminder{}, fmt.Errorf("%w (minimum %s)", ErrDelayTooShort, s.cfg.MinDelay)
	}
	if req.Delay > s.cfg.MaxLookahead {
		return storage.Reminder{}, fmt.Errorf("%w (maximum %s)", ErrDelayTooLong, s.cfg.MaxLookahead)
	}

	now := time.Now()
	rec := storage.Reminder{
		CreatedAt:         now,
		FireAt:            now.Add(req.Delay),
		RecipientUserID:   req.RecipientUserID,
		DeliveryChannelID: req.DeliveryChannelID,
		GuildID:           req.GuildID,
		OriginMessageID:   req.OriginMessageID,
		Message:           req.Message,
	}

	saved, err := s.store.Insert(ctx, rec)
	if err != nil {
		return storage.Reminder{}, fmt.Errorf("persist reminder: %w", err)
	}
	s.engine.Arm(saved)

	s.log.Info("reminder created",
		logx.Int64("reminder_id", saved.ID),
		logx.Int64("recipient", saved.RecipientUserID),
		logx.Duration("delay", req.Delay),
		logx.Time("fire_at", saved.FireAt))
	return saved, nil
}

// Snooze pushes an existing reminder's fire_at to now+extra and re-arms it.
// Returns ErrNotFound when the reminder already fired or never existed.
// Ownership of the reminder is the caller layer's check; the engine only
// knows the stored recipient.
func (s *Service) Snooze(ctx context.Context, id int64, extra time.Duration) (time.Time, error) {
	if extra < s.cfg.MinDelay {
		return time.Time{}, fmt.Errorf("%w (minimum %s)", ErrDelayTooShort, s.cfg.MinDelay)
	}
	if extra > s.cfg.MaxLookahead {
		return time.Time{}, fmt.Errorf("%w (maximum %s)", ErrDelayTooLong, s.cfg.MaxLookahead)
	}

	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return time.Time{}, fmt.Errorf("load reminder: %w", err)
	}
	if rec == nil {
		return time.Time{}, ErrNotFound
	}

	// Best-effort cleanup of the prior confirmation message before the new
	// one is posted.
	if rec.DeliveryMessageID != 0 {
		chID := rec.DeliveryChannelID
		if chID == 0 {
			chID = rec.RecipientUserID
		}
		if err := s.notifier.DeleteMessage(ctx, chID, rec.DeliveryMessageID); err != nil {
			s.log.Debug("stale confirmation cleanup failed", logx.Int64("reminder_id", id), logx.Err(err))
		}
		rec.DeliveryMessageID = 0
	}

	rec.FireAt = time.Now().Add(extra)
	if err := s.store.Update(ctx, *rec); err != nil {
		return time.Time{}, fmt.Errorf("persist snooze: %w", err)
	}
	s.engine.Rearm(*rec)

	s.log.Info("reminder snoozed",
		logx.Int64("reminder_id", id),
		logx.Duration("extra", extra),
		logx.Time("fire_at", rec.FireAt))
	return rec.FireAt, nil
}

// Cancel removes the reminder administratively: store record first, then any
// live handle. Cancelling an unknown id reports ErrNotFound but leaves
// nothing behind either way.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load reminder: %w", err)
	}
	if rec == nil {
		s.engine.Cancel(id)
		return ErrNotFound
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	s.engine.Cancel(id)
	s.log.Info("reminder cancelled", logx.Int64("reminder_id", id))
	return nil
}

// Initialize rebuilds every timer from the store's pending set. Safe to call
// repeatedly (restart, reconnect, periodic reconcile): each call is a full
// reset of the in-memory registry against current store state. Records whose
// fire_at already elapsed are dispatched immediately.
func (s *Service) Initialize(ctx context.Context) error {
	recs, err := s.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending reminders: %w", err)
	}
	s.engine.InitializeAll(recs)
	s.log.Info("reminders initialized", logx.Int("pending", len(recs)))
	return nil
}

// Find loads a single pending reminder, ErrNotFound when absent. The command
// layer uses it for its ownership check before snooze/cancel.
func (s *Service) Find(ctx context.Context, id int64) (*storage.Reminder, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// ListPending returns the caller's own pending reminders, soonest first.
func (s *Service) ListPending(ctx context.Context, userID int64) ([]storage.Reminder, error) {
	recs, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if r.RecipientUserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// AttachDeliveryMessage records the bot's confirmation message id on the
// reminder so a later snooze can clean it up. Missing records are ignored:
// the reminder may already have fired.
func (s *Service) AttachDeliveryMessage(ctx context.Context, id, messageID int64) error {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil || rec == nil {
		return err
	}
	rec.DeliveryMessageID = messageID
	return s.store.Update(ctx, *rec)
}

// Stats exposes engine counters for status surfaces.
func (s *Service) Stats() Stats { return s.engine.Stats() }
