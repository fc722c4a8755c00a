package reminder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

// storeTimeout bounds store calls made from timer callbacks.
const storeTimeout = 10 * time.Second

type handleState int

const (
	// stateChainPending: an intermediate link is armed; firing re-arms, never
	// delivers.
	stateChainPending handleState = iota
	// stateTerminalArmed: the next firing is expected to deliver.
	stateTerminalArmed
	// stateFired: a callback claimed the terminal firing; the handle only
	// awaits finalization.
	stateFired
)

// handle is the in-memory registry entry for one pending reminder. It is
// never persisted and is rebuilt from the store on every Initialize.
type handle struct {
	id  int64
	gen uint64
	seq uint64

	state handleState
	timer *time.Timer
}

func (h *handle) stop() {
	if h.timer != nil {
		_ = h.timer.Stop()
	}
}

// engine owns the timer-handle registry. The registry is the only shared
// mutable state; every mutation happens under mu, and mu is never held across
// store or notifier I/O.
//
// Callbacks carry the (gen, seq) pair of the handle that armed them. gen
// changes on every InitializeAll (full registry reset), seq on every arm, so
// a callback from a replaced or reset handle fails validation and discards
// itself. This is what makes a racing snooze/chain-link pair converge on
// exactly one winning fire_at.
type engine struct {
	cfg   Config
	log   logx.Logger
	store storage.Store

	// deliver performs the single dispatch attempt. It must swallow delivery
	// failures; the engine finalizes unconditionally after it returns.
	deliver func(ctx context.Context, rec storage.Reminder)

	mu      sync.Mutex
	gen     uint64
	seq     uint64
	handles map[int64]*handle

	chainFirings atomic.Uint64
	finalized    atomic.Uint64
}

func newEngine(cfg Config, st storage.Store, log logx.Logger, deliver func(ctx context.Context, rec storage.Reminder)) *engine {
	return &engine{
		cfg:     cfg,
		log:     log,
		store:   st,
		deliver: deliver,
		handles: map[int64]*handle{},
	}
}

// Arm creates (or replaces) the timer handle for rec. If fire_at already
// elapsed, dispatch starts immediately on its own goroutine and no timer is
// created.
func (e *engine) Arm(rec storage.Reminder) {
	e.mu.Lock()
	e.armLocked(rec)
	e.mu.Unlock()
}

// Rearm is Arm; any existing handle (including an in-flight chain link) is
// stopped and replaced. Kept as a separate name because callers mean
// different things by it.
func (e *engine) Rearm(rec storage.Reminder) { e.Arm(rec) }

// Cancel drops the handle for id if present. Idempotent. It does not
// interrupt a firing already past callback invocation; such a callback
// re-reads the store, finds no record, and discards itself.
func (e *engine) Cancel(id int64) {
	e.mu.Lock()
	if h, ok := e.handles[id]; ok {
		h.stop()
		delete(e.handles, id)
	}
	e.mu.Unlock()
}

// InitializeAll resets the whole registry and arms every given record. Any
// callback from the previous generation finds its generation stale and
// discards itself, so calling this repeatedly (restart, reconnect, periodic
// reconcile) leaves exactly one live handle per record.
func (e *engine) InitializeAll(recs []storage.Reminder) {
	e.mu.Lock()
	e.gen++
	for _, h := range e.handles {
		h.stop()
	}
	e.handles = make(map[int64]*handle, len(recs))
	for _, rec := range recs {
		e.armLocked(rec)
	}
	e.mu.Unlock()
}

func (e *engine) Stats() Stats {
	e.mu.Lock()
	active := len(e.handles)
	e.mu.Unlock()
	return Stats{
		Active:       active,
		ChainFirings: e.chainFirings.Load(),
		Finalized:    e.finalized.Load(),
	}
}

// armLocked installs a fresh handle for rec. Call with e.mu held.
func (e *engine) armLocked(rec storage.Reminder) {
	if prev, ok := e.handles[rec.ID]; ok {
		prev.stop()
	}
	e.seq++
	h := &handle{id: rec.ID, gen: e.gen, seq: e.seq}
	id, gen, seq := rec.ID, h.gen, h.seq

	remaining := time.Until(rec.FireAt)
	switch {
	case remaining > e.cfg.ChainStep:
		h.state = stateChainPending
		h.timer = time.AfterFunc(e.cfg.ChainStep, func() { e.onTimer(id, gen, seq) })
	case remaining > 0:
		h.state = stateTerminalArmed
		h.timer = time.AfterFunc(remaining, func() { e.onTimer(id, gen, seq) })
	default:
		// Already due (typically at initialize): dispatch now, no timer.
		h.state = stateTerminalArmed
		go e.onTimer(id, gen, seq)
	}
	e.handles[rec.ID] = h
}

// onTimer is the single firing path for chain links and terminal timers.
// Whether this firing delivers is decided by re-reading fire_at from the
// store now, not by what the handle believed when it was armed.
func (e *engine) onTimer(id int64, gen, seq uint64) {
	if !e.current(id, gen, seq) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	rec, err := e.store.FindByID(ctx, id)
	cancel()
	if err != nil {
		e.log.Error("fire-time lookup failed", logx.Int64("reminder_id", id), logx.Err(err))
		e.release(id, gen, seq)
		return
	}
	if rec == nil {
		// Cancelled or already finalized; nothing left to own.
		e.release(id, gen, seq)
		return
	}

	e.mu.Lock()
	h, ok := e.handles[id]
	if !ok || h.gen != gen || h.seq != seq {
		// Snoozed or reset while we were reading; the new handle owns it.
		e.mu.Unlock()
		return
	}
	if time.Until(rec.FireAt) > 0 {
		// Not due: either a chain link elapsed, or a snooze pushed fire_at
		// out from under a terminal timer. Re-arm against the fresh record.
		if h.state == stateChainPending {
			e.chainFirings.Add(1)
		}
		e.armLocked(*rec)
		e.mu.Unlock()
		return
	}
	// Claim the terminal firing. From here no other callback can win.
	h.state = stateFired
	e.mu.Unlock()

	e.deliver(context.Background(), *rec)
	e.finalize(*rec, gen, seq)
}

// finalize deletes the store record, then drops the handle. This is the only
// path that removes record and handle together, and the (gen, seq) claim in
// onTimer guarantees it runs once per reminder life.
func (e *engine) finalize(rec storage.Reminder, gen, seq uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	if err := e.store.Delete(ctx, rec.ID); err != nil {
		e.log.Error("finalize delete failed", logx.Int64("reminder_id", rec.ID), logx.Err(err))
	}
	cancel()
	e.release(rec.ID, gen, seq)
	e.finalized.Add(1)
}

// current reports whether the (gen, seq) callback still owns the handle.
func (e *engine) current(id int64, gen, seq uint64) bool {
	e.mu.Lock()
	h, ok := e.handles[id]
	valid := ok && h.gen == gen && h.seq == seq
	e.mu.Unlock()
	return valid
}

// release drops the handle if it is still the one the callback armed.
func (e *engine) release(id int64, gen, seq uint64) {
	e.mu.Lock()
	if h, ok := e.handles[id]; ok && h.gen == gen && h.seq == seq {
		h.stop()
		delete(e.handles, id)
	}
	e.mu.Unlock()
}
