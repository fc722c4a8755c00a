// Package router turns incoming chat messages into reminder service calls.
// It owns the user-facing validation surface: duration parsing, message
// length bounds and the requester-owns-reminder check the engine itself does
// not perform.
package router

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/reminder"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// maxMessageLen bounds reminder text at the command layer; the engine does
// not re-validate length.
const maxMessageLen = 500

const handleTimeout = 15 * time.Second

type Router struct {
	adapter kit.Adapter
	svc     *reminder.Service
	log     logx.Logger
}

func New(adapter kit.Adapter, svc *reminder.Service, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{adapter: adapter, svc: svc, log: log}
}

// Run dispatches updates until ctx is cancelled or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			if up.Message == nil || up.Message.Text == "" {
				continue
			}
			msg := up.Message
			go func() {
				hctx, cancel := context.WithTimeout(ctx, handleTimeout)
				defer cancel()
				r.handle(hctx, msg)
			}()
		}
	}
}

func (r *Router) handle(ctx context.Context, msg *kit.Message) {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return
	}
	// Strip a trailing @botname from the command token (group usage).
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "/start", "/help":
		r.reply(ctx, msg, helpText)
	case "/remind":
		r.handleRemind(ctx, msg, args)
	case "/snooze":
		r.handleSnooze(ctx, msg, args)
	case "/cancel":
		r.handleCancel(ctx, msg, args)
	case "/reminders":
		r.handleList(ctx, msg)
	case "/status":
		r.handleStatus(ctx, msg)
	}
}

const helpText = `<b>remindbot</b>
/remind &lt;delay&gt; &lt;text&gt; — set a reminder (e.g. /remind 2h take a break)
/snooze &lt;id&gt; &lt;delay&gt; — push a pending reminder out
/cancel &lt;id&gt; — drop a pending reminder
/reminders — list your pending reminders

Delays: 1m..2y, units w/d/h/m/s (e.g. 45m, 3d, 1w2d).`

func (r *Router) handleRemind(ctx context.Context, msg *kit.Message, args []string) {
	if len(args) < 2 {
		r.reply(ctx, msg, "usage: /remind <delay> <text>")
		return
	}
	delay, err := ParseDelay(args[0])
	if err != nil {
		r.reply(ctx, msg, html.EscapeString(err.Error()))
		return
	}
	text := strings.Join(args[1:], " ")
	if len(text) > maxMessageLen {
		r.reply(ctx, msg, fmt.Sprintf("reminder text is too long (max %d characters)", maxMessageLen))
		return
	}

	req := reminder.CreateRequest{
		RecipientUserID: msg.FromID,
		Message:         text,
		Delay:           delay,
	}
	if msg.IsGroup {
		req.GuildID = msg.ChatID
		req.DeliveryChannelID = msg.ChatID
		req.OriginMessageID = int64(msg.ID)
	}

	rec, err := r.svc.Create(ctx, req)
	if err != nil {
		r.reply(ctx, msg, userFacing(err))
		return
	}

	conf := fmt.Sprintf("⏰ Reminder <b>#%d</b> set for %s (in %s).\nSnooze later with /snooze %d &lt;delay&gt;.",
		rec.ID, rec.FireAt.Format("2006-01-02 15:04 MST"), formatDelay(delay), rec.ID)
	ref := r.reply(ctx, msg, conf)
	if ref.MessageID != 0 {
		if err := r.svc.AttachDeliveryMessage(ctx, rec.ID, int64(ref.MessageID)); err != nil {
			r.log.Debug("confirmation attach failed", logx.Int64("reminder_id", rec.ID), logx.Err(err))
		}
	}
}

func (r *Router) handleSnooze(ctx context.Context, msg *kit.Message, args []string) {
	if len(args) != 2 {
		r.reply(ctx, msg, "usage: /snooze <id> <delay>")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		r.reply(ctx, msg, "usage: /snooze <id> <delay>")
		return
	}
	extra, err := ParseDelay(args[1])
	if err != nil {
		r.reply(ctx, msg, html.EscapeString(err.Error()))
		return
	}

	if !r.owns(ctx, msg, id) {
		return
	}
	fireAt, err := r.svc.Snooze(ctx, id, extra)
	if err != nil {
		r.reply(ctx, msg, userFacing(err))
		return
	}
	r.reply(ctx, msg, fmt.Sprintf("💤 Reminder <b>#%d</b> snoozed until %s.", id, fireAt.Format("2006-01-02 15:04 MST")))
}

func (r *Router) handleCancel(ctx context.Context, msg *kit.Message, args []string) {
	if len(args) != 1 {
		r.reply(ctx, msg, "usage: /cancel <id>")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		r.reply(ctx, msg, "usage: /cancel <id>")
		return
	}
	if !r.owns(ctx, msg, id) {
		return
	}
	if err := r.svc.Cancel(ctx, id); err != nil {
		r.reply(ctx, msg, userFacing(err))
		return
	}
	r.reply(ctx, msg, fmt.Sprintf("🗑 Reminder <b>#%d</b> cancelled.", id))
}

func (r *Router) handleList(ctx context.Context, msg *kit.Message) {
	recs, err := r.svc.ListPending(ctx, msg.FromID)
	if err != nil {
		r.reply(ctx, msg, "could not load reminders, try again later")
		return
	}
	if len(recs) == 0 {
		r.reply(ctx, msg, "No pending reminders.")
		return
	}
	var b strings.Builder
	b.WriteString("<b>Pending reminders</b>\n")
	for _, rec := range recs {
		text := rec.Message
		if len(text) > 40 {
			text = text[:37] + "..."
		}
		fmt.Fprintf(&b, "#%d — in %s — %s\n", rec.ID, formatDelay(time.Until(rec.FireAt)), html.EscapeString(text))
	}
	r.reply(ctx, msg, b.String())
}

func (r *Router) handleStatus(ctx context.Context, msg *kit.Message) {
	st := r.svc.Stats()
	r.reply(ctx, msg, fmt.Sprintf("active timers: %d\nchain firings: %d\nfinalized: %d",
		st.Active, st.ChainFirings, st.Finalized))
}

// owns checks the requester is the reminder's recipient. A foreign id is
// reported the same way as a missing one so ids aren't probeable.
func (r *Router) owns(ctx context.Context, msg *kit.Message, id int64) bool {
	rec, err := r.svc.Find(ctx, id)
	if err != nil || rec.RecipientUserID != msg.FromID {
		r.reply(ctx, msg, userFacing(reminder.ErrNotFound))
		return false
	}
	return true
}

func userFacing(err error) string {
	switch {
	case errors.Is(err, reminder.ErrDelayTooShort):
		return "that delay is too short (minimum 1 minute)"
	case errors.Is(err, reminder.ErrDelayTooLong):
		return "that delay is too far out (maximum 2 years)"
	case errors.Is(err, reminder.ErrEmptyMessage):
		return "reminder text is empty"
	case errors.Is(err, reminder.ErrNotFound):
		return "no such reminder — it may have fired already"
	default:
		return "something went wrong, try again later"
	}
}

func (r *Router) reply(ctx context.Context, msg *kit.Message, text string) kit.MessageRef {
	ref, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, text, &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	if err != nil {
		r.log.Warn("reply failed", logx.Int64("chat", msg.ChatID), logx.Err(err))
	}
	return ref
}
