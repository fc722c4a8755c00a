package reminder

import (
	"context"
	"time"

	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

// deliverTimeout bounds the whole dispatch attempt (resolve + send).
const deliverTimeout = 30 * time.Second

// deliver makes the single delivery attempt for rec. Every failure mode ends
// the same way: logged, swallowed, and the caller finalizes. There is no
// retry channel, so a failed delivery is invisible to the recipient.
func (s *Service) deliver(ctx context.Context, rec storage.Reminder) {
	ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()

	log := s.log.With(logx.Int64("reminder_id", rec.ID), logx.Int64("recipient", rec.RecipientUserID))

	user, err := s.notifier.ResolveUser(ctx, rec.RecipientUserID)
	if err != nil {
		log.Warn("recipient lookup failed, dropping reminder", logx.Err(err))
		return
	}
	if user == nil {
		log.Info("recipient no longer resolvable, dropping reminder")
		return
	}

	p := Payload{
		Message:         rec.Message,
		CreatedAt:       rec.CreatedAt,
		GuildID:         rec.GuildID,
		OriginChannelID: rec.DeliveryChannelID,
		OriginMessageID: rec.OriginMessageID,
	}

	if rec.DirectMessage() {
		// DM failure usually means the recipient blocked the bot. By policy
		// that is silent: at-most-once, never retried.
		if _, err := s.notifier.SendDirect(ctx, user, p); err != nil {
			log.Debug("direct send failed, dropping reminder", logx.Err(err))
		}
		return
	}

	ch, err := s.notifier.ResolveChannel(ctx, rec.DeliveryChannelID)
	if err != nil {
		log.Warn("channel lookup failed, dropping reminder",
			logx.Int64("channel", rec.DeliveryChannelID), logx.Err(err))
		return
	}
	if ch == nil {
		log.Info("delivery channel gone, dropping reminder",
			logx.Int64("channel", rec.DeliveryChannelID))
		return
	}
	if _, err := s.notifier.SendToChannel(ctx, rec.DeliveryChannelID, p); err != nil {
		log.Warn("channel send failed, dropping reminder",
			logx.Int64("channel", rec.DeliveryChannelID), logx.Err(err))
	}
}
