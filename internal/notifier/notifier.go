// Package notifier adapts the chat transport to the reminder engine's
// Notifier capability: recipient/channel resolution, payload rendering and
// rate-limited sends.
package notifier

import (
	"context"

	"golang.org/x/time/rate"

	"remindbot/internal/reminder"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type Service struct {
	adapter kit.Adapter
	log     logx.Logger
	limiter *rate.Limiter
}

func New(adapter kit.Adapter, ratePerSec int, log logx.Logger) *Service {
	if ratePerSec <= 0 {
		ratePerSec = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		adapter: adapter,
		log:     log,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

func (s *Service) ResolveUser(ctx context.Context, userID int64) (*reminder.User, error) {
	info, err := s.adapter.ResolveChat(ctx, userID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return &reminder.User{ID: info.ID, Name: info.Title}, nil
}

func (s *Service) ResolveChannel(ctx context.Context, channelID int64) (*reminder.Channel, error) {
	info, err := s.adapter.ResolveChat(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return &reminder.Channel{ID: info.ID, Title: info.Title}, nil
}

func (s *Service) SendDirect(ctx context.Context, user *reminder.User, p reminder.Payload) (reminder.MessageRef, error) {
	return s.send(ctx, user.ID, renderPayload(p, 0))
}

func (s *Service) SendToChannel(ctx context.Context, channelID int64, p reminder.Payload) (reminder.MessageRef, error) {
	return s.send(ctx, channelID, renderPayload(p, channelID))
}

func (s *Service) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	return s.adapter.DeleteMessage(ctx, kit.MessageRef{ChatID: channelID, MessageID: int(messageID)})
}

func (s *Service) send(ctx context.Context, chatID int64, text string) (reminder.MessageRef, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return reminder.MessageRef{}, err
	}
	ref, err := s.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	if err != nil {
		return reminder.MessageRef{}, err
	}
	return reminder.MessageRef{ChannelID: ref.ChatID, MessageID: int64(ref.MessageID)}, nil
}
