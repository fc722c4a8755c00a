package reminder

import (
	"context"
	"errors"
	"time"
)

// Config controls the reminder scheduler.
type Config struct {
	// MinDelay is the policy floor for new delays (validation, not an engine
	// limitation).
	MinDelay time.Duration
	// MaxLookahead is the ceiling for new delays.
	MaxLookahead time.Duration
	// ChainStep is the longest span armed in a single timer. Anything longer
	// is split into chain links that re-read fire_at before re-arming.
	ChainStep time.Duration
}

const (
	DefaultMinDelay     = time.Minute
	DefaultMaxLookahead = 2 * 365 * 24 * time.Hour
	DefaultChainStep    = 30 * 24 * time.Hour
)

func (c Config) withDefaults() Config {
	if c.MinDelay <= 0 {
		c.MinDelay = DefaultMinDelay
	}
	if c.MaxLookahead <= 0 {
		c.MaxLookahead = DefaultMaxLookahead
	}
	if c.ChainStep <= 0 {
		c.ChainStep = DefaultChainStep
	}
	return c
}

// Validation and lookup errors. Delivery failures are never surfaced through
// these; they are logged and the reminder is finalized regardless.
var (
	ErrDelayTooShort = errors.New("delay below minimum")
	ErrDelayTooLong  = errors.New("delay beyond maximum lookahead")
	ErrEmptyMessage  = errors.New("message is empty")

	// ErrNotFound means the reminder already fired or the id is invalid.
	ErrNotFound = errors.New("reminder not found")
)

// CreateRequest carries a validated creation request from the command layer.
type CreateRequest struct {
	RecipientUserID   int64
	DeliveryChannelID int64
	// GuildID zero means deliver via DM.
	GuildID         int64
	OriginMessageID int64
	Message         string
	Delay           time.Duration
}

// User is a resolved notification recipient.
type User struct {
	ID   int64
	Name string
}

// Channel is a resolved delivery channel.
type Channel struct {
	ID    int64
	Title string
}

// MessageRef identifies a message the notifier has sent.
type MessageRef struct {
	ChannelID int64
	MessageID int64
}

// Payload is the notification content handed to the Notifier. Rendering
// (text, embeds, links) is the notifier's concern, not the engine's.
type Payload struct {
	Message   string
	CreatedAt time.Time

	// Origin back-reference for a "jump to original" link; OriginMessageID
	// non-positive means absent.
	GuildID         int64
	OriginChannelID int64
	OriginMessageID int64
}

// Notifier delivers rendered notifications. Resolve methods return (nil, nil)
// when the target does not exist; callers treat that as "unreachable", not as
// an error.
type Notifier interface {
	ResolveUser(ctx context.Context, userID int64) (*User, error)
	SendDirect(ctx context.Context, user *User, p Payload) (MessageRef, error)
	ResolveChannel(ctx context.Context, channelID int64) (*Channel, error)
	SendToChannel(ctx context.Context, channelID int64, p Payload) (MessageRef, error)
	// DeleteMessage is best-effort cleanup of a previously sent message.
	DeleteMessage(ctx context.Context, channelID, messageID int64) error
}

// Stats is a point-in-time snapshot of engine state, for status surfaces and
// tests.
type Stats struct {
	// Active is the number of live timer handles.
	Active int
	// ChainFirings counts intermediate chain links that fired (not
	// deliveries).
	ChainFirings uint64
	// Finalized counts reminders that completed their one dispatch attempt.
	Finalized uint64
}
