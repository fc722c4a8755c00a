package storage

import (
	"time"
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default when empty)
//   - "file":   file backend (jsonl journal + snapshot)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Reminder is the persistent record of one pending notification.
//
// A record exists if and only if the reminder has not been dispatched yet;
// dispatch finalization deletes it. Keep it compact and schema-stable.
type Reminder struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	// FireAt is when delivery should occur. Mutable only via snooze.
	FireAt time.Time `json:"fire_at"`

	RecipientUserID int64 `json:"recipient_user_id"`
	// DeliveryChannelID is the channel to post into; meaningful only when
	// GuildID is set.
	DeliveryChannelID int64 `json:"delivery_channel_id,omitempty"`
	// GuildID zero means deliver via direct message to the recipient.
	GuildID int64 `json:"guild_id,omitempty"`
	// OriginMessageID links back to the message that requested the reminder.
	// Non-positive values mean "absent" (legacy records).
	OriginMessageID int64 `json:"origin_message_id,omitempty"`

	Message string `json:"message"`

	// DeliveryMessageID is the bot's own previously sent notification, set
	// after a send succeeds. Snooze uses it to clean up the prior message.
	DeliveryMessageID int64 `json:"delivery_message_id,omitempty"`
}

// DirectMessage reports whether the reminder is delivered via DM.
func (r Reminder) DirectMessage() bool { return r.GuildID == 0 }

// HasOrigin reports whether the record carries a usable origin back-reference.
func (r Reminder) HasOrigin() bool { return r.OriginMessageID > 0 }
