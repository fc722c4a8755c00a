package transport

import "context"

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// ChatInfo is the resolved identity of a chat (user DM, group or channel).
type ChatInfo struct {
	ID       int64
	Title    string
	Username string
	IsUser   bool
}

// Adapter is the chat-platform boundary. Implementations must be safe for
// concurrent use once started.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	DeleteMessage(ctx context.Context, ref MessageRef) error
	// ResolveChat returns (nil, nil) when the chat does not exist or is not
	// reachable by the bot.
	ResolveChat(ctx context.Context, chatID int64) (*ChatInfo, error)
}
