package notifier

import (
	"fmt"
	"html"
	"strings"

	"remindbot/internal/reminder"
)

const createdAtFormat = "2006-01-02 15:04 MST"

// renderPayload builds the HTML notification text. destChannel is the chat the
// message is going to; it is only used to decide whether a jump link can be
// built (Telegram only has stable message links inside supergroups).
func renderPayload(p reminder.Payload, destChannel int64) string {
	var b strings.Builder
	b.WriteString("🔔 <b>Reminder</b>\n")
	b.WriteString(html.EscapeString(p.Message))
	b.WriteString("\n\n<i>requested ")
	b.WriteString(p.CreatedAt.Format(createdAtFormat))
	b.WriteString("</i>")

	if link := jumpLink(p.OriginChannelID, p.OriginMessageID); link != "" && destChannel != 0 {
		b.WriteString(` · <a href="`)
		b.WriteString(link)
		b.WriteString(`">jump to request</a>`)
	}
	return b.String()
}

// jumpLink builds a t.me deep link to the originating message. Only
// supergroup chats (-100 prefixed ids) have stable public message links;
// anything else yields no link. Non-positive message ids mean "absent"
// (legacy records).
func jumpLink(chatID, messageID int64) string {
	if messageID <= 0 {
		return ""
	}
	const supergroupOffset = int64(-1000000000000)
	if chatID >= supergroupOffset {
		return ""
	}
	internal := -chatID + supergroupOffset
	return fmt.Sprintf("https://t.me/c/%d/%d", internal, messageID)
}
