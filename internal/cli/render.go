package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/syncengine"
)

const previewWidth = 48

func renderChatList(w io.Writer, items []syncengine.ChatItem, tab syncengine.Tab, now time.Time) {
	fmt.Fprintf(w, "── %s (%d) ──\n", tab, len(items))
	if len(items) == 0 {
		fmt.Fprintln(w, "  no conversations")
		return
	}
	for _, it := range items {
		marker := " "
		if it.Conversation.Favourite {
			marker = "★"
		}
		badge := ""
		if it.Unread > 0 {
			badge = fmt.Sprintf(" [%d]", it.Unread)
		}
		when := ""
		if it.LastMessage != nil {
			when = humanize.RelTime(it.LastActivity, now, "ago", "from now")
		}
		fmt.Fprintf(w, "%s %-24s%s  %s  %s\n  %s\n",
			marker, truncate(it.Title, 24), badge, when, it.Conversation.ID, truncate(it.Preview, previewWidth))
	}
}

func renderMessages(w io.Writer, conv domain.Conversation, msgs []domain.Message, me uuid.UUID, names map[uuid.UUID]string, now time.Time) {
	fmt.Fprintf(w, "── %s ──\n", conv.DisplayName())
	if len(msgs) == 0 {
		fmt.Fprintln(w, "  "+domain.NoMessagesYet)
		return
	}
	for i := range msgs {
		fmt.Fprintln(w, formatMessage(&msgs[i], me, names, now))
	}
}

func formatMessage(m *domain.Message, me uuid.UUID, names map[uuid.UUID]string, now time.Time) string {
	who := names[m.SenderID]
	if m.SenderID == me {
		who = "me"
	} else if who == "" {
		who = m.SenderID.String()[:8]
	}

	status := ""
	switch {
	case m.Provisional:
		status = " (sending)"
	case m.SenderID == me && m.ReceiverID != nil && m.Read:
		status = " ✓✓"
	case m.SenderID == me:
		status = " ✓"
	}

	body := domain.Describe(m)
	if m.Kind.IsAttachment() {
		body = domain.Preview(m) + " " + m.AttachmentURL
		if m.Content != "" {
			body += " " + m.Content
		}
	}
	if m.Kind == domain.KindLocation {
		if loc, err := domain.ParseLocation(m.Content); err == nil {
			body += " " + loc.MapsURL()
		}
	}

	return fmt.Sprintf("[%s] %s: %s%s", humanize.RelTime(m.CreatedAt, now, "ago", "from now"), who, body, status)
}

func formatStatus(s syncengine.SendStatus, size int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", s.State, s.ID)
	if size > 0 {
		fmt.Fprintf(&b, " (%s uploaded)", humanize.Bytes(uint64(size)))
	}
	if s.ConfirmedID != uuid.Nil {
		fmt.Fprintf(&b, " -> %s", s.ConfirmedID)
	}
	if s.Err != nil {
		fmt.Fprintf(&b, ": %v", s.Err)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
