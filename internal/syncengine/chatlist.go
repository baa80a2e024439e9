package syncengine

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
)

type Tab string

const (
	TabAll        Tab = "all"
	TabUnread     Tab = "unread"
	TabFavourites Tab = "favourites"
	TabGroups     Tab = "groups"
	TabDirect     Tab = "direct"
)

var Tabs = []Tab{TabAll, TabUnread, TabFavourites, TabGroups, TabDirect}

func ParseTab(s string) (Tab, error) {
	t := Tab(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return TabAll, nil
	}
	if !slices.Contains(Tabs, t) {
		return "", fmt.Errorf("unknown tab %q", s)
	}
	return t, nil
}

// ChatItem is one row of the chat list.
type ChatItem struct {
	Conversation domain.Conversation
	Title        string
	LastMessage  *domain.Message
	Preview      string
	Unread       int
	LastActivity time.Time
}

func (t Tab) includes(item *ChatItem) bool {
	switch t {
	case TabUnread:
		return item.Unread > 0
	case TabFavourites:
		return item.Conversation.Favourite
	case TabGroups:
		return item.Conversation.IsGroup()
	case TabDirect:
		return !item.Conversation.IsGroup()
	}
	return true
}

// ChatList builds the chat list for a tab, most recent activity first.
func (e *Engine) ChatList(tab Tab) []ChatItem {
	e.mu.Lock()
	convs := make([]domain.Conversation, len(e.convs))
	copy(convs, e.convs)
	feed := e.store.Snapshot(AggregateScope)
	e.mu.Unlock()

	return BuildChatList(convs, feed, e.me, e.tracker.LastRead, tab)
}

// TotalUnread sums the unread counts of every conversation.
func (e *Engine) TotalUnread() int {
	total := 0
	for _, item := range e.ChatList(TabAll) {
		total += item.Unread
	}
	return total
}

// BuildChatList groups feed by conversation and derives one item per
// conversation.
func BuildChatList(convs []domain.Conversation, feed []domain.Message, me uuid.UUID, lastRead func(uuid.UUID) time.Time, tab Tab) []ChatItem {
	byConv := make(map[uuid.UUID][]domain.Message, len(convs))
	for _, m := range feed {
		byConv[m.ConversationID] = append(byConv[m.ConversationID], m)
	}

	items := make([]ChatItem, 0, len(convs))
	for _, c := range convs {
		msgs := byConv[c.ID]
		item := ChatItem{
			Conversation: c,
			Title:        c.DisplayName(),
			LastActivity: c.CreatedAt,
			Unread:       UnreadCount(msgs, &c, me, lastRead(c.ID)),
		}
		if n := len(msgs); n > 0 {
			last := msgs[n-1]
			item.LastMessage = &last
			item.LastActivity = last.CreatedAt
		}
		item.Preview = domain.Preview(item.LastMessage)
		if tab.includes(&item) {
			items = append(items, item)
		}
	}

	slices.SortStableFunc(items, func(a, b ChatItem) int {
		if c := b.LastActivity.Compare(a.LastActivity); c != 0 {
			return c
		}
		return strings.Compare(a.Title, b.Title)
	})
	return items
}
