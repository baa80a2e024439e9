package syncengine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
)

// ReadTracker owns the user's read markers and the read flags of inbound
// direct messages.
type ReadTracker struct {
	me       uuid.UUID
	markers  MarkerStore
	messages MessageStore
	metrics  *metrics
	log      *slog.Logger

	mu   sync.Mutex
	last map[uuid.UUID]time.Time
	// issued maps message ids whose read update is in flight or has
	// succeeded to their conversation. Failed ids are removed so the next
	// call retries them; ids seen read are pruned.
	issued map[uuid.UUID]uuid.UUID
}

func NewReadTracker(me uuid.UUID, markers MarkerStore, messages MessageStore, m *metrics, log *slog.Logger) *ReadTracker {
	return &ReadTracker{
		me:       me,
		markers:  markers,
		messages: messages,
		metrics:  m,
		log:      log,
		last:     make(map[uuid.UUID]time.Time),
		issued:   make(map[uuid.UUID]uuid.UUID),
	}
}

// LastRead returns the local marker for a conversation, zero if the user has
// never opened it.
func (t *ReadTracker) LastRead(conv uuid.UUID) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last[conv]
}

// Observe folds markers fetched from the backend into the local ones.
func (t *ReadTracker) Observe(markers []domain.ReadMarker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range markers {
		if m.UserID != t.me {
			continue
		}
		t.advance(m.ConversationID, m.LastReadAt)
	}
}

// Advance moves the local marker for conv to at unless it is already later.
func (t *ReadTracker) Advance(conv uuid.UUID, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance(conv, at)
}

// Forget drops the issued read updates of conv. Callers must make sure no
// MarkConversationOpen for conv is running.
func (t *ReadTracker) Forget(conv uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, c := range t.issued {
		if c == conv {
			delete(t.issued, id)
		}
	}
}

// Touch writes the marker for conv to the backend. Failures are logged and
// counted only.
func (t *ReadTracker) Touch(ctx context.Context, conv uuid.UUID, at time.Time) {
	if _, err := t.markers.Touch(ctx, conv, at); err != nil {
		t.metrics.readUpdates.WithLabelValues("marker_error").Inc()
		t.log.Debug("read marker update failed", "conversation", conv, "err", err)
		return
	}
	t.metrics.readUpdates.WithLabelValues("marker_ok").Inc()
}

func (t *ReadTracker) advance(conv uuid.UUID, at time.Time) {
	if at.After(t.last[conv]) {
		t.last[conv] = at
	}
}

// MarkConversationOpen moves the marker for conv to now and marks every
// inbound unread message in msgs read. The local marker always advances; the
// backend update is best effort and retried on the next call. It returns the
// ids the backend accepted, which the caller mirrors into its store.
func (t *ReadTracker) MarkConversationOpen(ctx context.Context, conv uuid.UUID, now time.Time, msgs []domain.Message) []uuid.UUID {
	t.mu.Lock()
	t.advance(conv, now)
	var pending []uuid.UUID
	for i := range msgs {
		m := &msgs[i]
		if m.ConversationID != conv {
			continue
		}
		if m.Read {
			delete(t.issued, m.ID)
			continue
		}
		if !t.isUnreadInbound(m) {
			continue
		}
		if _, ok := t.issued[m.ID]; ok {
			continue
		}
		t.issued[m.ID] = conv
		pending = append(pending, m.ID)
	}
	t.mu.Unlock()

	t.Touch(ctx, conv, now)

	var marked []uuid.UUID
	for _, id := range pending {
		if err := t.messages.MarkRead(ctx, id); err != nil {
			t.mu.Lock()
			delete(t.issued, id)
			t.mu.Unlock()
			t.metrics.readUpdates.WithLabelValues("message_error").Inc()
			t.log.Debug("mark read failed", "message", id, "err", err)
			continue
		}
		t.metrics.readUpdates.WithLabelValues("message_ok").Inc()
		marked = append(marked, id)
	}
	return marked
}

func (t *ReadTracker) isUnreadInbound(m *domain.Message) bool {
	return m.AddressedTo(t.me) && !m.Read && !m.Provisional
}

// UnreadCount counts the unread messages of conv in msgs. Direct messages use
// their read flag. Group messages have no receiver, so they count when they
// are newer than lastReadAt and not sent by me. Provisional messages never
// count.
func UnreadCount(msgs []domain.Message, conv *domain.Conversation, me uuid.UUID, lastReadAt time.Time) int {
	n := 0
	for i := range msgs {
		m := &msgs[i]
		if m.ConversationID != conv.ID || m.Provisional {
			continue
		}
		if conv.IsGroup() {
			if m.SenderID != me && m.CreatedAt.After(lastReadAt) {
				n++
			}
			continue
		}
		if m.AddressedTo(me) && !m.Read {
			n++
		}
	}
	return n
}
