package syncengine

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vedran77/chatsync/internal/config"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/query"
)

var errBackend = errors.New("backend unavailable")

// fakeBackend is an in-memory stand-in for the chat backend as seen by one
// user.
type fakeBackend struct {
	me uuid.UUID

	mu        sync.Mutex
	convs     []domain.Conversation
	msgs      []domain.Message
	markers   map[uuid.UUID]domain.ReadMarker
	markReads map[uuid.UUID]int
	lists     int

	listErr    error
	createErr  error
	markErr    error
	touchErr   error
	uploadErr  error
	dropCreate bool
	// limit caps List results after ordering, like the backend's page size.
	limit int
	// beforeList runs outside the lock on every message List call.
	beforeList func(ctx context.Context)
}

func newFakeBackend(me uuid.UUID) *fakeBackend {
	return &fakeBackend{
		me:        me,
		markers:   make(map[uuid.UUID]domain.ReadMarker),
		markReads: make(map[uuid.UUID]int),
	}
}

func (f *fakeBackend) deps() Deps {
	return Deps{
		Messages:      fakeMessages{f},
		Conversations: fakeConversations{f},
		Markers:       fakeMarkers{f},
		Uploader:      fakeUploader{f},
	}
}

func (f *fakeBackend) addConversation(c domain.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs = append(f.convs, c)
}

func (f *fakeBackend) deliver(m domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeBackend) markReadCount(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markReads[id]
}

type fakeMessages struct{ f *fakeBackend }

func (m fakeMessages) List(ctx context.Context, filter query.Expr, order query.Order) ([]domain.Message, error) {
	m.f.mu.Lock()
	hook := m.f.beforeList
	m.f.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}

	m.f.mu.Lock()
	defer m.f.mu.Unlock()
	m.f.lists++
	if m.f.listErr != nil {
		return nil, m.f.listErr
	}
	var out []domain.Message
	for _, msg := range m.f.msgs {
		if filter.MatchMessage(&msg) {
			out = append(out, msg)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Message) int {
		if order.Desc {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if m.f.limit > 0 && len(out) > m.f.limit {
		out = out[:m.f.limit]
	}
	return out, nil
}

func (m fakeMessages) Create(ctx context.Context, in domain.NewMessage) (*domain.Message, error) {
	m.f.mu.Lock()
	defer m.f.mu.Unlock()
	if m.f.createErr != nil {
		return nil, m.f.createErr
	}
	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		SenderID:       m.f.me,
		ReceiverID:     in.ReceiverID,
		Kind:           in.Kind,
		Content:        in.Content,
		AttachmentURL:  in.AttachmentURL,
		ClientKey:      in.ClientKey,
		CreatedAt:      time.Now().Add(2 * time.Second),
	}
	if !m.f.dropCreate {
		m.f.msgs = append(m.f.msgs, msg)
	}
	return &msg, nil
}

func (m fakeMessages) MarkRead(ctx context.Context, id uuid.UUID) error {
	m.f.mu.Lock()
	defer m.f.mu.Unlock()
	if m.f.markErr != nil {
		return m.f.markErr
	}
	m.f.markReads[id]++
	for i := range m.f.msgs {
		if m.f.msgs[i].ID == id {
			m.f.msgs[i].Read = true
		}
	}
	return nil
}

type fakeConversations struct{ f *fakeBackend }

func (c fakeConversations) List(ctx context.Context) ([]domain.Conversation, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if c.f.listErr != nil {
		return nil, c.f.listErr
	}
	return slices.Clone(c.f.convs), nil
}

type fakeMarkers struct{ f *fakeBackend }

func (mk fakeMarkers) Touch(ctx context.Context, conv uuid.UUID, at time.Time) (*domain.ReadMarker, error) {
	mk.f.mu.Lock()
	defer mk.f.mu.Unlock()
	if mk.f.touchErr != nil {
		return nil, mk.f.touchErr
	}
	cur := mk.f.markers[conv]
	if at.After(cur.LastReadAt) {
		cur = domain.ReadMarker{UserID: mk.f.me, ConversationID: conv, LastReadAt: at}
		mk.f.markers[conv] = cur
	}
	return &cur, nil
}

func (mk fakeMarkers) List(ctx context.Context) ([]domain.ReadMarker, error) {
	mk.f.mu.Lock()
	defer mk.f.mu.Unlock()
	out := make([]domain.ReadMarker, 0, len(mk.f.markers))
	for _, m := range mk.f.markers {
		out = append(out, m)
	}
	return out, nil
}

type fakeUploader struct{ f *fakeBackend }

func (u fakeUploader) Upload(ctx context.Context, a domain.Attachment) (string, error) {
	u.f.mu.Lock()
	defer u.f.mu.Unlock()
	if u.f.uploadErr != nil {
		return "", u.f.uploadErr
	}
	return "https://files.example.com/" + string(a.Kind) + "/" + a.Name, nil
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		AggregateInterval: 20 * time.Millisecond,
		FocusedInterval:   20 * time.Millisecond,
		Tolerance:         DefaultTolerance,
		MaxBackoff:        100 * time.Millisecond,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if want, ok := labels[l.GetName()]; ok && want != l.GetValue() {
					continue metrics
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}
