package syncengine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vedran77/chatsync/internal/config"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/query"
)

type harness struct {
	f      *fakeBackend
	e      *Engine
	reg    *prometheus.Registry
	direct domain.Conversation
	group  domain.Conversation
}

func newHarness(t *testing.T, cfg config.SyncConfig) *harness {
	t.Helper()
	f := newFakeBackend(userA)
	direct := domain.Conversation{
		ID: convAB, Kind: domain.ConversationDirect, Members: []uuid.UUID{userA, userB},
		CreatedAt:   t0,
		Counterpart: &domain.UserProfile{ID: userB, Username: "ben", DisplayName: "Ben"},
	}
	group := domain.Conversation{
		ID: uuid.New(), Kind: domain.ConversationGroup, Name: "Trip",
		Members: []uuid.UUID{userA, userB, uuid.New()}, CreatedAt: t0, Favourite: true,
	}
	f.addConversation(direct)
	f.addConversation(group)

	reg := prometheus.NewRegistry()
	deps := f.deps()
	deps.Registerer = reg
	e := New(cfg, userA, deps)
	t.Cleanup(e.Stop)
	return &harness{f: f, e: e, reg: reg, direct: direct, group: group}
}

func (h *harness) has(conv uuid.UUID, pred func(domain.Message) bool) bool {
	for _, m := range h.e.Messages(conv) {
		if pred(m) {
			return true
		}
	}
	return false
}

func (h *harness) status(t *testing.T, id uuid.UUID) SendStatus {
	t.Helper()
	s, ok := h.e.SendStatus(id)
	if !ok {
		t.Fatalf("no status for send %s", id)
	}
	return s
}

func TestFocusFilterIsOrientationIndependent(t *testing.T) {
	conv := &domain.Conversation{ID: convAB, Kind: domain.ConversationDirect, Members: []uuid.UUID{userA, userB}}
	stranger := uuid.New()

	out := confirmed("out", t0)
	in := inbound("in", t0)
	unrelated := domain.Message{ID: uuid.New(), SenderID: userB, ReceiverID: &stranger}

	for _, me := range []uuid.UUID{userA, userB} {
		filter := FocusFilter(me, conv)
		if !filter.MatchMessage(&out) || !filter.MatchMessage(&in) {
			t.Fatalf("filter for %s missed a direction", me)
		}
		if filter.MatchMessage(&unrelated) {
			t.Fatal("filter matched a message to a third user")
		}
	}

	group := &domain.Conversation{ID: uuid.New(), Kind: domain.ConversationGroup, Members: []uuid.UUID{userA, userB}}
	if got := FocusFilter(userA, group); got.Op != query.OpEq || got.Field != query.FieldConversation {
		t.Fatalf("group filter = %+v", got)
	}
}

func TestAggregateFeedsChatList(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	h.f.deliver(inbound("hello", t0.Add(time.Minute)))
	h.f.deliver(domain.Message{
		ID: uuid.New(), ConversationID: h.group.ID, SenderID: userB,
		Kind: domain.KindLocation, Content: `{"latitude":1,"longitude":2}`, CreatedAt: t0.Add(2 * time.Minute),
	})

	h.e.Start(context.Background())
	waitFor(t, "aggregate fetch", func() bool { return len(h.e.Feed()) == 2 })

	items := h.e.ChatList(TabAll)
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	if items[0].Conversation.ID != h.group.ID || items[0].Preview != "📍 Location" || items[0].Unread != 1 {
		t.Fatalf("first item = %+v", items[0])
	}
	if items[1].Title != "Ben" || items[1].Preview != "hello" || items[1].Unread != 1 {
		t.Fatalf("second item = %+v", items[1])
	}
	if got := h.e.TotalUnread(); got != 2 {
		t.Fatalf("total unread = %d", got)
	}

	tabs := map[Tab]int{TabAll: 2, TabUnread: 2, TabFavourites: 1, TabGroups: 1, TabDirect: 1}
	for tab, want := range tabs {
		if got := len(h.e.ChatList(tab)); got != want {
			t.Errorf("tab %s: %d items, want %d", tab, got, want)
		}
	}
}

func TestOpenMarksInboundReadOnce(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	msg := inbound("hello", t0)
	h.f.deliver(msg)

	ctx := context.Background()
	h.e.Start(ctx)
	h.e.Open(ctx, h.direct)
	waitFor(t, "read flag", func() bool {
		return h.has(convAB, func(m domain.Message) bool { return m.ID == msg.ID && m.Read })
	})

	// Let a few more focused ticks run, then reopen.
	time.Sleep(60 * time.Millisecond)
	h.e.Open(ctx, h.direct)
	time.Sleep(60 * time.Millisecond)

	if n := h.f.markReadCount(msg.ID); n != 1 {
		t.Fatalf("message marked read %d times, want 1", n)
	}
	waitFor(t, "unread cleared", func() bool { return h.e.TotalUnread() == 0 })
}

func TestOpenFollowsNewestPastPageLimit(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	const total, limit = 600, 500
	var newest domain.Message
	for i := 0; i < total; i++ {
		newest = inbound("msg", t0.Add(time.Duration(i)*time.Second))
		h.f.deliver(newest)
	}
	h.f.set(func(f *fakeBackend) { f.limit = limit })

	ctx := context.Background()
	h.e.Open(ctx, h.direct)
	waitFor(t, "newest message", func() bool {
		return h.has(convAB, func(m domain.Message) bool { return m.ID == newest.ID })
	})
	waitFor(t, "newest marked read", func() bool { return h.f.markReadCount(newest.ID) == 1 })

	msgs := h.e.Messages(convAB)
	if len(msgs) != limit {
		t.Fatalf("feed has %d messages, want %d", len(msgs), limit)
	}
	if !msgs[len(msgs)-1].CreatedAt.Equal(newest.CreatedAt) || !msgs[0].CreatedAt.Equal(t0.Add((total-limit)*time.Second)) {
		t.Fatalf("feed spans %v..%v", msgs[0].CreatedAt, msgs[len(msgs)-1].CreatedAt)
	}

	reply, err := h.e.Send(ctx, convAB, OutgoingMessage{Content: "caught up"})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "confirmation", func() bool { return h.status(t, reply).State == SendConfirmed })
}

func TestOpenMovesMarkerWhenFetchFails(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	h.f.set(func(f *fakeBackend) { f.listErr = errBackend })

	before := time.Now()
	h.e.Open(context.Background(), h.group)
	if got := h.e.tracker.LastRead(h.group.ID); got.Before(before) {
		t.Fatalf("local marker = %v after open", got)
	}
	waitFor(t, "remote marker", func() bool {
		var ok bool
		h.f.set(func(f *fakeBackend) { _, ok = f.markers[h.group.ID] })
		return ok
	})
	if got := counterValue(t, h.reg, "chatsync_sync_fetch_total", map[string]string{"scope": "focused", "result": "error"}); got == 0 {
		t.Fatal("focused fetch did not fail")
	}
}

func TestOpenGroupClearsUnreadThroughMarker(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	h.f.deliver(domain.Message{
		ID: uuid.New(), ConversationID: h.group.ID, SenderID: userB,
		Kind: domain.KindText, Content: "hey all", CreatedAt: time.Now().Add(-time.Minute),
	})

	ctx := context.Background()
	h.e.Start(ctx)
	waitFor(t, "group unread", func() bool { return h.e.TotalUnread() == 1 })

	h.e.Open(ctx, h.group)
	waitFor(t, "group read", func() bool { return h.e.TotalUnread() == 0 })
}

func TestSendConfirms(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	ctx := context.Background()
	h.e.Start(ctx)
	h.e.Open(ctx, h.direct)
	waitFor(t, "conversations", func() bool { return len(h.e.Conversations()) == 2 })

	id, err := h.e.Send(ctx, convAB, OutgoingMessage{Content: "hi"})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, "confirmation", func() bool { return h.status(t, id).State == SendConfirmed })
	waitFor(t, "provisional gone", func() bool {
		return !h.has(convAB, func(m domain.Message) bool { return m.Provisional }) &&
			!h.has(AggregateScope, func(m domain.Message) bool { return m.Provisional })
	})

	var count int
	for _, m := range h.e.Messages(convAB) {
		if m.Content == "hi" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("message appears %d times", count)
	}
	if h.status(t, id).ConfirmedID == uuid.Nil {
		t.Fatal("confirmed id not recorded")
	}
	if got := counterValue(t, h.reg, "chatsync_sync_sends_total", map[string]string{"state": "confirmed"}); got != 1 {
		t.Fatalf("confirmed sends metric = %v", got)
	}
}

func TestSendShowsProvisionalImmediately(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	ctx := context.Background()

	// The engine is never started, so only the focused loop runs.
	h.e.Open(ctx, h.group)
	h.f.set(func(f *fakeBackend) { f.dropCreate = true })

	id, err := h.e.Send(ctx, h.group.ID, OutgoingMessage{Content: "echo"})
	if err != nil {
		t.Fatal(err)
	}
	if !h.has(h.group.ID, func(m domain.Message) bool { return m.ID == id && m.Provisional && m.ReceiverID == nil }) {
		t.Fatal("provisional echo missing from the focused conversation")
	}
	if h.status(t, id).State != SendPending {
		t.Fatal("send should stay pending until the backend echoes it")
	}
}

func TestSendFailureRemovesOnlyItsProvisional(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	ctx := context.Background()
	h.e.Open(ctx, h.direct)
	h.f.set(func(f *fakeBackend) { f.dropCreate = true })

	keep, err := h.e.Send(ctx, convAB, OutgoingMessage{Content: "keep"})
	if err != nil {
		t.Fatal(err)
	}

	h.f.set(func(f *fakeBackend) { f.createErr = errBackend })
	failed, err := h.e.Send(ctx, convAB, OutgoingMessage{Content: "boom"})
	if !errors.Is(err, ErrSendFailed) || !errors.Is(err, errBackend) {
		t.Fatalf("err = %v", err)
	}

	if s := h.status(t, failed); s.State != SendFailed || !errors.Is(s.Err, errBackend) {
		t.Fatalf("failed status = %+v", s)
	}
	if h.has(convAB, func(m domain.Message) bool { return m.ID == failed }) {
		t.Fatal("failed provisional still shown")
	}
	if !h.has(convAB, func(m domain.Message) bool { return m.ID == keep }) {
		t.Fatal("unrelated provisional was removed")
	}
}

func TestUploadFailureCreatesNoProvisional(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	ctx := context.Background()
	h.e.Open(ctx, h.direct)
	h.f.set(func(f *fakeBackend) { f.uploadErr = errBackend })

	_, err := h.e.Send(ctx, convAB, OutgoingMessage{Attachment: &domain.Attachment{
		Name: "cat.png", Kind: domain.KindImage, Body: strings.NewReader("png"),
	}})
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v", err)
	}
	if h.has(convAB, func(m domain.Message) bool { return m.Provisional }) {
		t.Fatal("provisional created despite the failed upload")
	}
}

func TestSendAttachment(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	ctx := context.Background()
	h.e.Start(ctx)
	h.e.Open(ctx, h.direct)

	id, err := h.e.Send(ctx, convAB, OutgoingMessage{Attachment: &domain.Attachment{
		Name: "cat.png", Kind: domain.KindImage, Body: strings.NewReader("png"),
	}})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "confirmation", func() bool { return h.status(t, id).State == SendConfirmed })
	if !h.has(convAB, func(m domain.Message) bool {
		return m.Kind == domain.KindImage && m.AttachmentURL == "https://files.example.com/image/cat.png"
	}) {
		t.Fatal("attachment message missing")
	}
}

func TestSendValidatesBeforeEcho(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	h.e.Open(context.Background(), h.direct)

	if _, err := h.e.Send(context.Background(), convAB, OutgoingMessage{Content: "   "}); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("err = %v", err)
	}
	if _, err := h.e.Send(context.Background(), uuid.New(), OutgoingMessage{Content: "x"}); !errors.Is(err, ErrUnknownConversation) {
		t.Fatalf("err = %v", err)
	}
}

func TestPendingTimeout(t *testing.T) {
	cfg := testSyncConfig()
	cfg.PendingTimeout = 50 * time.Millisecond
	h := newHarness(t, cfg)
	ctx := context.Background()
	h.e.Start(ctx)
	h.e.Open(ctx, h.direct)
	h.f.set(func(f *fakeBackend) { f.dropCreate = true })

	id, err := h.e.Send(ctx, convAB, OutgoingMessage{Content: "lost"})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "timeout", func() bool { return h.status(t, id).State == SendFailed })
	if s := h.status(t, id); !errors.Is(s.Err, ErrPendingTimeout) {
		t.Fatalf("err = %v", s.Err)
	}
	if h.has(convAB, func(m domain.Message) bool { return m.ID == id }) {
		t.Fatal("timed out provisional still shown")
	}
}

func TestStaleFocusedFetchIsDiscarded(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	ctx := context.Background()
	msg := inbound("hello", t0)
	h.f.deliver(msg)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.f.set(func(f *fakeBackend) {
		f.beforeList = func(ctx context.Context) {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	})

	h.e.Open(ctx, h.direct)
	<-entered

	closed := make(chan struct{})
	go func() {
		h.e.CloseConversation()
		close(closed)
	}()
	waitFor(t, "unfocus", func() bool { _, ok := h.e.Focused(); return !ok })
	close(release)
	<-closed

	if got := counterValue(t, h.reg, "chatsync_sync_fetch_discarded_total", map[string]string{"scope": "focused"}); got != 1 {
		t.Fatalf("discarded = %v, want 1", got)
	}
	if len(h.e.Messages(convAB)) != 0 {
		t.Fatal("stale result was applied")
	}
	if h.f.markReadCount(msg.ID) != 0 {
		t.Fatal("stale result drove read tracking")
	}
}

func TestFetchErrorKeepsState(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	h.f.deliver(inbound("hello", t0))
	ctx := context.Background()
	h.e.Start(ctx)
	waitFor(t, "first fetch", func() bool { return len(h.e.Feed()) == 1 })

	h.f.set(func(f *fakeBackend) { f.listErr = errBackend })
	waitFor(t, "failed fetch", func() bool {
		return counterValue(t, h.reg, "chatsync_sync_fetch_total", map[string]string{"scope": "aggregate", "result": "error"}) > 0
	})
	if len(h.e.Feed()) != 1 || len(h.e.Conversations()) != 2 {
		t.Fatal("fetch error changed local state")
	}

	h.f.set(func(f *fakeBackend) { f.listErr = nil })
	h.f.deliver(inbound("again", t0.Add(time.Second)))
	h.e.Refresh()
	waitFor(t, "recovery", func() bool { return len(h.e.Feed()) == 2 })
}

func TestChangesCoalesce(t *testing.T) {
	h := newHarness(t, testSyncConfig())
	for i := 0; i < 10; i++ {
		h.e.notify()
	}
	<-h.e.Changes()
	select {
	case <-h.e.Changes():
		t.Fatal("notifications were not merged")
	default:
	}
}
