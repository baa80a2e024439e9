// Package syncengine keeps a live, ordered, deduplicated view of a user's
// messages on top of a poll-based backend, with optimistic local echo of
// outgoing messages.
package syncengine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vedran77/chatsync/internal/config"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/logger"
	"github.com/vedran77/chatsync/internal/query"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const sweepInterval = time.Second

// Deps are the engine's collaborators. Uploader may be nil when attachments
// are not used.
type Deps struct {
	Messages      MessageStore
	Conversations ConversationSource
	Markers       MarkerStore
	Uploader      Uploader
	Registerer    prometheus.Registerer
	Now           func() time.Time
}

// Engine drives two polling loops: the aggregate loop keeps every
// conversation's messages for the chat list, and the focused loop keeps the
// open conversation current and its read state up to date. All state sits
// behind one mutex that is never held across a network call.
type Engine struct {
	cfg     config.SyncConfig
	me      uuid.UUID
	deps    Deps
	now     func() time.Time
	limiter *rate.Limiter
	metrics *metrics
	tracker *ReadTracker
	log     *slog.Logger

	aggregate *Loop
	sweeper   *Loop
	changes   chan struct{}

	// openMu serializes Open and CloseConversation.
	openMu sync.Mutex

	mu        sync.Mutex
	store     *Store
	convs     []domain.Conversation
	focused   *domain.Conversation
	focusLoop *Loop
	focusGen  uint64
	aggGen    uint64
	sends     map[uuid.UUID]*SendStatus
}

func New(cfg config.SyncConfig, me uuid.UUID, deps Deps) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	e := &Engine{
		cfg:     cfg,
		me:      me,
		deps:    deps,
		now:     now,
		metrics: newMetrics(deps.Registerer),
		log:     logger.With("component", "syncengine", "user", me),
		changes: make(chan struct{}, 1),
		store:   NewStore(Reconciler{Tolerance: tolerance}),
		sends:   make(map[uuid.UUID]*SendStatus),
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	e.tracker = NewReadTracker(me, deps.Markers, deps.Messages, e.metrics, e.log)
	e.aggregate = NewLoop(e.loopConfig(cfg.AggregateInterval), e.fetchAggregate)
	sweepEvery := sweepInterval
	if cfg.PendingTimeout > 0 && cfg.PendingTimeout/2 < sweepEvery {
		sweepEvery = cfg.PendingTimeout / 2
	}
	e.sweeper = NewLoop(LoopConfig{Interval: sweepEvery}, e.sweep)
	return e
}

func (e *Engine) loopConfig(interval time.Duration) LoopConfig {
	return LoopConfig{
		Interval:   interval,
		MaxBackoff: e.cfg.MaxBackoff,
		Jitter:     e.cfg.Jitter,
		Limiter:    e.limiter,
	}
}

// Start begins aggregate polling and the pending-send sweep.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.aggGen++
	e.mu.Unlock()
	e.aggregate.Start(ctx)
	e.sweeper.Start(ctx)
}

// Stop halts every loop and waits for them to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	focus := e.focusLoop
	e.focusLoop = nil
	e.focusGen++
	e.aggGen++
	e.mu.Unlock()

	if focus != nil {
		focus.Stop()
	}
	e.aggregate.Stop()
	e.sweeper.Stop()
}

// Open focuses a conversation. Its loop fetches immediately, then every
// focused interval, until another conversation is opened or it is closed.
func (e *Engine) Open(ctx context.Context, conv domain.Conversation) {
	e.openMu.Lock()
	defer e.openMu.Unlock()

	if prev, id := e.unfocus(); prev != nil {
		prev.Stop()
		e.tracker.Forget(id)
	}

	// The marker moves on open even if no fetch ever succeeds.
	e.tracker.Advance(conv.ID, e.now())

	loop := NewLoop(e.loopConfig(e.cfg.FocusedInterval), e.fetchFocused)
	e.mu.Lock()
	e.focused = &conv
	e.focusGen++
	e.focusLoop = loop
	e.mu.Unlock()

	loop.Start(ctx)
	e.notify()
}

// CloseConversation stops the focused loop. A fetch still in flight is
// discarded when it returns.
func (e *Engine) CloseConversation() {
	e.openMu.Lock()
	defer e.openMu.Unlock()

	if prev, id := e.unfocus(); prev != nil {
		prev.Stop()
		e.tracker.Forget(id)
	}
	e.notify()
}

// unfocus detaches the focused conversation and returns its loop and id.
func (e *Engine) unfocus() (*Loop, uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	loop := e.focusLoop
	var id uuid.UUID
	if e.focused != nil {
		id = e.focused.ID
		e.store.Drop(id)
	}
	e.focused = nil
	e.focusLoop = nil
	e.focusGen++
	return loop, id
}

// Refresh asks both loops to fetch as soon as they are free.
func (e *Engine) Refresh() {
	e.aggregate.Trigger()
	e.mu.Lock()
	loop := e.focusLoop
	e.mu.Unlock()
	if loop != nil {
		loop.Trigger()
	}
}

// Changes delivers a value after state changes. Bursts of changes are
// merged into one notification.
func (e *Engine) Changes() <-chan struct{} {
	return e.changes
}

func (e *Engine) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

func (e *Engine) fetchAggregate(ctx context.Context) error {
	e.mu.Lock()
	gen := e.aggGen
	e.mu.Unlock()

	var (
		convs   []domain.Conversation
		markers []domain.ReadMarker
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		convs, err = e.deps.Conversations.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		if markers, err = e.deps.Markers.List(gctx); err != nil {
			// Markers only refine group unread counts.
			e.log.Debug("listing read markers failed", "err", err)
			markers = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		e.fetchFailed("aggregate", err)
		return err
	}

	var groups []uuid.UUID
	for _, c := range convs {
		if c.IsGroup() {
			groups = append(groups, c.ID)
		}
	}
	batch, err := e.deps.Messages.List(ctx, query.Aggregate(e.me, groups), query.Newest)
	if err != nil {
		e.fetchFailed("aggregate", err)
		return err
	}

	e.mu.Lock()
	if gen != e.aggGen {
		e.mu.Unlock()
		e.metrics.discarded.WithLabelValues("aggregate").Inc()
		return nil
	}
	e.convs = convs
	e.tracker.Observe(markers)
	_, sups := e.store.UpsertBatch(AggregateScope, batch)
	e.confirmLocked(sups)
	e.mu.Unlock()

	e.metrics.fetches.WithLabelValues("aggregate", "ok").Inc()
	e.notify()
	return nil
}

func (e *Engine) fetchFocused(ctx context.Context) error {
	e.mu.Lock()
	if e.focused == nil {
		e.mu.Unlock()
		return nil
	}
	conv := *e.focused
	gen := e.focusGen
	e.mu.Unlock()

	// Newest first so the backend's page limit drops the oldest messages.
	batch, err := e.deps.Messages.List(ctx, FocusFilter(e.me, &conv), query.Newest)
	if err != nil {
		e.fetchFailed("focused", err)
		e.mu.Lock()
		current := gen == e.focusGen
		e.mu.Unlock()
		if current {
			e.tracker.Touch(ctx, conv.ID, e.now())
		}
		return err
	}

	e.mu.Lock()
	if gen != e.focusGen {
		e.mu.Unlock()
		e.metrics.discarded.WithLabelValues("focused").Inc()
		return nil
	}
	snapshot, sups := e.store.UpsertBatch(conv.ID, batch)
	e.confirmLocked(sups)
	e.mu.Unlock()
	e.metrics.fetches.WithLabelValues("focused", "ok").Inc()
	e.notify()

	marked := e.tracker.MarkConversationOpen(ctx, conv.ID, e.now(), snapshot)
	e.mu.Lock()
	for _, id := range marked {
		e.store.MarkRead(id)
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

func (e *Engine) fetchFailed(scope string, err error) {
	e.metrics.fetches.WithLabelValues(scope, "error").Inc()
	e.log.Debug("fetch failed", "scope", scope, "err", err)
}

// FocusFilter selects the messages of one conversation. Direct
// conversations match on the participant pair in either orientation.
func FocusFilter(me uuid.UUID, conv *domain.Conversation) query.Expr {
	if other, ok := conv.Counterparty(me); ok {
		return query.Participants(me, other)
	}
	return query.EqID(query.FieldConversation, conv.ID)
}

// Messages returns the ordered messages of a conversation, from its focused
// feed when it has one.
func (e *Engine) Messages(conv uuid.UUID) []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store.Has(conv) {
		return e.store.Snapshot(conv)
	}
	var out []domain.Message
	for _, m := range e.store.Snapshot(AggregateScope) {
		if m.ConversationID == conv {
			out = append(out, m)
		}
	}
	return out
}

// Feed returns every message across the user's conversations.
func (e *Engine) Feed() []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot(AggregateScope)
}

// Conversations returns the conversations seen by the last aggregate fetch.
func (e *Engine) Conversations() []domain.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Conversation, len(e.convs))
	copy(out, e.convs)
	return out
}

// Conversation looks up a known conversation, including the focused one.
func (e *Engine) Conversation(id uuid.UUID) (domain.Conversation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversationLocked(id)
}

func (e *Engine) conversationLocked(id uuid.UUID) (domain.Conversation, bool) {
	if e.focused != nil && e.focused.ID == id {
		return *e.focused, true
	}
	for _, c := range e.convs {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Conversation{}, false
}

// Focused returns the open conversation, if any.
func (e *Engine) Focused() (domain.Conversation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.focused == nil {
		return domain.Conversation{}, false
	}
	return *e.focused, true
}
