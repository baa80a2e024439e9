package syncengine

import (
	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
)

// AggregateScope keys the feed holding every conversation the user is in.
var AggregateScope = uuid.Nil

// Store keeps one ordered feed per scope: the aggregate feed and one feed
// per fetched conversation. It is not safe for concurrent use; the Engine
// serializes access.
type Store struct {
	rec   Reconciler
	seq   uint64
	feeds map[uuid.UUID][]Entry
}

func NewStore(rec Reconciler) *Store {
	if rec.Tolerance == 0 {
		rec.Tolerance = DefaultTolerance
	}
	return &Store{rec: rec, feeds: make(map[uuid.UUID][]Entry)}
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// UpsertBatch merges a fetched batch into the scope and returns the new
// snapshot together with the provisional messages it replaced.
func (s *Store) UpsertBatch(scope uuid.UUID, batch []domain.Message) ([]domain.Message, []Supersession) {
	next, superseded := s.rec.Merge(s.feeds[scope], batch, s.nextSeq)
	s.feeds[scope] = next
	return messagesOf(next), superseded
}

// AppendProvisional inserts a locally created message for optimistic echo.
func (s *Store) AppendProvisional(scope uuid.UUID, msg domain.Message) {
	msg.Provisional = true
	feed := append(s.feeds[scope], Entry{Message: msg, Seq: s.nextSeq()})
	sortEntries(feed)
	s.feeds[scope] = feed
}

// RemoveProvisional drops provisional entries matching pred from every scope
// and reports how many were removed.
func (s *Store) RemoveProvisional(pred func(*domain.Message) bool) int {
	removed := 0
	for scope, feed := range s.feeds {
		kept := feed[:0]
		for _, e := range feed {
			if e.Message.Provisional && pred(&e.Message) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		s.feeds[scope] = kept
	}
	return removed
}

// MarkRead sets the read flag on every copy of a confirmed message.
func (s *Store) MarkRead(id uuid.UUID) bool {
	found := false
	for _, feed := range s.feeds {
		for i := range feed {
			if feed[i].Message.ID == id && !feed[i].Message.Provisional {
				feed[i].Message.Read = true
				found = true
			}
		}
	}
	return found
}

// Snapshot returns the scope's messages ordered by creation time, ties
// broken by insertion order.
func (s *Store) Snapshot(scope uuid.UUID) []domain.Message {
	return messagesOf(s.feeds[scope])
}

func (s *Store) Has(scope uuid.UUID) bool {
	_, ok := s.feeds[scope]
	return ok
}

// Drop forgets a scope.
func (s *Store) Drop(scope uuid.UUID) {
	delete(s.feeds, scope)
}

func messagesOf(feed []Entry) []domain.Message {
	out := make([]domain.Message, len(feed))
	for i, e := range feed {
		out[i] = e.Message
	}
	return out
}
