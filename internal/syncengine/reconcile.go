package syncengine

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
)

// DefaultTolerance bounds the clock difference between a provisional message
// and the confirmed message that replaces it.
const DefaultTolerance = 10 * time.Second

// Entry is a message held by the store. Seq records the order in which the
// store first saw the message.
type Entry struct {
	Message domain.Message
	Seq     uint64
	// Consumed is set once a confirmed entry has replaced a provisional one,
	// so later merges cannot use it to replace another.
	Consumed bool
}

// Supersession pairs a removed provisional message with the confirmed message
// that replaced it.
type Supersession struct {
	Provisional domain.Message
	Confirmed   domain.Message
}

// Reconciler merges fetched batches into a feed.
type Reconciler struct {
	Tolerance time.Duration
}

// Supersedes reports whether confirmed c stands for provisional p. When both
// carry a client key the keys decide; otherwise route and payload must match
// and the timestamps must lie strictly within the tolerance.
func (r Reconciler) Supersedes(c, p *domain.Message) bool {
	if c.ClientKey != "" && p.ClientKey != "" {
		return c.ClientKey == p.ClientKey
	}
	if !c.SameRoute(p) || !c.SamePayload(p) {
		return false
	}
	dt := c.CreatedAt.Sub(p.CreatedAt)
	if dt < 0 {
		dt = -dt
	}
	return dt < r.Tolerance
}

// Merge returns the feed that results from applying batch to prev. The batch
// is authoritative for confirmed messages: each appears exactly once, and
// confirmed entries missing from it are dropped. Provisional entries survive
// unless a confirmed message first seen after them supersedes them. Merging
// the same batch twice yields the same feed.
func (r Reconciler) Merge(prev []Entry, batch []domain.Message, nextSeq func() uint64) ([]Entry, []Supersession) {
	known := make(map[uuid.UUID]Entry, len(prev))
	var provisional []Entry
	for _, e := range prev {
		if e.Message.Provisional {
			provisional = append(provisional, e)
		} else {
			known[e.Message.ID] = e
		}
	}

	confirmed := make([]Entry, 0, len(batch))
	seen := make(map[uuid.UUID]struct{}, len(batch))
	for _, m := range batch {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		m.Provisional = false

		e, ok := known[m.ID]
		if ok {
			read := e.Message.Read || m.Read
			e.Message = m
			e.Message.Read = read
		} else {
			e = Entry{Message: m, Seq: nextSeq()}
		}
		confirmed = append(confirmed, e)
	}
	sortEntries(confirmed)
	sortEntries(provisional)

	taken := make([]bool, len(provisional))
	var superseded []Supersession
	for i := range confirmed {
		c := &confirmed[i]
		if c.Consumed {
			continue
		}
		for j := range provisional {
			p := &provisional[j]
			if taken[j] || p.Seq > c.Seq || !r.Supersedes(&c.Message, &p.Message) {
				continue
			}
			taken[j] = true
			c.Consumed = true
			superseded = append(superseded, Supersession{Provisional: p.Message, Confirmed: c.Message})
			break
		}
	}

	next := confirmed
	for j, p := range provisional {
		if !taken[j] {
			next = append(next, p)
		}
	}
	sortEntries(next)
	return next, superseded
}

func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := a.Message.CreatedAt.Compare(b.Message.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}
