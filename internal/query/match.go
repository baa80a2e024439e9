package query

import (
	"github.com/vedran77/chatsync/internal/domain"
)

// Lookup returns the values a document holds for a field. Absent fields
// return nil.
type Lookup func(Field) []string

func (e Expr) Match(lookup Lookup) bool {
	switch e.Op {
	case OpAnd:
		for _, a := range e.Args {
			if !a.Match(lookup) {
				return false
			}
		}
		return true
	case OpOr:
		for _, a := range e.Args {
			if a.Match(lookup) {
				return true
			}
		}
		return false
	case OpEq, OpContains:
		for _, v := range lookup(e.Field) {
			if v == e.Value {
				return true
			}
		}
		return false
	case OpIn:
		for _, v := range lookup(e.Field) {
			for _, want := range e.Values {
				if v == want {
					return true
				}
			}
		}
		return false
	}
	return false
}

func (e Expr) MatchMessage(m *domain.Message) bool {
	return e.Match(MessageFields(m))
}

func (e Expr) MatchConversation(c *domain.Conversation) bool {
	return e.Match(ConversationFields(c))
}

func MessageFields(m *domain.Message) Lookup {
	return func(f Field) []string {
		switch f {
		case FieldConversation:
			return []string{m.ConversationID.String()}
		case FieldSender:
			return []string{m.SenderID.String()}
		case FieldReceiver:
			if m.ReceiverID == nil {
				return nil
			}
			return []string{m.ReceiverID.String()}
		case FieldKind:
			return []string{string(m.Kind)}
		}
		return nil
	}
}

func ConversationFields(c *domain.Conversation) Lookup {
	return func(f Field) []string {
		switch f {
		case FieldConversation:
			return []string{c.ID.String()}
		case FieldMembers:
			out := make([]string, len(c.Members))
			for i, m := range c.Members {
				out[i] = m.String()
			}
			return out
		}
		return nil
	}
}
