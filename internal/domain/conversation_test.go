package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestCounterparty(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	direct := Conversation{Kind: ConversationDirect, Members: []uuid.UUID{a, b}}
	if got, ok := direct.Counterparty(a); !ok || got != b {
		t.Errorf("Counterparty(a) = %v, %v, want %v", got, ok, b)
	}
	if got, ok := direct.Counterparty(b); !ok || got != a {
		t.Errorf("Counterparty(b) = %v, %v, want %v", got, ok, a)
	}
	if _, ok := direct.Counterparty(c); ok {
		t.Error("non-member must not resolve a counterparty")
	}

	self := Conversation{Kind: ConversationDirect, Members: []uuid.UUID{a}}
	if got, ok := self.Counterparty(a); !ok || got != a {
		t.Errorf("self conversation counterparty = %v, %v", got, ok)
	}

	group := Conversation{Kind: ConversationGroup, Members: []uuid.UUID{a, b, c}}
	if _, ok := group.Counterparty(a); ok {
		t.Error("groups have no counterparty")
	}
}

func TestSameRoute(t *testing.T) {
	a, b, conv := uuid.New(), uuid.New(), uuid.New()
	m1 := Message{SenderID: a, ReceiverID: &b, ConversationID: conv}
	m2 := Message{SenderID: a, ReceiverID: &b}
	if !m1.SameRoute(&m2) {
		t.Error("same sender and receiver must match")
	}
	m3 := Message{SenderID: b, ReceiverID: &a}
	if m1.SameRoute(&m3) {
		t.Error("reversed direction must not match")
	}
	g1 := Message{SenderID: a, ConversationID: conv}
	g2 := Message{SenderID: a, ConversationID: conv}
	if !g1.SameRoute(&g2) {
		t.Error("group messages in the same conversation must match")
	}
	if g1.SameRoute(&m1) {
		t.Error("group and direct messages must not match")
	}
}
