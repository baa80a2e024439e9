package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

type Conversation struct {
	ID        uuid.UUID        `json:"id"`
	Kind      ConversationKind `json:"kind"`
	Name      string           `json:"name,omitempty"`
	Members   []uuid.UUID      `json:"members"`
	CreatedAt time.Time        `json:"created_at"`
	// Resolved for the viewing user
	Favourite   bool         `json:"favourite"`
	Counterpart *UserProfile `json:"counterpart,omitempty"`
}

func (c *Conversation) IsGroup() bool {
	return c.Kind == ConversationGroup
}

func (c *Conversation) HasMember(userID uuid.UUID) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Counterparty returns the other member of a direct conversation. For a
// conversation with yourself it returns me.
func (c *Conversation) Counterparty(me uuid.UUID) (uuid.UUID, bool) {
	if c.IsGroup() || !c.HasMember(me) {
		return uuid.Nil, false
	}
	for _, m := range c.Members {
		if m != me {
			return m, true
		}
	}
	return me, true
}

// DisplayName is the group name or the counterpart's display name.
func (c *Conversation) DisplayName() string {
	if c.IsGroup() {
		return c.Name
	}
	if c.Counterpart != nil {
		if c.Counterpart.DisplayName != "" {
			return c.Counterpart.DisplayName
		}
		return c.Counterpart.Username
	}
	return c.ID.String()
}

type ConversationMember struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Favourite      bool      `json:"favourite"`
	JoinedAt       time.Time `json:"joined_at"`
}
