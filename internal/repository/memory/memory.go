// Package memory implements the repositories in process memory. It backs the
// server when database.driver is "memory" and the service and handler tests.
package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
)

type markerKey struct {
	userID         uuid.UUID
	conversationID uuid.UUID
}

type DB struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]*domain.User
	conversations map[uuid.UUID]*domain.Conversation
	members       map[uuid.UUID]map[uuid.UUID]*domain.ConversationMember // conversationID -> userID -> member
	userIndex     map[uuid.UUID][]uuid.UUID                             // userID -> conversationIDs
	messages      []*domain.Message
	messageIndex  map[uuid.UUID]*domain.Message
	markers       map[markerKey]*domain.ReadMarker
}

func New() *DB {
	return &DB{
		users:         make(map[uuid.UUID]*domain.User),
		conversations: make(map[uuid.UUID]*domain.Conversation),
		members:       make(map[uuid.UUID]map[uuid.UUID]*domain.ConversationMember),
		userIndex:     make(map[uuid.UUID][]uuid.UUID),
		messageIndex:  make(map[uuid.UUID]*domain.Message),
		markers:       make(map[markerKey]*domain.ReadMarker),
	}
}

func (db *DB) isMember(conversationID, userID uuid.UUID) bool {
	_, ok := db.members[conversationID][userID]
	return ok
}
