package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindContact  Kind = "contact"
	KindLocation Kind = "location"
)

var kinds = map[Kind]struct{}{
	KindText:     {},
	KindImage:    {},
	KindVideo:    {},
	KindAudio:    {},
	KindDocument: {},
	KindContact:  {},
	KindLocation: {},
}

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("unknown message kind %q", s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// IsAttachment reports whether messages of this kind carry an uploaded file.
func (k Kind) IsAttachment() bool {
	switch k {
	case KindImage, KindVideo, KindAudio, KindDocument:
		return true
	}
	return false
}

// IsStructured reports whether the content is a JSON-encoded payload.
func (k Kind) IsStructured() bool {
	return k == KindLocation || k == KindContact
}

// Message is a single chat message. Confirmed messages come from the backend;
// provisional ones exist only on the client until the backend echoes them.
type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	ReceiverID     *uuid.UUID `json:"receiver_id,omitempty"`
	Kind           Kind       `json:"kind"`
	Content        string     `json:"content"`
	AttachmentURL  string     `json:"attachment_url,omitempty"`
	ClientKey      string     `json:"client_key,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Read           bool       `json:"read"`
	Provisional    bool       `json:"-"`
}

// AddressedTo reports whether the message has a receiver equal to userID.
func (m *Message) AddressedTo(userID uuid.UUID) bool {
	return m.ReceiverID != nil && *m.ReceiverID == userID
}

// SamePayload reports whether two messages carry identical content.
func (m *Message) SamePayload(o *Message) bool {
	return m.Kind == o.Kind && m.Content == o.Content && m.AttachmentURL == o.AttachmentURL
}

// SameRoute reports whether two messages have the same sender and receiver.
func (m *Message) SameRoute(o *Message) bool {
	if m.SenderID != o.SenderID {
		return false
	}
	switch {
	case m.ReceiverID == nil && o.ReceiverID == nil:
		return m.ConversationID == o.ConversationID
	case m.ReceiverID == nil || o.ReceiverID == nil:
		return false
	}
	return *m.ReceiverID == *o.ReceiverID
}

// NewMessage is the set of fields a client submits when creating a message.
type NewMessage struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	ReceiverID     *uuid.UUID `json:"receiver_id,omitempty"`
	Kind           Kind       `json:"kind"`
	Content        string     `json:"content"`
	AttachmentURL  string     `json:"attachment_url,omitempty"`
	ClientKey      string     `json:"client_key,omitempty"`
}
