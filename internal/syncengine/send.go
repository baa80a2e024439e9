package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/pkg/validator"
)

var (
	ErrSendFailed          = errors.New("send failed")
	ErrPendingTimeout      = errors.New("send was not confirmed in time")
	ErrUploadFailed        = errors.New("attachment upload failed")
	ErrInvalidMessage      = errors.New("invalid message")
	ErrUnknownConversation = errors.New("unknown conversation")
)

// statusRetention is how long finished sends stay queryable.
const statusRetention = 5 * time.Minute

type SendState int

const (
	SendPending SendState = iota
	SendConfirmed
	SendFailed
)

func (s SendState) String() string {
	switch s {
	case SendPending:
		return "pending"
	case SendConfirmed:
		return "confirmed"
	case SendFailed:
		return "failed"
	}
	return fmt.Sprintf("SendState(%d)", int(s))
}

// OutgoingMessage is what the user asked to send. Kind defaults to the
// attachment kind, or text.
type OutgoingMessage struct {
	Kind       domain.Kind
	Content    string
	Attachment *domain.Attachment
}

// SendStatus tracks one optimistic send, keyed by its provisional id.
type SendStatus struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	ClientKey      string
	State          SendState
	Err            error
	ConfirmedID    uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Send echoes the message locally, then writes it to the backend. An
// attachment is uploaded first; if that fails nothing is echoed. If the
// write fails the echo is withdrawn and the error wraps ErrSendFailed. The
// returned id identifies the send for SendStatus.
func (e *Engine) Send(ctx context.Context, convID uuid.UUID, out OutgoingMessage) (uuid.UUID, error) {
	e.mu.Lock()
	conv, ok := e.conversationLocked(convID)
	e.mu.Unlock()
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrUnknownConversation, convID)
	}

	kind := out.Kind
	if kind == "" {
		kind = domain.KindText
		if out.Attachment != nil {
			kind = out.Attachment.Kind
		}
	}

	var attachmentURL string
	if out.Attachment != nil {
		if e.deps.Uploader == nil {
			return uuid.Nil, fmt.Errorf("%w: no uploader configured", ErrUploadFailed)
		}
		a := *out.Attachment
		a.Kind = kind
		url, err := e.deps.Uploader.Upload(ctx, a)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		attachmentURL = url
	}

	if errs := validator.ValidateMessage(string(kind), out.Content, attachmentURL, ""); errs.HasErrors() {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidMessage, map[string]string(errs))
	}

	now := e.now()
	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       e.me,
		Kind:           kind,
		Content:        out.Content,
		AttachmentURL:  attachmentURL,
		ClientKey:      uuid.NewString(),
		CreatedAt:      now,
		Provisional:    true,
	}
	if other, ok := conv.Counterparty(e.me); ok {
		msg.ReceiverID = &other
	}

	e.mu.Lock()
	e.store.AppendProvisional(AggregateScope, msg)
	if e.focused != nil && e.focused.ID == conv.ID {
		e.store.AppendProvisional(conv.ID, msg)
	}
	e.sends[msg.ID] = &SendStatus{
		ID:             msg.ID,
		ConversationID: conv.ID,
		ClientKey:      msg.ClientKey,
		State:          SendPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	e.metrics.pending.Inc()
	e.mu.Unlock()
	e.notify()

	_, err := e.deps.Messages.Create(ctx, domain.NewMessage{
		ConversationID: msg.ConversationID,
		ReceiverID:     msg.ReceiverID,
		Kind:           msg.Kind,
		Content:        msg.Content,
		AttachmentURL:  msg.AttachmentURL,
		ClientKey:      msg.ClientKey,
	})
	if err != nil {
		e.mu.Lock()
		if s := e.sends[msg.ID]; s != nil && s.State == SendPending {
			e.failLocked(s, err)
		}
		e.mu.Unlock()
		e.notify()
		e.log.Warn("send failed", "conversation", conv.ID, "err", err)
		return msg.ID, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	e.Refresh()
	return msg.ID, nil
}

// SendStatus reports the state of a send started by Send.
func (e *Engine) SendStatus(id uuid.UUID) (SendStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sends[id]
	if !ok {
		return SendStatus{}, false
	}
	return *s, true
}

// failLocked withdraws the provisional echo of s. Other provisional
// messages are left alone.
func (e *Engine) failLocked(s *SendStatus, cause error) {
	id := s.ID
	e.store.RemoveProvisional(func(m *domain.Message) bool { return m.ID == id })
	s.State = SendFailed
	s.Err = cause
	s.UpdatedAt = e.now()
	e.metrics.pending.Dec()
	e.metrics.sends.WithLabelValues(SendFailed.String()).Inc()
}

func (e *Engine) confirmLocked(sups []Supersession) {
	for _, sup := range sups {
		e.metrics.superseded.Inc()
		s := e.sends[sup.Provisional.ID]
		if s == nil || s.State != SendPending {
			continue
		}
		s.State = SendConfirmed
		s.ConfirmedID = sup.Confirmed.ID
		s.UpdatedAt = e.now()
		e.metrics.pending.Dec()
		e.metrics.sends.WithLabelValues(SendConfirmed.String()).Inc()
	}
}

// sweep fails sends that stayed pending past the timeout and forgets
// finished ones.
func (e *Engine) sweep(context.Context) error {
	now := e.now()
	changed := false

	e.mu.Lock()
	for id, s := range e.sends {
		switch {
		case s.State == SendPending:
			if e.cfg.PendingTimeout > 0 && now.Sub(s.CreatedAt) >= e.cfg.PendingTimeout {
				e.failLocked(s, ErrPendingTimeout)
				changed = true
			}
		case now.Sub(s.UpdatedAt) > statusRetention:
			delete(e.sends, id)
		}
	}
	e.mu.Unlock()

	if changed {
		e.notify()
	}
	return nil
}
