package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/query"
	"github.com/vedran77/chatsync/internal/service"
	"github.com/vedran77/chatsync/internal/transport/http/middleware"
	"github.com/vedran77/chatsync/pkg/validator"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// Query lists the messages matching a filter expression.
func (h *MessageHandler) Query(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.ListMessagesInput
	if !decodeJSON(w, r, &input) {
		return
	}

	messages, err := h.messageService.List(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, query.ErrInvalidFilter), errors.Is(err, query.ErrInvalidOrder):
			writeError(w, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		default:
			writeInternal(w, "query messages", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input domain.NewMessage
	if !decodeJSON(w, r, &input) {
		return
	}

	errs := validator.ValidateMessage(string(input.Kind), input.Content, input.AttachmentURL, input.ClientKey)
	if input.ConversationID == uuid.Nil {
		errs.Add("conversation_id", "Conversation is required")
	}
	if errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messageService.Send(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
		case errors.Is(err, service.ErrNotParticipant):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a member of this conversation")
		default:
			writeInternal(w, "send message", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

type updateMessageInput struct {
	Read *bool `json:"read"`
}

// Update applies a partial update to a message. Only setting read to true is
// supported.
func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	var input updateMessageInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.Read == nil || !*input.Read {
		writeError(w, http.StatusBadRequest, "UNSUPPORTED_UPDATE", "Only {\"read\": true} is supported")
		return
	}

	msg, err := h.messageService.MarkRead(r.Context(), userID, messageID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
		case errors.Is(err, service.ErrNotReceiver):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the receiver can mark a message read")
		default:
			writeInternal(w, "mark read", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, msg)
}
