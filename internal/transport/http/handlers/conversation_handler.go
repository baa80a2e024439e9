package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/service"
	"github.com/vedran77/chatsync/internal/transport/http/middleware"
	"github.com/vedran77/chatsync/pkg/validator"
)

type ConversationHandler struct {
	convService *service.ConversationService
}

func NewConversationHandler(convService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convService: convService}
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	convs, err := h.convService.List(r.Context(), userID)
	if err != nil {
		writeInternal(w, "list conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, convs)
}

type directInput struct {
	UserID uuid.UUID `json:"user_id"`
}

func (h *ConversationHandler) GetOrCreateDirect(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input directInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER", "user_id is required")
		return
	}

	conv, err := h.convService.GetOrCreateDirect(r.Context(), userID, input.UserID)
	if err != nil {
		h.writeServiceError(w, "direct conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateGroupInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateGroup(input.Name, len(input.MemberIDs)); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	conv, err := h.convService.CreateGroup(r.Context(), userID, input)
	if err != nil {
		h.writeServiceError(w, "create group", err)
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

type favouriteInput struct {
	Favourite bool      `json:"favourite"`
	UserID    uuid.UUID `json:"user_id,omitempty"`
}

func (h *ConversationHandler) SetFavourite(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	var input favouriteInput
	if !decodeJSON(w, r, &input) {
		return
	}

	conv, err := h.convService.SetFavourite(r.Context(), userID, convID, input.Favourite)
	if err != nil {
		h.writeServiceError(w, "set favourite", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// SetDirectFavourite flags the direct conversation with another user,
// creating it when it does not exist yet.
func (h *ConversationHandler) SetDirectFavourite(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input favouriteInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER", "user_id is required")
		return
	}

	conv, err := h.convService.SetDirectFavourite(r.Context(), userID, input.UserID, input.Favourite)
	if err != nil {
		h.writeServiceError(w, "set direct favourite", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a member of this conversation")
	case errors.Is(err, service.ErrGroupTooSmall):
		writeError(w, http.StatusBadRequest, "GROUP_TOO_SMALL", "A group needs at least two members")
	default:
		writeInternal(w, op, err)
	}
}
