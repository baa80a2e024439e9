package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/service"
	"github.com/vedran77/chatsync/internal/transport/http/middleware"
)

type ReadMarkerHandler struct {
	markerService *service.ReadMarkerService
}

func NewReadMarkerHandler(markerService *service.ReadMarkerService) *ReadMarkerHandler {
	return &ReadMarkerHandler{markerService: markerService}
}

func (h *ReadMarkerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	markers, err := h.markerService.List(r.Context(), userID)
	if err != nil {
		writeInternal(w, "list read markers", err)
		return
	}

	writeJSON(w, http.StatusOK, markers)
}

type touchInput struct {
	LastReadAt time.Time `json:"last_read_at"`
}

// Touch moves the caller's read marker for a conversation forward. A zero
// timestamp means now.
func (h *ReadMarkerHandler) Touch(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("conversation_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	var input touchInput
	if r.ContentLength > 0 && !decodeJSON(w, r, &input) {
		return
	}

	marker, err := h.markerService.Touch(r.Context(), userID, convID, input.LastReadAt)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
		case errors.Is(err, service.ErrNotParticipant):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a member of this conversation")
		default:
			writeInternal(w, "touch read marker", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, marker)
}
