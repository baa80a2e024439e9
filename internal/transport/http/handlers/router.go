package handlers

import (
	"net/http"

	"github.com/vedran77/chatsync/internal/transport/http/middleware"
)

// Router holds everything needed to serve the API.
type Router struct {
	Auth          *AuthHandler
	Conversations *ConversationHandler
	Messages      *MessageHandler
	ReadMarkers   *ReadMarkerHandler
	Uploads       *UploadHandler

	Verifier middleware.TokenVerifier
	Limiter  *middleware.RateLimiter
	Metrics  *middleware.HTTPMetrics
}

// Mux registers every route on a new ServeMux.
func (rt *Router) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.Auth(rt.Verifier)

	public := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, rt.instrument(pattern, h))
	}
	protected := func(pattern string, h http.HandlerFunc) {
		var next http.Handler = h
		if rt.Limiter != nil {
			next = rt.Limiter.Middleware(next)
		}
		mux.Handle(pattern, rt.instrument(pattern, auth(next)))
	}

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	public("POST /api/v1/auth/register", rt.Auth.Register)
	public("POST /api/v1/auth/login", rt.Auth.Login)

	// Protected - Account
	protected("GET /api/v1/auth/me", rt.Auth.Me)

	// Protected - Conversations
	protected("GET /api/v1/conversations", rt.Conversations.List)
	protected("POST /api/v1/conversations/direct", rt.Conversations.GetOrCreateDirect)
	protected("POST /api/v1/conversations/groups", rt.Conversations.CreateGroup)
	protected("PUT /api/v1/conversations/direct/favourite", rt.Conversations.SetDirectFavourite)
	protected("PUT /api/v1/conversations/{id}/favourite", rt.Conversations.SetFavourite)

	// Protected - Messages
	protected("POST /api/v1/messages/query", rt.Messages.Query)
	protected("POST /api/v1/messages", rt.Messages.Send)
	protected("PATCH /api/v1/messages/{id}", rt.Messages.Update)

	// Protected - Read markers
	protected("GET /api/v1/read-markers", rt.ReadMarkers.List)
	protected("PUT /api/v1/read-markers/{conversation_id}", rt.ReadMarkers.Touch)

	// Protected - Uploads
	if rt.Uploads != nil {
		protected("POST /api/v1/uploads", rt.Uploads.Upload)
	}

	return mux
}

func (rt *Router) instrument(route string, h http.Handler) http.Handler {
	if rt.Metrics == nil {
		return h
	}
	return rt.Metrics.Wrap(route, h)
}
