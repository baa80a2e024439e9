package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/query"
)

type Messages struct{ c *Client }

type listMessagesRequest struct {
	Filter query.Expr  `json:"filter"`
	Order  query.Order `json:"order"`
	Limit  int         `json:"limit,omitempty"`
}

func (m *Messages) List(ctx context.Context, filter query.Expr, order query.Order) ([]domain.Message, error) {
	var out []domain.Message
	err := m.c.doJSON(ctx, http.MethodPost, "/api/v1/messages/query", listMessagesRequest{Filter: filter, Order: order}, &out)
	return out, err
}

func (m *Messages) Create(ctx context.Context, msg domain.NewMessage) (*domain.Message, error) {
	var out domain.Message
	if err := m.c.doJSON(ctx, http.MethodPost, "/api/v1/messages", msg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Messages) MarkRead(ctx context.Context, id uuid.UUID) error {
	return m.c.doJSON(ctx, http.MethodPatch, "/api/v1/messages/"+id.String(), map[string]bool{"read": true}, nil)
}

type Conversations struct{ c *Client }

func (cs *Conversations) List(ctx context.Context) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := cs.c.doJSON(ctx, http.MethodGet, "/api/v1/conversations", nil, &out)
	return out, err
}

// Direct returns the direct conversation with userID, creating it if needed.
func (cs *Conversations) Direct(ctx context.Context, userID uuid.UUID) (*domain.Conversation, error) {
	var out domain.Conversation
	if err := cs.c.doJSON(ctx, http.MethodPost, "/api/v1/conversations/direct", map[string]uuid.UUID{"user_id": userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cs *Conversations) CreateGroup(ctx context.Context, name string, members []uuid.UUID) (*domain.Conversation, error) {
	body := struct {
		Name      string      `json:"name"`
		MemberIDs []uuid.UUID `json:"member_ids"`
	}{name, members}
	var out domain.Conversation
	if err := cs.c.doJSON(ctx, http.MethodPost, "/api/v1/conversations/groups", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cs *Conversations) SetFavourite(ctx context.Context, id uuid.UUID, favourite bool) (*domain.Conversation, error) {
	var out domain.Conversation
	if err := cs.c.doJSON(ctx, http.MethodPut, "/api/v1/conversations/"+id.String()+"/favourite", map[string]bool{"favourite": favourite}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cs *Conversations) SetDirectFavourite(ctx context.Context, userID uuid.UUID, favourite bool) (*domain.Conversation, error) {
	body := struct {
		UserID    uuid.UUID `json:"user_id"`
		Favourite bool      `json:"favourite"`
	}{userID, favourite}
	var out domain.Conversation
	if err := cs.c.doJSON(ctx, http.MethodPut, "/api/v1/conversations/direct/favourite", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type ReadMarkers struct{ c *Client }

func (r *ReadMarkers) List(ctx context.Context) ([]domain.ReadMarker, error) {
	var out []domain.ReadMarker
	err := r.c.doJSON(ctx, http.MethodGet, "/api/v1/read-markers", nil, &out)
	return out, err
}

func (r *ReadMarkers) Touch(ctx context.Context, conversationID uuid.UUID, at time.Time) (*domain.ReadMarker, error) {
	var out domain.ReadMarker
	body := map[string]time.Time{"last_read_at": at}
	if err := r.c.doJSON(ctx, http.MethodPut, "/api/v1/read-markers/"+conversationID.String(), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Uploads struct{ c *Client }

// Upload streams the attachment as a multipart form and returns its URL.
func (u *Uploads) Upload(ctx context.Context, a domain.Attachment) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, a))
	}()

	var out struct {
		URL string `json:"url"`
	}
	if err := u.c.do(ctx, http.MethodPost, "/api/v1/uploads", mw.FormDataContentType(), pr, &out); err != nil {
		pr.CloseWithError(err)
		return "", err
	}
	return out.URL, nil
}

func writeUploadForm(mw *multipart.Writer, a domain.Attachment) error {
	if err := mw.WriteField("kind", string(a.Kind)); err != nil {
		return err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, a.Name))
	contentType := a.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(a.Name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, a.Body); err != nil {
		return err
	}
	return mw.Close()
}
