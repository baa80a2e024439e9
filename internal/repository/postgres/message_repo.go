package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/query"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

const messageColumns = `m.id, m.conversation_id, m.sender_id, m.receiver_id, m.kind, m.content,
	m.attachment_url, m.client_key, m.created_at, m.read`

var messageFilterColumns = query.Columns{
	query.FieldConversation: "m.conversation_id",
	query.FieldSender:       "m.sender_id",
	query.FieldReceiver:     "m.receiver_id",
	query.FieldKind:         "m.kind",
	query.FieldCreatedAt:    "m.created_at",
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	insert := `
		INSERT INTO messages AS m (id, conversation_id, sender_id, receiver_id, kind, content,
			attachment_url, client_key, created_at, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)
		ON CONFLICT (sender_id, client_key) WHERE client_key <> '' DO NOTHING
		RETURNING ` + messageColumns

	created, err := scanMessage(r.pool.QueryRow(ctx, insert,
		msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Kind, msg.Content,
		msg.AttachmentURL, msg.ClientKey, msg.CreatedAt,
	))
	if err != nil {
		return nil, err
	}
	if created != nil {
		return created, nil
	}

	// Conflict on the client key: the message was already stored by an earlier attempt.
	existing := `SELECT ` + messageColumns + ` FROM messages m WHERE m.sender_id = $1 AND m.client_key = $2`
	return scanMessage(r.pool.QueryRow(ctx, existing, msg.SenderID, msg.ClientKey))
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages m WHERE m.id = $1`, id))
}

func (r *MessageRepo) List(ctx context.Context, viewerID uuid.UUID, filter query.Expr, order query.Order, limit int) ([]domain.Message, error) {
	where, args, err := filter.SQL(messageFilterColumns, 2)
	if err != nil {
		return nil, err
	}
	orderBy, err := order.SQL(messageFilterColumns)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		SELECT %s
		FROM messages m
		WHERE m.conversation_id IN (SELECT conversation_id FROM conversation_members WHERE user_id = $1)
			AND %s
		ORDER BY %s, m.id`, messageColumns, where, orderBy)
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.pool.Query(ctx, q, append([]any{viewerID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Kind, &m.Content,
			&m.AttachmentURL, &m.ClientKey, &m.CreatedAt, &m.Read,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *MessageRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE messages SET read = TRUE WHERE id = $1`, id)
	return err
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Kind, &m.Content,
		&m.AttachmentURL, &m.ClientKey, &m.CreatedAt, &m.Read,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
