package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/chatsync/internal/domain"
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

// conversationSelect expects the viewer id as $1.
const conversationSelect = `
	SELECT c.id, c.kind, c.name, c.created_at,
		ARRAY(SELECT cm.user_id FROM conversation_members cm
			WHERE cm.conversation_id = c.id ORDER BY cm.joined_at, cm.user_id) AS members,
		COALESCE((SELECT v.favourite FROM conversation_members v
			WHERE v.conversation_id = c.id AND v.user_id = $1), FALSE) AS favourite
	FROM conversations c`

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO conversations (id, kind, name, created_at) VALUES ($1, $2, $3, $4)`,
			conv.ID, conv.Kind, conv.Name, conv.CreatedAt,
		)
		if err != nil {
			return err
		}
		for _, userID := range conv.Members {
			_, err := tx.Exec(ctx, `
				INSERT INTO conversation_members (conversation_id, user_id, joined_at)
				VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING`,
				conv.ID, userID, conv.CreatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ConversationRepo) GetByID(ctx context.Context, id, viewerID uuid.UUID) (*domain.Conversation, error) {
	return r.scanConversation(ctx, conversationSelect+` WHERE c.id = $2`, viewerID, id)
}

func (r *ConversationRepo) FindDirect(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	query := conversationSelect + `
		WHERE c.kind = 'direct'
			AND EXISTS (SELECT 1 FROM conversation_members x WHERE x.conversation_id = c.id AND x.user_id = $1)
			AND EXISTS (SELECT 1 FROM conversation_members y WHERE y.conversation_id = c.id AND y.user_id = $2)
			AND (SELECT COUNT(*) FROM conversation_members z WHERE z.conversation_id = c.id)
				= CASE WHEN $1 = $2 THEN 1 ELSE 2 END
		LIMIT 1`
	return r.scanConversation(ctx, query, a, b)
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := conversationSelect + `
		WHERE EXISTS (SELECT 1 FROM conversation_members m WHERE m.conversation_id = c.id AND m.user_id = $1)
		ORDER BY c.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.Kind, &c.Name, &c.CreatedAt, &c.Members, &c.Favourite); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (r *ConversationRepo) SetFavourite(ctx context.Context, conversationID, userID uuid.UUID, favourite bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversation_members SET favourite = $1 WHERE conversation_id = $2 AND user_id = $3`,
		favourite, conversationID, userID,
	)
	return err
}

func (r *ConversationRepo) scanConversation(ctx context.Context, query string, args ...any) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.Kind, &c.Name, &c.CreatedAt, &c.Members, &c.Favourite,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
