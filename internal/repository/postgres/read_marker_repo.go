package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/chatsync/internal/domain"
)

type ReadMarkerRepo struct {
	pool *pgxpool.Pool
}

func NewReadMarkerRepo(pool *pgxpool.Pool) *ReadMarkerRepo {
	return &ReadMarkerRepo{pool: pool}
}

func (r *ReadMarkerRepo) Upsert(ctx context.Context, marker *domain.ReadMarker) (*domain.ReadMarker, error) {
	query := `
		INSERT INTO read_markers (user_id, conversation_id, last_read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, conversation_id)
		DO UPDATE SET last_read_at = GREATEST(read_markers.last_read_at, EXCLUDED.last_read_at)
		RETURNING user_id, conversation_id, last_read_at`

	var m domain.ReadMarker
	err := r.pool.QueryRow(ctx, query, marker.UserID, marker.ConversationID, marker.LastReadAt).
		Scan(&m.UserID, &m.ConversationID, &m.LastReadAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ReadMarkerRepo) Get(ctx context.Context, userID, conversationID uuid.UUID) (*domain.ReadMarker, error) {
	var m domain.ReadMarker
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, conversation_id, last_read_at FROM read_markers WHERE user_id = $1 AND conversation_id = $2`,
		userID, conversationID,
	).Scan(&m.UserID, &m.ConversationID, &m.LastReadAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ReadMarkerRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.ReadMarker, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, conversation_id, last_read_at FROM read_markers WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markers []domain.ReadMarker
	for rows.Next() {
		var m domain.ReadMarker
		if err := rows.Scan(&m.UserID, &m.ConversationID, &m.LastReadAt); err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}
	return markers, rows.Err()
}
