package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []struct {
	name string
	sql  string
}{
	{"users", `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		username VARCHAR(50) UNIQUE NOT NULL,
		display_name VARCHAR(100) NOT NULL,
		password_hash TEXT NOT NULL,
		avatar_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"conversations", `
	CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY,
		kind VARCHAR(16) NOT NULL CHECK (kind IN ('direct', 'group')),
		name VARCHAR(100) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"conversation_members", `
	CREATE TABLE IF NOT EXISTS conversation_members (
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		favourite BOOLEAN NOT NULL DEFAULT FALSE,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (conversation_id, user_id)
	)`},
	{"conversation_members_user_idx", `
	CREATE INDEX IF NOT EXISTS conversation_members_user_idx ON conversation_members (user_id)`},
	{"messages", `
	CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id UUID NOT NULL REFERENCES users(id),
		receiver_id UUID REFERENCES users(id),
		kind VARCHAR(16) NOT NULL CHECK (kind IN ('text', 'image', 'video', 'audio', 'document', 'contact', 'location')),
		content TEXT NOT NULL DEFAULT '',
		attachment_url TEXT NOT NULL DEFAULT '',
		client_key VARCHAR(64) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		read BOOLEAN NOT NULL DEFAULT FALSE
	)`},
	{"messages_conversation_idx", `
	CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at)`},
	{"messages_participants_idx", `
	CREATE INDEX IF NOT EXISTS messages_participants_idx ON messages (sender_id, receiver_id, created_at)`},
	{"messages_client_key_idx", `
	CREATE UNIQUE INDEX IF NOT EXISTS messages_client_key_idx ON messages (sender_id, client_key) WHERE client_key <> ''`},
	{"read_markers", `
	CREATE TABLE IF NOT EXISTS read_markers (
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		last_read_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, conversation_id)
	)`},
}

// Migrate creates the schema. Every statement is idempotent so it runs on
// each start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}
