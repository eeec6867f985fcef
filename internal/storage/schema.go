package storage

import (
	"context"
	"fmt"
)

var schema = []string{
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT        NOT NULL,
	email         TEXT        NOT NULL UNIQUE,
	role          TEXT        NOT NULL DEFAULT 'ASSISTANT',
	password_hash TEXT        NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`, usersTable),
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT      NOT NULL REFERENCES %s(id),
	token_hash TEXT        NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	is_revoked BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`, refreshTokensTable, usersTable),
	fmt.Sprintf(`CREATE INDEX IF NOT EXISTS refresh_tokens_user_active_idx
	ON %s (user_id, token_hash) WHERE is_revoked = FALSE;`, refreshTokensTable),
	fmt.Sprintf(`CREATE INDEX IF NOT EXISTS refresh_tokens_gc_idx
	ON %s (expires_at) WHERE is_revoked = TRUE;`, refreshTokensTable),
}

// Migrate creates the tables when they do not exist yet.
func (p *PostgresStorage) Migrate(ctx context.Context) error {
	const op = "storage.Migrate"

	for _, stmt := range schema {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}
