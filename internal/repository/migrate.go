package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const usersMigration = `
CREATE TABLE IF NOT EXISTS users (
    id bigint PRIMARY KEY,
    email text NOT NULL UNIQUE,
    email_verified boolean NOT NULL DEFAULT false,
    name text NOT NULL DEFAULT '',
    avatar_url text NOT NULL DEFAULT '',
    otp_code text NOT NULL DEFAULT '',
    otp_issued_at timestamptz,
    created_at timestamptz NOT NULL DEFAULT now(),
    updated_at timestamptz NOT NULL DEFAULT now()
);
`

// Migrate applies the users schema. The statement is idempotent so it
// runs unconditionally at boot.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, usersMigration); err != nil {
		return fmt.Errorf("apply users migration: %w", err)
	}
	return nil
}
