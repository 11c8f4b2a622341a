package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
)

var _ UserRepository = (*PostgresUserRepo)(nil)

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db   *pgxpool.Pool
	node *snowflake.Node
}

func NewPostgresUserRepo(pool *pgxpool.Pool, node *snowflake.Node) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool, node: node}
}

const userColumns = `id, email, email_verified, name, avatar_url, otp_code, otp_issued_at, created_at, updated_at`

const getOrCreateUserSQL = `INSERT INTO users (id, email)
VALUES ($1, $2)
ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
RETURNING ` + userColumns

func (r *PostgresUserRepo) GetOrCreateByEmail(ctx context.Context, email string) (domain.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	row := r.db.QueryRow(ctx, getOrCreateUserSQL, r.node.Generate().Int64(), normalized)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get or create user: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, normalized)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) SetOTP(ctx context.Context, userID int64, code string, issuedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET otp_code = $2, otp_issued_at = $3, updated_at = now() WHERE id = $1`,
		userID, code, issuedAt,
	)
	if err != nil {
		return fmt.Errorf("set otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepo) ClearOTP(ctx context.Context, userID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET otp_code = '', otp_issued_at = NULL, email_verified = TRUE, updated_at = now() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("clear otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, userID int64, name, avatarURL string, emailVerified bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET name = $2, avatar_url = $3, email_verified = $4, updated_at = now() WHERE id = $1`,
		userID, name, avatarURL, emailVerified,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user        domain.User
		otpIssuedAt *time.Time
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.EmailVerified,
		&user.Name,
		&user.AvatarURL,
		&user.OTPCode,
		&otpIssuedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return domain.User{}, err
	}
	if otpIssuedAt != nil {
		user.OTPIssuedAt = *otpIssuedAt
	}
	return user, nil
}
