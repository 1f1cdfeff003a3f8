package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Users provides operator account persistence.
type Users struct {
	DB DBTX
}

const userColumns = `id, name, email, password_hash, roles, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Roles, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Get returns one user by id.
func (r Users) Get(ctx context.Context, id pgtype.UUID) (User, error) {
	return scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns one user by normalized email.
func (r Users) GetByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email))
}

// Create inserts a new operator account.
func (r Users) Create(ctx context.Context, u User) (User, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, roles)
		VALUES ($1, lower($2), $3, $4)
		RETURNING `+userColumns, u.Name, u.Email, u.PasswordHash, u.Roles)
	return scanUser(row)
}

// CreateRefreshToken stores a hashed refresh token.
func (r Users) CreateRefreshToken(ctx context.Context, userID pgtype.UUID, tokenHash string, expiresAt pgtype.Timestamptz) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, tokenHash, expiresAt)
	return err
}

// GetRefreshToken looks up a refresh token by hash.
func (r Users) GetRefreshToken(ctx context.Context, tokenHash string) (RefreshToken, error) {
	var t RefreshToken
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = $1`, tokenHash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt)
	return t, err
}

// RevokeRefreshToken marks a stored token unusable.
func (r Users) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now() WHERE token_hash = $1 AND revoked_at IS NULL`, tokenHash)
	return err
}
