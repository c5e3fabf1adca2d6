package repository

import (
	"context"
	"fmt"
	"time"
)

// TokenRepository is the refresh-token revocation denylist. Tokens stay
// stateless; only revoked token ids are persisted, and only until expiry.
type TokenRepository struct {
	db Querier
}

func NewTokenRepository(db Querier) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Revoke(ctx context.Context, jti string, userID string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO revoked_tokens (jti, user_id, revoked_at, expires_at)
		 VALUES ($1, $2, now(), $3)
		 ON CONFLICT (jti) DO NOTHING`,
		jti, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *TokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return revoked, nil
}

func (r *TokenRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired revocations: %w", err)
	}
	return tag.RowsAffected(), nil
}
