package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/studytrack/internal/repository/base"
)

type SessionRepository struct {
	*base.Repository
}

func NewSessionRepository(db base.DBTX) *SessionRepository {
	return &SessionRepository{Repository: base.NewRepository(db)}
}

// Revoke помечает токен как отозванный до истечения его срока
func (r *SessionRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	query := `
		INSERT INTO revoked_sessions (token_id, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_id) DO NOTHING
	`

	if _, err := r.DB().Exec(ctx, query, tokenID, expiresAt); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

// IsRevoked проверяет отзыв токена
func (r *SessionRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM revoked_sessions WHERE token_id = $1)`

	var revoked bool
	if err := r.QueryRow(ctx, query, tokenID).Scan(&revoked); err != nil {
		return false, fmt.Errorf("check revoked session: %w", err)
	}

	return revoked, nil
}
