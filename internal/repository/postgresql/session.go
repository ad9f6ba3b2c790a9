package postgresql

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

type SessionRepo struct {
	db db.DB
}

func NewSessionRepo(db db.DB) storage.SessionRepository {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) RevokeTx(ctx context.Context, tx db.Tx, session *repository.RevokedSession) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO revoked_sessions (id, user_id, expires_at, revoked_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO NOTHING
    `, session.ID, session.UserID, session.ExpiresAt, session.RevokedAt)
	return err
}

func (r *SessionRepo) IsRevoked(ctx context.Context, id string) (bool, error) {
	var revoked bool
	err := r.db.Get(ctx, &revoked, "SELECT EXISTS (SELECT 1 FROM revoked_sessions WHERE id = $1)", id)
	if err != nil {
		return false, err
	}
	return revoked, nil
}
