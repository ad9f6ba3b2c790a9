package postgresql

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

type UserRepo struct {
	db db.DB
}

func NewUserRepo(db db.DB) storage.UserRepository {
	return &UserRepo{db: db}
}

func (r *UserRepo) CreateTx(ctx context.Context, tx db.Tx, user *repository.User) error {
	err := tx.Get(ctx, &user.ID, `
        INSERT INTO users (
            email, password_hash, first_name, last_name, phone, role, active, registered_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Phone, user.Role, user.Active, user.RegisteredAt)
	return mapWriteError(err)
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*repository.User, error) {
	var user repository.User
	if err := r.db.Get(ctx, &user, "SELECT * FROM users WHERE id = $1", id); err != nil {
		return nil, mapReadError(err)
	}
	return &user, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	var user repository.User
	if err := r.db.Get(ctx, &user, "SELECT * FROM users WHERE email = $1", email); err != nil {
		return nil, mapReadError(err)
	}
	return &user, nil
}
