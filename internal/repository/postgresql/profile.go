package postgresql

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

// ProfileRepo stores the role-specific profile attached to a user.
type ProfileRepo struct {
	db db.DB
}

func NewProfileRepo(db db.DB) storage.ProfileRepository {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) CreateDonorTx(ctx context.Context, tx db.Tx, donor *repository.Donor) error {
	err := tx.Get(ctx, &donor.ID, `
        INSERT INTO donors (
            user_id, business_name, kind, city, description, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `, donor.UserID, donor.BusinessName, donor.Kind, donor.City, donor.Description, donor.CreatedAt)
	return mapWriteError(err)
}

func (r *ProfileRepo) CreateOrganizationTx(ctx context.Context, tx db.Tx, org *repository.Organization) error {
	err := tx.Get(ctx, &org.ID, `
        INSERT INTO organizations (
            user_id, name, kind, city, description, capacity, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `, org.UserID, org.Name, org.Kind, org.City, org.Description, org.Capacity, org.CreatedAt)
	return mapWriteError(err)
}

func (r *ProfileRepo) GetDonorByUserID(ctx context.Context, userID int64) (*repository.Donor, error) {
	var donor repository.Donor
	if err := r.db.Get(ctx, &donor, "SELECT * FROM donors WHERE user_id = $1", userID); err != nil {
		return nil, mapReadError(err)
	}
	return &donor, nil
}

func (r *ProfileRepo) GetOrganizationByUserID(ctx context.Context, userID int64) (*repository.Organization, error) {
	var org repository.Organization
	if err := r.db.Get(ctx, &org, "SELECT * FROM organizations WHERE user_id = $1", userID); err != nil {
		return nil, mapReadError(err)
	}
	return &org, nil
}
