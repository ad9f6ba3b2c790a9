package postgresql

import (
	"context"
	"fmt"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

const donationColumns = `d.id, d.donor_id, d.food_type, d.quantity, d.unit, d.expires_on,
        d.description, d.status, d.created_at, d.updated_at`

type DonationRepo struct {
	db db.DB
}

func NewDonationRepo(db db.DB) storage.DonationRepository {
	return &DonationRepo{db: db}
}

func (r *DonationRepo) CreateTx(ctx context.Context, tx db.Tx, donation *repository.Donation) error {
	return tx.Get(ctx, &donation.ID, `
        INSERT INTO donations (
            donor_id, food_type, quantity, unit, expires_on, description, status, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `, donation.DonorID, donation.FoodType, donation.Quantity, donation.Unit, donation.ExpiresOn,
		donation.Description, donation.Status, donation.CreatedAt, donation.UpdatedAt)
}

func (r *DonationRepo) GetByID(ctx context.Context, id int64) (*repository.Donation, error) {
	var donation repository.Donation
	err := r.db.Get(ctx, &donation, "SELECT "+donationColumns+" FROM donations d WHERE d.id = $1", id)
	if err != nil {
		return nil, mapReadError(err)
	}
	return &donation, nil
}

// UpdatePendingTx rewrites the editable fields of a donation that is still
// pending and still owned by donation.DonorID.
func (r *DonationRepo) UpdatePendingTx(ctx context.Context, tx db.Tx, donation *repository.Donation) error {
	tag, err := tx.Exec(ctx, `
        UPDATE donations
        SET
            food_type = $1,
            quantity = $2,
            unit = $3,
            expires_on = $4,
            description = $5,
            updated_at = $6
        WHERE id = $7 AND donor_id = $8 AND status = 'pending'
    `, donation.FoodType, donation.Quantity, donation.Unit, donation.ExpiresOn, donation.Description,
		donation.UpdatedAt, donation.ID, donation.DonorID)
	if err != nil {
		return fmt.Errorf("update donation %d: %w", donation.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

// TransitionStatusTx moves a donation from one status to another only if it
// still holds the expected status. Losing the race yields ErrConflict.
func (r *DonationRepo) TransitionStatusTx(ctx context.Context, tx db.Tx, id int64, from, to string, at time.Time) error {
	tag, err := tx.Exec(ctx, `
        UPDATE donations
        SET status = $1, updated_at = $2
        WHERE id = $3 AND status = $4
    `, to, at, id, from)
	if err != nil {
		return fmt.Errorf("transition donation %d %s->%s: %w", id, from, to, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *DonationRepo) ListByStatus(ctx context.Context, status string) ([]*repository.Donation, error) {
	var donations []*repository.Donation
	err := r.db.Select(ctx, &donations, `
        SELECT `+donationColumns+` FROM donations d
        WHERE d.status = $1
        ORDER BY d.created_at DESC
    `, status)
	return donations, err
}

func (r *DonationRepo) ListByDonor(ctx context.Context, donorID int64) ([]*repository.Donation, error) {
	var donations []*repository.Donation
	err := r.db.Select(ctx, &donations, `
        SELECT `+donationColumns+` FROM donations d
        WHERE d.donor_id = $1
        ORDER BY d.created_at DESC
    `, donorID)
	return donations, err
}

func (r *DonationRepo) ListByOrganization(ctx context.Context, organizationID int64) ([]*repository.Donation, error) {
	var donations []*repository.Donation
	err := r.db.Select(ctx, &donations, `
        SELECT `+donationColumns+` FROM donations d
        JOIN receptions rc ON rc.donation_id = d.id
        WHERE rc.organization_id = $1
        ORDER BY rc.received_at DESC
    `, organizationID)
	return donations, err
}
