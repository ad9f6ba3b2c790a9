package postgresql

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

type ReceptionRepo struct {
	db db.DB
}

func NewReceptionRepo(db db.DB) storage.ReceptionRepository {
	return &ReceptionRepo{db: db}
}

func (r *ReceptionRepo) CreateTx(ctx context.Context, tx db.Tx, rec *repository.Reception) error {
	err := tx.Get(ctx, &rec.ID, `
        INSERT INTO receptions (
            donation_id, organization_id, received_at, quantity_received, responsible_name, comments
        ) VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `, rec.DonationID, rec.OrganizationID, rec.ReceivedAt, rec.QuantityReceived, rec.ResponsibleName, rec.Comments)
	return mapWriteError(err)
}

func (r *ReceptionRepo) GetByDonationID(ctx context.Context, donationID int64) (*repository.Reception, error) {
	var rec repository.Reception
	err := r.db.Get(ctx, &rec, `
        SELECT * FROM receptions
        WHERE donation_id = $1
        ORDER BY received_at ASC
        LIMIT 1
    `, donationID)
	if err != nil {
		return nil, mapReadError(err)
	}
	return &rec, nil
}

// ListReport returns the export rows of an organization. An empty status
// selects every reception.
func (r *ReceptionRepo) ListReport(ctx context.Context, organizationID int64, status string) ([]*repository.ReportRow, error) {
	var rows []*repository.ReportRow
	err := r.db.Select(ctx, &rows, `
        SELECT
            d.id AS donation_id,
            d.food_type,
            d.quantity,
            d.unit,
            COALESCE(NULLIF(dn.business_name, ''), u.first_name || ' ' || u.last_name) AS donor_name,
            rc.received_at,
            d.status,
            d.description
        FROM receptions rc
        JOIN donations d ON d.id = rc.donation_id
        JOIN donors dn ON dn.id = d.donor_id
        JOIN users u ON u.id = dn.user_id
        WHERE rc.organization_id = $1 AND ($2::text = '' OR d.status = $2::text)
        ORDER BY rc.received_at DESC
    `, organizationID, status)
	return rows, err
}
