package postgresql

import (
	"context"
	"encoding/json"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

// AuditRepo only appends. The table trigger rejects updates and deletes.
type AuditRepo struct {
	db db.DB
}

func NewAuditRepo(db db.DB) storage.AuditRepository {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) CreateTx(ctx context.Context, tx db.Tx, entry *repository.AuditEntry) error {
	details := entry.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	return tx.Get(ctx, &entry.ID, `
        INSERT INTO audit_log (
            actor_user_id, action, donation_id, description, details, occurred_at
        ) VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `, entry.ActorUserID, entry.Action, entry.DonationID, entry.Description, details, entry.OccurredAt)
}

func (r *AuditRepo) ListByDonation(ctx context.Context, donationID int64) ([]*repository.AuditEntry, error) {
	var entries []*repository.AuditEntry
	err := r.db.Select(ctx, &entries, `
        SELECT * FROM audit_log
        WHERE donation_id = $1
        ORDER BY occurred_at ASC, id ASC
    `, donationID)
	return entries, err
}
