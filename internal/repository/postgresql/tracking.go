package postgresql

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

type TrackingRepo struct {
	db db.DB
}

func NewTrackingRepo(db db.DB) storage.TrackingRepository {
	return &TrackingRepo{db: db}
}

func (r *TrackingRepo) CreateTx(ctx context.Context, tx db.Tx, event *repository.TrackingEvent) error {
	return tx.Get(ctx, &event.ID, `
        INSERT INTO tracking_events (
            donation_id, organization_id, status, location, latitude, longitude,
            temperature, humidity, comment, actor_user_id, recorded_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id
    `, event.DonationID, event.OrganizationID, event.Status, event.Location, event.Latitude, event.Longitude,
		event.Temperature, event.Humidity, event.Comment, event.ActorUserID, event.RecordedAt)
}

func (r *TrackingRepo) ListByDonation(ctx context.Context, donationID int64) ([]*repository.TrackingEvent, error) {
	var events []*repository.TrackingEvent
	err := r.db.Select(ctx, &events, `
        SELECT * FROM tracking_events
        WHERE donation_id = $1
        ORDER BY recorded_at ASC, id ASC
    `, donationID)
	return events, err
}

func (r *TrackingRepo) LatestByStatus(ctx context.Context, donationID int64, status string) (*repository.TrackingEvent, error) {
	var event repository.TrackingEvent
	err := r.db.Get(ctx, &event, `
        SELECT * FROM tracking_events
        WHERE donation_id = $1 AND status = $2
        ORDER BY recorded_at DESC, id DESC
        LIMIT 1
    `, donationID, status)
	if err != nil {
		return nil, mapReadError(err)
	}
	return &event, nil
}
