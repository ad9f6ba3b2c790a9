//go:generate mockgen -source ./repositories.go -destination=./mocks/repositories.go -package=mock_storage
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
)

type UserRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, user *repository.User) error
	GetByID(ctx context.Context, id int64) (*repository.User, error)
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
}

type ProfileRepository interface {
	CreateDonorTx(ctx context.Context, tx db.Tx, donor *repository.Donor) error
	CreateOrganizationTx(ctx context.Context, tx db.Tx, org *repository.Organization) error
	GetDonorByUserID(ctx context.Context, userID int64) (*repository.Donor, error)
	GetOrganizationByUserID(ctx context.Context, userID int64) (*repository.Organization, error)
}

type DonationRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, donation *repository.Donation) error
	GetByID(ctx context.Context, id int64) (*repository.Donation, error)
	UpdatePendingTx(ctx context.Context, tx db.Tx, donation *repository.Donation) error
	TransitionStatusTx(ctx context.Context, tx db.Tx, id int64, from, to string, at time.Time) error
	ListByStatus(ctx context.Context, status string) ([]*repository.Donation, error)
	ListByDonor(ctx context.Context, donorID int64) ([]*repository.Donation, error)
	ListByOrganization(ctx context.Context, organizationID int64) ([]*repository.Donation, error)
}

type ReceptionRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, rec *repository.Reception) error
	GetByDonationID(ctx context.Context, donationID int64) (*repository.Reception, error)
	ListReport(ctx context.Context, organizationID int64, status string) ([]*repository.ReportRow, error)
}

type TrackingRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, event *repository.TrackingEvent) error
	ListByDonation(ctx context.Context, donationID int64) ([]*repository.TrackingEvent, error)
	LatestByStatus(ctx context.Context, donationID int64, status string) (*repository.TrackingEvent, error)
}

type AuditRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, entry *repository.AuditEntry) error
	ListByDonation(ctx context.Context, donationID int64) ([]*repository.AuditEntry, error)
}

type SessionRepository interface {
	RevokeTx(ctx context.Context, tx db.Tx, session *repository.RevokedSession) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

type OutboxTaskRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error
	GetProcessableTasksTx(ctx context.Context, tx db.Tx, limit, maxAttempts int, staleBefore time.Time) ([]*repository.OutboxTask, error)
	UpdateTaskStatusTx(ctx context.Context, tx db.Tx, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
	UpdateTaskStatus(ctx context.Context, db db.DB, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
}
