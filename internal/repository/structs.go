package repository

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrObjectNotFound = errors.New("not found")
	// ErrConflict reports a lost conditional update or a unique violation.
	ErrConflict = errors.New("conflict")
)

type User struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Phone        string    `db:"phone"`
	Role         string    `db:"role"`
	Active       bool      `db:"active"`
	RegisteredAt time.Time `db:"registered_at"`
}

type Donor struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	BusinessName string    `db:"business_name"`
	Kind         string    `db:"kind"`
	City         string    `db:"city"`
	Description  string    `db:"description"`
	CreatedAt    time.Time `db:"created_at"`
}

type Organization struct {
	ID          int64               `db:"id"`
	UserID      int64               `db:"user_id"`
	Name        string              `db:"name"`
	Kind        string              `db:"kind"`
	City        string              `db:"city"`
	Description string              `db:"description"`
	Capacity    decimal.NullDecimal `db:"capacity"`
	CreatedAt   time.Time           `db:"created_at"`
}

type Donation struct {
	ID          int64           `db:"id"`
	DonorID     int64           `db:"donor_id"`
	FoodType    string          `db:"food_type"`
	Quantity    decimal.Decimal `db:"quantity"`
	Unit        string          `db:"unit"`
	ExpiresOn   *time.Time      `db:"expires_on"`
	Description string          `db:"description"`
	Status      string          `db:"status"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

type Reception struct {
	ID               int64           `db:"id"`
	DonationID       int64           `db:"donation_id"`
	OrganizationID   int64           `db:"organization_id"`
	ReceivedAt       time.Time       `db:"received_at"`
	QuantityReceived decimal.Decimal `db:"quantity_received"`
	ResponsibleName  string          `db:"responsible_name"`
	Comments         string          `db:"comments"`
}

type TrackingEvent struct {
	ID             int64               `db:"id"`
	DonationID     int64               `db:"donation_id"`
	OrganizationID int64               `db:"organization_id"`
	Status         string              `db:"status"`
	Location       string              `db:"location"`
	Latitude       decimal.NullDecimal `db:"latitude"`
	Longitude      decimal.NullDecimal `db:"longitude"`
	Temperature    decimal.NullDecimal `db:"temperature"`
	Humidity       decimal.NullDecimal `db:"humidity"`
	Comment        string              `db:"comment"`
	ActorUserID    *int64              `db:"actor_user_id"`
	RecordedAt     time.Time           `db:"recorded_at"`
}

type AuditEntry struct {
	ID          int64           `db:"id"`
	ActorUserID *int64          `db:"actor_user_id"`
	Action      string          `db:"action"`
	DonationID  *int64          `db:"donation_id"`
	Description string          `db:"description"`
	Details     json.RawMessage `db:"details"`
	OccurredAt  time.Time       `db:"occurred_at"`
}

// RevokedSession marks a session token id that must no longer authenticate.
type RevokedSession struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	RevokedAt time.Time `db:"revoked_at"`
}

// ReportRow is one line of an organization's reception export.
type ReportRow struct {
	DonationID  int64           `db:"donation_id"`
	FoodType    string          `db:"food_type"`
	Quantity    decimal.Decimal `db:"quantity"`
	Unit        string          `db:"unit"`
	DonorName   string          `db:"donor_name"`
	ReceivedAt  time.Time       `db:"received_at"`
	Status      string          `db:"status"`
	Description string          `db:"description"`
}
