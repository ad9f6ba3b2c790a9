package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleDonor        Role = "donor"
	RoleOrganization Role = "organization"
)

func (r Role) Valid() bool {
	return r == RoleDonor || r == RoleOrganization
}

type DonationStatus string

const (
	StatusPending   DonationStatus = "pending"
	StatusInTransit DonationStatus = "in_transit"
	StatusDelivered DonationStatus = "delivered"
	StatusCancelled DonationStatus = "cancelled"
)

func (s DonationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves the status.
func (s DonationStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type Unit string

const (
	UnitKilograms Unit = "kg"
	UnitLiters    Unit = "liters"
	UnitUnits     Unit = "units"
	UnitPackages  Unit = "packages"
	UnitBoxes     Unit = "boxes"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitKilograms, UnitLiters, UnitUnits, UnitPackages, UnitBoxes:
		return true
	}
	return false
}

type TrackingStatus string

const (
	TrackingPickedUp  TrackingStatus = "picked_up"
	TrackingInTransit TrackingStatus = "in_transit"
	TrackingDelivered TrackingStatus = "delivered_at_destination"
	TrackingRejected  TrackingStatus = "rejected"
	TrackingLost      TrackingStatus = "lost"
)

func (s TrackingStatus) Valid() bool {
	switch s {
	case TrackingPickedUp, TrackingInTransit, TrackingDelivered, TrackingRejected, TrackingLost:
		return true
	}
	return false
}

// ActionKind values are stored verbatim in audit_log.action.
type ActionKind string

const (
	ActionCreateDonation  ActionKind = "crear_donacion"
	ActionUpdateDonation  ActionKind = "actualizar_donacion"
	ActionReceiveDonation ActionKind = "recepcionar_donacion"
	ActionUpdateTracking  ActionKind = "actualizar_seguimiento"
	ActionDeliverDonation ActionKind = "entregar_donacion"
	ActionCancelDonation  ActionKind = "cancelar_donacion"
	ActionLogin           ActionKind = "login"
	ActionLogout          ActionKind = "logout"
	ActionCreateUser      ActionKind = "crear_usuario"
)

type DonorKind string

const (
	DonorCompany    DonorKind = "company"
	DonorRestaurant DonorKind = "restaurant"
	DonorProducer   DonorKind = "producer"
	DonorIndividual DonorKind = "individual"
	DonorOther      DonorKind = "other"
)

func (k DonorKind) Valid() bool {
	switch k {
	case DonorCompany, DonorRestaurant, DonorProducer, DonorIndividual, DonorOther:
		return true
	}
	return false
}

type OrganizationKind string

const (
	OrganizationNeighborhoodCouncil OrganizationKind = "neighborhood_council"
	OrganizationDistributor         OrganizationKind = "distributor"
	OrganizationCollector           OrganizationKind = "collector"
	OrganizationOther               OrganizationKind = "other"
)

func (k OrganizationKind) Valid() bool {
	switch k {
	case OrganizationNeighborhoodCouncil, OrganizationDistributor, OrganizationCollector, OrganizationOther:
		return true
	}
	return false
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone,omitempty"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type Donor struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	BusinessName string    `json:"business_name,omitempty"`
	Kind         DonorKind `json:"kind"`
	City         string    `json:"city"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Organization struct {
	ID          int64            `json:"id"`
	UserID      int64            `json:"user_id"`
	Name        string           `json:"name"`
	Kind        OrganizationKind `json:"kind"`
	City        string           `json:"city"`
	Description string           `json:"description,omitempty"`
	Capacity    *decimal.Decimal `json:"capacity,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

type Donation struct {
	ID          int64           `json:"id"`
	DonorID     int64           `json:"donor_id"`
	FoodType    string          `json:"food_type"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        Unit            `json:"unit"`
	ExpiresOn   *time.Time      `json:"expires_on,omitempty"`
	Description string          `json:"description,omitempty"`
	Status      DonationStatus  `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Reception struct {
	ID               int64           `json:"id"`
	DonationID       int64           `json:"donation_id"`
	OrganizationID   int64           `json:"organization_id"`
	ReceivedAt       time.Time       `json:"received_at"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
	ResponsibleName  string          `json:"responsible_name,omitempty"`
	Comments         string          `json:"comments,omitempty"`
}

type TrackingEvent struct {
	ID             int64            `json:"id"`
	DonationID     int64            `json:"donation_id"`
	OrganizationID int64            `json:"organization_id"`
	Status         TrackingStatus   `json:"status"`
	Location       string           `json:"location"`
	Latitude       *decimal.Decimal `json:"latitude,omitempty"`
	Longitude      *decimal.Decimal `json:"longitude,omitempty"`
	Temperature    *decimal.Decimal `json:"temperature,omitempty"`
	Humidity       *decimal.Decimal `json:"humidity,omitempty"`
	Comment        string           `json:"comment,omitempty"`
	ActorUserID    *int64           `json:"actor_user_id,omitempty"`
	RecordedAt     time.Time        `json:"recorded_at"`
}

type AuditEntry struct {
	ID          int64          `json:"id"`
	ActorUserID *int64         `json:"actor_user_id,omitempty"`
	Action      ActionKind     `json:"action"`
	DonationID  *int64         `json:"donation_id,omitempty"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// RevokedSession is a logged out session token, kept until it would have
// expired anyway.
type RevokedSession struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	RevokedAt time.Time `json:"revoked_at"`
}

// ReportRow is one line of the received-donations export.
type ReportRow struct {
	DonationID  int64           `json:"donation_id"`
	FoodType    string          `json:"food_type"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        Unit            `json:"unit"`
	DonorName   string          `json:"donor_name"`
	ReceivedAt  time.Time       `json:"received_at"`
	Status      DonationStatus  `json:"status"`
	Description string          `json:"description,omitempty"`
}
