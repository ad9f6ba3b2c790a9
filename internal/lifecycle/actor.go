package lifecycle

import (
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

// Actor is the authenticated party behind a lifecycle call. The set of
// implementations is closed: DonorActor, OrganizationActor and SystemActor.
type Actor interface {
	// UserID is nil for the system.
	UserID() *int64
	actor()
}

type DonorActor struct {
	User  *storage.User
	Donor *storage.Donor
}

func (a DonorActor) UserID() *int64 {
	id := a.User.ID
	return &id
}

func (DonorActor) actor() {}

type OrganizationActor struct {
	User         *storage.User
	Organization *storage.Organization
}

func (a OrganizationActor) UserID() *int64 {
	id := a.User.ID
	return &id
}

func (OrganizationActor) actor() {}

// SystemActor drives transitions nobody requested explicitly, such as the
// automatic completion of an overdue delivery.
type SystemActor struct{}

func (SystemActor) UserID() *int64 { return nil }

func (SystemActor) actor() {}
