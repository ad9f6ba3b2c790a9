package lifecycle

import (
	"context"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

// Destination is where an accepted donation is reported to travel.
type Destination struct {
	Name      string
	Latitude  *decimal.Decimal
	Longitude *decimal.Decimal
}

// DestinationResolver picks the destination recorded when a donation is accepted.
type DestinationResolver interface {
	Resolve(ctx context.Context, donation *storage.Donation, org *storage.Organization) Destination
}

// CompletionNarrator supplies the comment of the delivered tracking event.
type CompletionNarrator interface {
	Narrate(ctx context.Context, donation *storage.Donation) string
}

type FixedDestination Destination

func (f FixedDestination) Resolve(context.Context, *storage.Donation, *storage.Organization) Destination {
	return Destination(f)
}

type FixedNarration string

func (f FixedNarration) Narrate(context.Context, *storage.Donation) string {
	return string(f)
}
