package simulation

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newLockedRand(seed uint64) *lockedRand {
	return &lockedRand{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.IntN(n)
}

// RandomResolver picks a catalogue destination uniformly at random.
type RandomResolver struct {
	places []Place
	rnd    *lockedRand
}

func NewRandomResolver(cat Catalogue, seed uint64) *RandomResolver {
	return &RandomResolver{places: cat.Destinations, rnd: newLockedRand(seed)}
}

func (r *RandomResolver) Resolve(_ context.Context, _ *storage.Donation, _ *storage.Organization) lifecycle.Destination {
	p := r.places[r.rnd.IntN(len(r.places))]
	lat := decimal.NewFromFloat(p.Latitude)
	lng := decimal.NewFromFloat(p.Longitude)
	return lifecycle.Destination{Name: p.Name, Latitude: &lat, Longitude: &lng}
}

// RandomNarrator picks a canned completion message.
type RandomNarrator struct {
	messages []string
	rnd      *lockedRand
}

func NewRandomNarrator(cat Catalogue, seed uint64) *RandomNarrator {
	return &RandomNarrator{messages: cat.Completions, rnd: newLockedRand(seed + 1)}
}

func (n *RandomNarrator) Narrate(_ context.Context, _ *storage.Donation) string {
	return n.messages[n.rnd.IntN(len(n.messages))]
}
