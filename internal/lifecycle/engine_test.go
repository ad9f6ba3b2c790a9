package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine *Engine
	store  *storage.MemoryStorage
	clock  *fakeClock
	donor  DonorActor
	other  DonorActor
	orgA   OrganizationActor
	orgB   OrganizationActor
}

func registerDonor(t *testing.T, s *storage.MemoryStorage, email string) DonorActor {
	t.Helper()
	user := &storage.User{Email: email, FirstName: "Luis", LastName: "Rojas", Role: storage.RoleDonor, Active: true}
	donor := &storage.Donor{Kind: storage.DonorRestaurant, City: "Talca"}
	require.NoError(t, s.RegisterUser(context.Background(), user, donor, nil, storage.AuditEntry{Action: storage.ActionCreateUser}))
	return DonorActor{User: user, Donor: donor}
}

func registerOrganization(t *testing.T, s *storage.MemoryStorage, email, name string) OrganizationActor {
	t.Helper()
	user := &storage.User{Email: email, FirstName: "Marta", LastName: "Diaz", Role: storage.RoleOrganization, Active: true}
	org := &storage.Organization{Name: name, Kind: storage.OrganizationDistributor, City: "Santiago"}
	require.NoError(t, s.RegisterUser(context.Background(), user, nil, org, storage.AuditEntry{Action: storage.ActionCreateUser}))
	return OrganizationActor{User: user, Organization: org}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := storage.NewMemoryStorage()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	engine := NewEngine(s,
		FixedDestination{Name: "Centro de Acopio Norte"},
		FixedNarration("Entrega recibida conforme"),
		WithClock(clock.Now),
		WithLogger(zaptest.NewLogger(t)),
	)
	return &fixture{
		engine: engine,
		store:  s,
		clock:  clock,
		donor:  registerDonor(t, s, "donor@example.com"),
		other:  registerDonor(t, s, "other@example.com"),
		orgA:   registerOrganization(t, s, "a@example.com", "Banco A"),
		orgB:   registerOrganization(t, s, "b@example.com", "Banco B"),
	}
}

func riceInput() DonationInput {
	return DonationInput{FoodType: "rice", Quantity: decimal.NewFromInt(10), Unit: storage.UnitKilograms}
}

func (f *fixture) create(t *testing.T) *storage.Donation {
	t.Helper()
	d, err := f.engine.Create(context.Background(), f.donor, riceInput())
	require.NoError(t, err)
	return d
}

func auditActions(entries []*storage.AuditEntry) []storage.ActionKind {
	actions := make([]storage.ActionKind, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

func TestEngine_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor Actor
		in    DonationInput
		kind  apperr.Kind
		code  string
	}{
		{name: "organization cannot donate", actor: f.orgA, in: riceInput(), kind: apperr.KindPermission, code: "wrong_role"},
		{name: "missing food type", actor: f.donor, in: DonationInput{Quantity: decimal.NewFromInt(1), Unit: storage.UnitKilograms}, kind: apperr.KindValidation, code: "missing_food_type"},
		{name: "zero quantity", actor: f.donor, in: DonationInput{FoodType: "milk", Unit: storage.UnitLiters}, kind: apperr.KindValidation, code: "quantity_not_positive"},
		{name: "negative quantity", actor: f.donor, in: DonationInput{FoodType: "milk", Quantity: decimal.NewFromInt(-2), Unit: storage.UnitLiters}, kind: apperr.KindValidation, code: "quantity_not_positive"},
		{name: "rounds to zero", actor: f.donor, in: DonationInput{FoodType: "salt", Quantity: decimal.RequireFromString("0.001"), Unit: storage.UnitKilograms}, kind: apperr.KindValidation, code: "quantity_not_positive"},
		{name: "unknown unit", actor: f.donor, in: DonationInput{FoodType: "milk", Quantity: decimal.NewFromInt(2), Unit: "gallons"}, kind: apperr.KindValidation, code: "invalid_unit"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := f.engine.Create(ctx, tc.actor, tc.in)
			assert.Nil(t, d)
			assert.True(t, apperr.Is(err, tc.kind, tc.code), "got %v", err)
		})
	}

	t.Run("success", func(t *testing.T) {
		d, err := f.engine.Create(ctx, f.donor, DonationInput{
			FoodType:    "  rice ",
			Quantity:    decimal.RequireFromString("10.004"),
			Unit:        storage.UnitKilograms,
			Description: "sealed bags",
		})
		require.NoError(t, err)

		assert.Equal(t, storage.StatusPending, d.Status)
		assert.Equal(t, "rice", d.FoodType)
		assert.True(t, decimal.NewFromInt(10).Equal(d.Quantity))
		assert.Equal(t, f.donor.Donor.ID, d.DonorID)

		history, err := f.store.DonationHistory(ctx, d.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, storage.ActionCreateDonation, history[0].Action)
		assert.Equal(t, f.donor.User.ID, *history[0].ActorUserID)
	})
}

func TestEngine_EditAndCancel_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("non owner cannot edit or cancel", func(t *testing.T) {
		d := f.create(t)

		_, err := f.engine.Edit(ctx, f.other, d.ID, riceInput())
		assert.True(t, apperr.Is(err, apperr.KindPermission, "not_owner"))

		_, err = f.engine.Cancel(ctx, f.other, d.ID)
		assert.True(t, apperr.Is(err, apperr.KindPermission, "not_owner"))

		_, err = f.engine.Cancel(ctx, f.orgA, d.ID)
		assert.True(t, apperr.Is(err, apperr.KindPermission, "wrong_role"))
	})

	t.Run("edit pending donation", func(t *testing.T) {
		d := f.create(t)
		in := riceInput()
		in.FoodType = "beans"
		in.Unit = storage.UnitBoxes

		edited, err := f.engine.Edit(ctx, f.donor, d.ID, in)
		require.NoError(t, err)
		assert.Equal(t, "beans", edited.FoodType)

		stored, err := f.store.GetDonation(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, storage.UnitBoxes, stored.Unit)
		assert.Equal(t, storage.StatusPending, stored.Status)
	})

	t.Run("cancel then re-cancel", func(t *testing.T) {
		d := f.create(t)

		cancelled, err := f.engine.Cancel(ctx, f.donor, d.ID)
		require.NoError(t, err)
		assert.Equal(t, storage.StatusCancelled, cancelled.Status)

		_, err = f.engine.Cancel(ctx, f.donor, d.ID)
		assert.True(t, apperr.Is(err, apperr.KindState, "already_terminal"))

		_, err = f.engine.Edit(ctx, f.donor, d.ID, riceInput())
		assert.True(t, apperr.Is(err, apperr.KindState, "already_terminal"))

		_, err = f.engine.Accept(ctx, f.orgA, d.ID, AcceptInput{})
		assert.Equal(t, apperr.KindState, apperr.KindOf(err))
	})

	t.Run("in transit cannot be edited or cancelled", func(t *testing.T) {
		d := f.create(t)
		_, err := f.engine.Accept(ctx, f.orgA, d.ID, AcceptInput{})
		require.NoError(t, err)

		_, err = f.engine.Edit(ctx, f.donor, d.ID, riceInput())
		assert.True(t, apperr.Is(err, apperr.KindState, "not_pending"))

		_, err = f.engine.Cancel(ctx, f.donor, d.ID)
		assert.True(t, apperr.Is(err, apperr.KindState, "not_pending"))
	})

	t.Run("unknown donation", func(t *testing.T) {
		_, err := f.engine.Cancel(ctx, f.donor, 9999)
		assert.True(t, apperr.Is(err, apperr.KindNotFound, "donation_not_found"))
	})
}

func TestEngine_Accept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t)

	res, err := f.engine.Accept(ctx, f.orgA, d.ID, AcceptInput{})
	require.NoError(t, err)

	assert.Equal(t, storage.StatusInTransit, res.Donation.Status)
	assert.Equal(t, f.orgA.Organization.ID, res.Reception.OrganizationID)
	assert.True(t, d.Quantity.Equal(res.Reception.QuantityReceived))
	assert.Equal(t, "Marta Diaz", res.Reception.ResponsibleName)
	assert.Equal(t, storage.TrackingInTransit, res.Event.Status)
	assert.Equal(t, "Centro de Acopio Norte", res.Event.Location)

	_, err = f.engine.Accept(ctx, f.orgB, d.ID, AcceptInput{})
	assert.True(t, apperr.Is(err, apperr.KindState, "already_claimed"))

	_, err = f.engine.Accept(ctx, f.donor, d.ID, AcceptInput{})
	assert.True(t, apperr.Is(err, apperr.KindPermission, "wrong_role"))
}

func TestEngine_Accept_ConcurrentExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t)

	orgs := []OrganizationActor{f.orgA, f.orgB}
	for i := 0; i < 8; i++ {
		orgs = append(orgs, registerOrganization(t, f.store, "org"+string(rune('c'+i))+"@example.com", "Banco"))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		claimed int
		start   = make(chan struct{})
	)
	for _, org := range orgs {
		wg.Add(1)
		go func(org OrganizationActor) {
			defer wg.Done()
			<-start
			_, err := f.engine.Accept(ctx, org, d.ID, AcceptInput{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperr.Is(err, apperr.KindState, "already_claimed"):
				claimed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(org)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, len(orgs)-1, claimed)

	report := 0
	for _, org := range orgs {
		rows, err := f.store.ReceivedReport(ctx, org.Organization.ID, "")
		require.NoError(t, err)
		report += len(rows)
	}
	assert.Equal(t, 1, report, "exactly one reception must exist")
}

func TestEngine_Complete_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t)

	_, err := f.engine.Complete(ctx, SystemActor{}, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindState, "not_in_transit"))

	_, err = f.engine.Accept(ctx, f.orgA, d.ID, AcceptInput{})
	require.NoError(t, err)

	_, err = f.engine.Complete(ctx, f.orgA, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindPermission, "wrong_role"))

	completed, err := f.engine.Complete(ctx, SystemActor{}, d.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusDelivered, completed.Status)

	_, err = f.engine.Complete(ctx, SystemActor{}, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindState, "already_terminal"))

	events, err := f.store.TrackingEvents(ctx, d.ID)
	require.NoError(t, err)
	delivered := 0
	for _, e := range events {
		if e.Status == storage.TrackingDelivered {
			delivered++
			assert.Equal(t, "Entrega recibida conforme", e.Comment)
			assert.Equal(t, "Centro de Acopio Norte", e.Location)
			assert.Nil(t, e.ActorUserID)
		}
	}
	assert.Equal(t, 1, delivered)
}

func TestEngine_Track_PollOnReadScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.create(t)
	assert.Equal(t, storage.StatusPending, d.Status)

	_, err := f.engine.Accept(ctx, f.orgA, d.ID, AcceptInput{})
	require.NoError(t, err)

	report, err := f.store.ReceivedReport(ctx, f.orgA.Organization.ID, "")
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.True(t, decimal.NewFromInt(10).Equal(report[0].Quantity))

	f.clock.Advance(30 * time.Second)
	view, err := f.engine.Track(ctx, f.donor, d.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusInTransit, view.Donation.Status)
	require.NotNil(t, view.Active)
	assert.Equal(t, 30*time.Second, view.Elapsed)
	assert.Equal(t, 60*time.Second, view.Remaining)
	assert.Len(t, view.Events, 1)

	f.clock.Advance(61 * time.Second)
	view, err = f.engine.Track(ctx, f.orgA, d.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusDelivered, view.Donation.Status)
	require.Len(t, view.Events, 2)
	assert.Equal(t, storage.TrackingDelivered, view.Events[1].Status)
	assert.Nil(t, view.Active)

	view, err = f.engine.Track(ctx, f.donor, d.ID)
	require.NoError(t, err)
	assert.Len(t, view.Events, 2, "reading again must not append another delivery event")

	history, err := f.engine.History(ctx, f.donor, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []storage.ActionKind{
		storage.ActionCreateDonation,
		storage.ActionReceiveDonation,
		storage.ActionDeliverDonation,
	}, auditActions(history))
}

func TestEngine_Track_ConcurrentReadsCompleteOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t)
	_, err := f.engine.Accept(ctx, f.orgA, d.ID, AcceptInput{})
	require.NoError(t, err)
	f.clock.Advance(2 * DefaultThreshold)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := f.engine.Track(ctx, f.donor, d.ID)
			if assert.NoError(t, err) {
				assert.Equal(t, storage.StatusDelivered, view.Donation.Status)
			}
		}()
	}
	wg.Wait()

	events, err := f.store.TrackingEvents(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestEngine_Track_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t)

	_, err := f.engine.Track(ctx, f.orgA, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindPermission, "not_receiver"))

	_, err = f.engine.Accept(ctx, f.orgA, d.ID, AcceptInput{})
	require.NoError(t, err)

	_, err = f.engine.Track(ctx, f.orgB, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindPermission, "not_receiver"))

	_, err = f.engine.History(ctx, f.other, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindPermission, "not_owner"))

	_, err = f.engine.Track(ctx, f.donor, 12345)
	assert.True(t, apperr.Is(err, apperr.KindNotFound, "donation_not_found"))
}

func TestEngine_MineAndAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t)
	f.clock.Advance(time.Second)
	second := f.create(t)

	_, err := f.engine.Accept(ctx, f.orgA, first.ID, AcceptInput{})
	require.NoError(t, err)

	mine, err := f.engine.Mine(ctx, f.donor)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)

	received, err := f.engine.Mine(ctx, f.orgA)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, first.ID, received[0].ID)

	available, err := f.engine.Available(ctx, f.orgB)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, second.ID, available[0].ID)

	_, err = f.engine.Available(ctx, f.donor)
	assert.True(t, apperr.Is(err, apperr.KindPermission, "wrong_role"))

	_, err = f.engine.Mine(ctx, SystemActor{})
	assert.True(t, apperr.Is(err, apperr.KindPermission, "wrong_role"))
}
