// Package lifecycle enforces the donation state machine:
//
//	pending -> in_transit -> delivered
//	pending -> cancelled
//
// delivered and cancelled are terminal. Every transition is a conditional
// update in the store, so concurrent callers cannot both win.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

type Store interface {
	CreateDonation(ctx context.Context, donation *storage.Donation, audit storage.AuditEntry) error
	GetDonation(ctx context.Context, id int64) (*storage.Donation, error)
	UpdatePendingDonation(ctx context.Context, donation *storage.Donation, audit storage.AuditEntry) error
	CancelDonation(ctx context.Context, id int64, at time.Time, audit storage.AuditEntry) error
	AcceptDonation(ctx context.Context, id int64, rec *storage.Reception, event *storage.TrackingEvent, audit storage.AuditEntry) error
	CompleteDonation(ctx context.Context, id int64, event *storage.TrackingEvent, audit storage.AuditEntry) error
	LatestTrackingEvent(ctx context.Context, donationID int64, status storage.TrackingStatus) (*storage.TrackingEvent, error)
	TrackingEvents(ctx context.Context, donationID int64) ([]*storage.TrackingEvent, error)
	ReceptionFor(ctx context.Context, donationID int64) (*storage.Reception, error)
	DonationsByDonor(ctx context.Context, donorID int64) ([]*storage.Donation, error)
	DonationsByOrganization(ctx context.Context, organizationID int64) ([]*storage.Donation, error)
	PendingDonations(ctx context.Context) ([]*storage.Donation, error)
	DonationHistory(ctx context.Context, donationID int64) ([]*storage.AuditEntry, error)
}

type Engine struct {
	store     Store
	resolver  DestinationResolver
	narrator  CompletionNarrator
	threshold time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Engine)

func WithThreshold(threshold time.Duration) Option {
	return func(e *Engine) { e.threshold = threshold }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(store Store, resolver DestinationResolver, narrator CompletionNarrator, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		resolver:  resolver,
		narrator:  narrator,
		threshold: DefaultThreshold,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Threshold() time.Duration {
	return e.threshold
}

func (e *Engine) fail(op string, err error) error {
	kind := apperr.KindOf(err)
	metrics.OperationErrorsTotal.WithLabelValues(op, string(kind)).Inc()
	if kind == apperr.KindInternal {
		e.logger.Error("lifecycle operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

func (e *Engine) load(ctx context.Context, id int64) (*storage.Donation, error) {
	donation, err := e.store.GetDonation(ctx, id)
	if errors.Is(err, repository.ErrObjectNotFound) {
		return nil, apperr.NotFound("donation_not_found", fmt.Sprintf("donation %d not found", id))
	}
	if err != nil {
		return nil, apperr.Internal("failed to load donation", err)
	}
	return donation, nil
}

func requireDonor(actor Actor, action string) (DonorActor, error) {
	donor, ok := actor.(DonorActor)
	if !ok {
		return DonorActor{}, apperr.Permission("wrong_role", "only donors can "+action)
	}
	return donor, nil
}

func requireOrganization(actor Actor, action string) (OrganizationActor, error) {
	org, ok := actor.(OrganizationActor)
	if !ok {
		return OrganizationActor{}, apperr.Permission("wrong_role", "only organizations can "+action)
	}
	return org, nil
}

func ownedBy(donation *storage.Donation, donor DonorActor) error {
	if donation.DonorID != donor.Donor.ID {
		return apperr.Permission("not_owner", "donation belongs to another donor")
	}
	return nil
}

// stateError describes why a donation in status cannot leave pending.
func stateError(status storage.DonationStatus) error {
	if status.Terminal() {
		return apperr.State("already_terminal", fmt.Sprintf("donation is already %s", status))
	}
	return apperr.State("not_pending", fmt.Sprintf("donation is %s, only pending donations can change", status))
}

// Create registers a new pending donation for the acting donor.
func (e *Engine) Create(ctx context.Context, actor Actor, in DonationInput) (*storage.Donation, error) {
	const op = "create"
	donor, err := requireDonor(actor, "create donations")
	if err != nil {
		return nil, e.fail(op, err)
	}
	if err := in.normalize(); err != nil {
		return nil, e.fail(op, err)
	}

	now := e.clock()
	donation := &storage.Donation{
		DonorID:     donor.Donor.ID,
		FoodType:    in.FoodType,
		Quantity:    in.Quantity,
		Unit:        in.Unit,
		ExpiresOn:   in.ExpiresOn,
		Description: in.Description,
		Status:      storage.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	audit := storage.AuditEntry{
		ActorUserID: actor.UserID(),
		Action:      storage.ActionCreateDonation,
		Description: fmt.Sprintf("Created donation of %s %s of %s", donation.Quantity, donation.Unit, donation.FoodType),
		Details: map[string]any{
			"food_type": donation.FoodType,
			"quantity":  donation.Quantity.String(),
			"unit":      string(donation.Unit),
		},
		OccurredAt: now,
	}
	if err := e.store.CreateDonation(ctx, donation, audit); err != nil {
		return nil, e.fail(op, apperr.Internal("failed to create donation", err))
	}

	metrics.DonationsCreatedTotal.Inc()
	e.logger.Info("donation created",
		zap.Int64("donation_id", donation.ID),
		zap.Int64("donor_id", donation.DonorID),
	)
	return donation, nil
}

// Edit rewrites the fields of a pending donation owned by the acting donor.
func (e *Engine) Edit(ctx context.Context, actor Actor, id int64, in DonationInput) (*storage.Donation, error) {
	const op = "edit"
	donor, err := requireDonor(actor, "edit donations")
	if err != nil {
		return nil, e.fail(op, err)
	}
	donation, err := e.load(ctx, id)
	if err != nil {
		return nil, e.fail(op, err)
	}
	if err := ownedBy(donation, donor); err != nil {
		return nil, e.fail(op, err)
	}
	if donation.Status != storage.StatusPending {
		return nil, e.fail(op, stateError(donation.Status))
	}
	if err := in.normalize(); err != nil {
		return nil, e.fail(op, err)
	}

	now := e.clock()
	donation.FoodType = in.FoodType
	donation.Quantity = in.Quantity
	donation.Unit = in.Unit
	donation.ExpiresOn = in.ExpiresOn
	donation.Description = in.Description
	donation.UpdatedAt = now

	audit := storage.AuditEntry{
		ActorUserID: actor.UserID(),
		Action:      storage.ActionUpdateDonation,
		Description: fmt.Sprintf("Updated donation %d", donation.ID),
		Details: map[string]any{
			"food_type": donation.FoodType,
			"quantity":  donation.Quantity.String(),
			"unit":      string(donation.Unit),
		},
		OccurredAt: now,
	}
	err = e.store.UpdatePendingDonation(ctx, donation, audit)
	if errors.Is(err, repository.ErrConflict) {
		return nil, e.fail(op, e.classifyLostUpdate(ctx, id))
	}
	if err != nil {
		return nil, e.fail(op, apperr.Internal("failed to update donation", err))
	}
	return donation, nil
}

// Cancel withdraws a pending donation owned by the acting donor.
func (e *Engine) Cancel(ctx context.Context, actor Actor, id int64) (*storage.Donation, error) {
	const op = "cancel"
	donor, err := requireDonor(actor, "cancel donations")
	if err != nil {
		return nil, e.fail(op, err)
	}
	donation, err := e.load(ctx, id)
	if err != nil {
		return nil, e.fail(op, err)
	}
	if err := ownedBy(donation, donor); err != nil {
		return nil, e.fail(op, err)
	}
	if donation.Status != storage.StatusPending {
		return nil, e.fail(op, stateError(donation.Status))
	}

	now := e.clock()
	audit := storage.AuditEntry{
		ActorUserID: actor.UserID(),
		Action:      storage.ActionCancelDonation,
		Description: fmt.Sprintf("Cancelled donation %d", id),
		OccurredAt:  now,
	}
	err = e.store.CancelDonation(ctx, id, now, audit)
	if errors.Is(err, repository.ErrConflict) {
		return nil, e.fail(op, e.classifyLostUpdate(ctx, id))
	}
	if err != nil {
		return nil, e.fail(op, apperr.Internal("failed to cancel donation", err))
	}

	donation.Status = storage.StatusCancelled
	donation.UpdatedAt = now
	metrics.DonationsCancelledTotal.Inc()
	e.logger.Info("donation cancelled", zap.Int64("donation_id", id))
	return donation, nil
}

// classifyLostUpdate turns a lost conditional update into the state error
// matching whatever status won.
func (e *Engine) classifyLostUpdate(ctx context.Context, id int64) error {
	current, err := e.load(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == storage.StatusPending {
		return apperr.State("concurrent_update", "donation changed concurrently, retry")
	}
	return stateError(current.Status)
}

// Acceptance is the outcome of a successful Accept.
type Acceptance struct {
	Donation  *storage.Donation      `json:"donation"`
	Reception *storage.Reception     `json:"reception"`
	Event     *storage.TrackingEvent `json:"tracking_event"`
}

// Accept claims a pending donation for the acting organization. Of several
// concurrent calls exactly one succeeds; the rest fail with already_claimed.
func (e *Engine) Accept(ctx context.Context, actor Actor, id int64, in AcceptInput) (*Acceptance, error) {
	const op = "accept"
	org, err := requireOrganization(actor, "accept donations")
	if err != nil {
		return nil, e.fail(op, err)
	}
	donation, err := e.load(ctx, id)
	if err != nil {
		return nil, e.fail(op, err)
	}
	switch donation.Status {
	case storage.StatusPending:
	case storage.StatusInTransit, storage.StatusDelivered:
		return nil, e.fail(op, apperr.State("already_claimed", "donation was already accepted by an organization"))
	default:
		return nil, e.fail(op, stateError(donation.Status))
	}

	now := e.clock()
	dest := e.resolver.Resolve(ctx, donation, org.Organization)

	responsible := in.ResponsibleName
	if responsible == "" {
		responsible = org.User.FullName()
	}
	rec := &storage.Reception{
		OrganizationID:   org.Organization.ID,
		ReceivedAt:       now,
		QuantityReceived: donation.Quantity,
		ResponsibleName:  responsible,
		Comments:         in.Comments,
	}
	event := &storage.TrackingEvent{
		OrganizationID: org.Organization.ID,
		Status:         storage.TrackingInTransit,
		Location:       dest.Name,
		Latitude:       dest.Latitude,
		Longitude:      dest.Longitude,
		Comment:        fmt.Sprintf("Picked up by %s, heading to %s", org.Organization.Name, dest.Name),
		ActorUserID:    actor.UserID(),
		RecordedAt:     now,
	}
	audit := storage.AuditEntry{
		ActorUserID: actor.UserID(),
		Action:      storage.ActionReceiveDonation,
		Description: fmt.Sprintf("%s accepted donation %d", org.Organization.Name, id),
		Details: map[string]any{
			"organization_id": org.Organization.ID,
			"destination":     dest.Name,
			"quantity":        donation.Quantity.String(),
		},
		OccurredAt: now,
	}

	err = e.store.AcceptDonation(ctx, id, rec, event, audit)
	if errors.Is(err, repository.ErrConflict) {
		metrics.AcceptConflictsTotal.Inc()
		e.logger.Info("accept lost the race",
			zap.Int64("donation_id", id),
			zap.Int64("organization_id", org.Organization.ID),
		)
		return nil, e.fail(op, apperr.State("already_claimed", "donation was already accepted by an organization"))
	}
	if err != nil {
		return nil, e.fail(op, apperr.Internal("failed to accept donation", err))
	}

	donation.Status = storage.StatusInTransit
	donation.UpdatedAt = now
	metrics.DonationsAcceptedTotal.Inc()
	e.logger.Info("donation accepted",
		zap.Int64("donation_id", id),
		zap.Int64("organization_id", org.Organization.ID),
		zap.String("destination", dest.Name),
	)
	return &Acceptance{Donation: donation, Reception: rec, Event: event}, nil
}

// Complete marks an in-transit donation as delivered. Only the system may
// complete; calling it again reports already_terminal and appends nothing.
func (e *Engine) Complete(ctx context.Context, actor Actor, id int64) (*storage.Donation, error) {
	const op = "complete"
	if _, ok := actor.(SystemActor); !ok {
		return nil, e.fail(op, apperr.Permission("wrong_role", "deliveries are completed by the system"))
	}
	donation, err := e.load(ctx, id)
	if err != nil {
		return nil, e.fail(op, err)
	}
	switch donation.Status {
	case storage.StatusInTransit:
	case storage.StatusPending:
		return nil, e.fail(op, apperr.State("not_in_transit", "donation has not been accepted yet"))
	default:
		return nil, e.fail(op, stateError(donation.Status))
	}

	now := e.clock()
	event := &storage.TrackingEvent{
		Status:     storage.TrackingDelivered,
		Comment:    e.narrator.Narrate(ctx, donation),
		RecordedAt: now,
	}
	active, err := e.store.LatestTrackingEvent(ctx, id, storage.TrackingInTransit)
	switch {
	case err == nil:
		event.OrganizationID = active.OrganizationID
		event.Location = active.Location
		event.Latitude = active.Latitude
		event.Longitude = active.Longitude
	case errors.Is(err, repository.ErrObjectNotFound):
		rec, recErr := e.store.ReceptionFor(ctx, id)
		if recErr != nil {
			return nil, e.fail(op, apperr.Internal("in-transit donation has no reception", recErr))
		}
		event.OrganizationID = rec.OrganizationID
	default:
		return nil, e.fail(op, apperr.Internal("failed to load active tracking event", err))
	}

	audit := storage.AuditEntry{
		Action:      storage.ActionDeliverDonation,
		Description: fmt.Sprintf("Donation %d delivered at %s", id, event.Location),
		Details: map[string]any{
			"organization_id": event.OrganizationID,
			"comment":         event.Comment,
		},
		OccurredAt: now,
	}
	err = e.store.CompleteDonation(ctx, id, event, audit)
	if errors.Is(err, repository.ErrConflict) {
		return nil, e.fail(op, e.classifyLostUpdate(ctx, id))
	}
	if err != nil {
		return nil, e.fail(op, apperr.Internal("failed to complete donation", err))
	}

	donation.Status = storage.StatusDelivered
	donation.UpdatedAt = now
	metrics.DonationsDeliveredTotal.Inc()
	e.logger.Info("donation delivered", zap.Int64("donation_id", id))
	return donation, nil
}

// TrackingView is what a participant sees when following a delivery.
type TrackingView struct {
	Donation  *storage.Donation        `json:"donation"`
	Reception *storage.Reception       `json:"reception,omitempty"`
	Events    []*storage.TrackingEvent `json:"events"`
	Active    *storage.TrackingEvent   `json:"active,omitempty"`
	Elapsed   time.Duration            `json:"elapsed_ns"`
	Remaining time.Duration            `json:"remaining_ns"`
}

// Track returns the delivery view of a donation. An in-transit donation
// whose active event is overdue is completed before the view is built.
func (e *Engine) Track(ctx context.Context, actor Actor, id int64) (*TrackingView, error) {
	const op = "track"
	donation, err := e.load(ctx, id)
	if err != nil {
		return nil, e.fail(op, err)
	}
	reception, err := e.authorizeView(ctx, actor, donation)
	if err != nil {
		return nil, e.fail(op, err)
	}

	if donation.Status == storage.StatusInTransit {
		donation, err = e.completeIfOverdue(ctx, donation)
		if err != nil {
			return nil, e.fail(op, err)
		}
	}

	events, err := e.store.TrackingEvents(ctx, id)
	if err != nil {
		return nil, e.fail(op, apperr.Internal("failed to load tracking", err))
	}

	view := &TrackingView{Donation: donation, Reception: reception, Events: events}
	if donation.Status == storage.StatusInTransit {
		for i := len(events) - 1; i >= 0; i-- {
			if events[i].Status == storage.TrackingInTransit {
				view.Active = events[i]
				break
			}
		}
		if view.Active != nil {
			now := e.clock()
			view.Elapsed = now.Sub(view.Active.RecordedAt)
			view.Remaining = remaining(view.Active.RecordedAt, now, e.threshold)
		}
	}
	return view, nil
}

func (e *Engine) completeIfOverdue(ctx context.Context, donation *storage.Donation) (*storage.Donation, error) {
	active, err := e.store.LatestTrackingEvent(ctx, donation.ID, storage.TrackingInTransit)
	if errors.Is(err, repository.ErrObjectNotFound) {
		return donation, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to load active tracking event", err)
	}
	if !IsOverdue(active.RecordedAt, e.clock(), e.threshold) {
		return donation, nil
	}

	completed, err := e.Complete(ctx, SystemActor{}, donation.ID)
	if err == nil {
		return completed, nil
	}
	if apperr.KindOf(err) != apperr.KindState {
		return nil, err
	}
	// Another reader completed it first.
	return e.load(ctx, donation.ID)
}

// authorizeView lets the owning donor and the receiving organization see a
// donation's delivery. It returns the reception when there is one.
func (e *Engine) authorizeView(ctx context.Context, actor Actor, donation *storage.Donation) (*storage.Reception, error) {
	reception, err := e.store.ReceptionFor(ctx, donation.ID)
	if errors.Is(err, repository.ErrObjectNotFound) {
		reception, err = nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to load reception", err)
	}

	switch a := actor.(type) {
	case DonorActor:
		if err := ownedBy(donation, a); err != nil {
			return nil, err
		}
	case OrganizationActor:
		if reception == nil || reception.OrganizationID != a.Organization.ID {
			return nil, apperr.Permission("not_receiver", "donation was not received by this organization")
		}
	case SystemActor:
	default:
		return nil, apperr.Permission("wrong_role", "unknown actor")
	}
	return reception, nil
}

// Mine lists the donations a donor created or an organization received.
func (e *Engine) Mine(ctx context.Context, actor Actor) ([]*storage.Donation, error) {
	const op = "mine"
	var (
		donations []*storage.Donation
		err       error
	)
	switch a := actor.(type) {
	case DonorActor:
		donations, err = e.store.DonationsByDonor(ctx, a.Donor.ID)
	case OrganizationActor:
		donations, err = e.store.DonationsByOrganization(ctx, a.Organization.ID)
	default:
		return nil, e.fail(op, apperr.Permission("wrong_role", "only donors and organizations have donations"))
	}
	if err != nil {
		return nil, e.fail(op, apperr.Internal("failed to list donations", err))
	}
	return donations, nil
}

// Available lists pending donations an organization may accept.
func (e *Engine) Available(ctx context.Context, actor Actor) ([]*storage.Donation, error) {
	const op = "available"
	if _, err := requireOrganization(actor, "browse available donations"); err != nil {
		return nil, e.fail(op, err)
	}
	donations, err := e.store.PendingDonations(ctx)
	if err != nil {
		return nil, e.fail(op, apperr.Internal("failed to list available donations", err))
	}
	return donations, nil
}

// History returns the audit trail of one donation.
func (e *Engine) History(ctx context.Context, actor Actor, id int64) ([]*storage.AuditEntry, error) {
	const op = "history"
	donation, err := e.load(ctx, id)
	if err != nil {
		return nil, e.fail(op, err)
	}
	if _, err := e.authorizeView(ctx, actor, donation); err != nil {
		return nil, e.fail(op, err)
	}
	entries, err := e.store.DonationHistory(ctx, id)
	if err != nil {
		return nil, e.fail(op, apperr.Internal("failed to load history", err))
	}
	return entries, nil
}
