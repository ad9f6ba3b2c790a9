package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
)

// DonationCache keeps the pending donations in memory. Pending reports false
// until the cache has been loaded.
type DonationCache interface {
	Set(donation *Donation)
	Delete(id int64)
	Pending() ([]*Donation, bool)
}

type Repositories struct {
	Users      UserRepository
	Profiles   ProfileRepository
	Donations  DonationRepository
	Receptions ReceptionRepository
	Tracking   TrackingRepository
	Audit      AuditRepository
	Sessions   SessionRepository
	Outbox     OutboxTaskRepository
}

// Storage is the Postgres backed store. Each state change commits together
// with its audit entry and, when an audit topic is set, the outbox task
// that publishes it.
type Storage struct {
	db         db.DB
	users      UserRepository
	profiles   ProfileRepository
	donations  DonationRepository
	receptions ReceptionRepository
	tracking   TrackingRepository
	audit      AuditRepository
	sessions   SessionRepository
	outbox     OutboxTaskRepository
	cache      DonationCache
	auditTopic string
	logger     *zap.Logger
	timeNow    func() time.Time
}

type Option func(*Storage)

func WithCache(cache DonationCache) Option {
	return func(s *Storage) { s.cache = cache }
}

func WithAuditTopic(topic string) Option {
	return func(s *Storage) { s.auditTopic = topic }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Storage) { s.logger = logger }
}

func NewStorage(database db.DB, repos Repositories, opts ...Option) *Storage {
	s := &Storage{
		db:         database,
		users:      repos.Users,
		profiles:   repos.Profiles,
		donations:  repos.Donations,
		receptions: repos.Receptions,
		tracking:   repos.Tracking,
		audit:      repos.Audit,
		sessions:   repos.Sessions,
		outbox:     repos.Outbox,
		logger:     zap.NewNop(),
		timeNow:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) inTx(ctx context.Context, op string, fn func(tx db.Tx) error) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Warn("rollback failed", zap.String("op", op), zap.Error(rbErr))
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s: %w", op, err)
	}
	return nil
}

func (s *Storage) appendAuditTx(ctx context.Context, tx db.Tx, entry *AuditEntry) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.timeNow().UTC()
	}
	row, err := auditToRow(entry)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}
	if err := s.audit.CreateTx(ctx, tx, row); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	entry.ID = row.ID

	if s.outbox == nil || s.auditTopic == "" {
		return nil
	}
	payload, err := json.Marshal(auditPayload(entry, row.Details))
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}
	task := &repository.OutboxTask{Payload: payload, Topic: s.auditTopic}
	if err := s.outbox.CreateTx(ctx, tx, task); err != nil {
		return fmt.Errorf("failed to create outbox task: %w", err)
	}
	return nil
}

func auditPayload(entry *AuditEntry, details json.RawMessage) repository.AuditLogPayload {
	payload := repository.AuditLogPayload{
		AuditID:     entry.ID,
		ActorUserID: entry.ActorUserID,
		Action:      string(entry.Action),
		DonationID:  entry.DonationID,
		Description: entry.Description,
		Details:     details,
		OccurredAt:  entry.OccurredAt,
		EntityType:  "user",
	}
	switch {
	case entry.DonationID != nil:
		payload.EntityType = "donation"
		payload.EntityID = strconv.FormatInt(*entry.DonationID, 10)
	case entry.ActorUserID != nil:
		payload.EntityID = strconv.FormatInt(*entry.ActorUserID, 10)
	}
	return payload
}

// RegisterUser creates the user and exactly one of donor or org.
func (s *Storage) RegisterUser(ctx context.Context, user *User, donor *Donor, org *Organization, audit AuditEntry) error {
	return s.inTx(ctx, "register user", func(tx db.Tx) error {
		userRow := userToRow(user)
		if err := s.users.CreateTx(ctx, tx, userRow); err != nil {
			return err
		}
		user.ID = userRow.ID

		switch {
		case donor != nil:
			donor.UserID = user.ID
			row := donorToRow(donor)
			if err := s.profiles.CreateDonorTx(ctx, tx, row); err != nil {
				return err
			}
			donor.ID = row.ID
		case org != nil:
			org.UserID = user.ID
			row := organizationToRow(org)
			if err := s.profiles.CreateOrganizationTx(ctx, tx, row); err != nil {
				return err
			}
			org.ID = row.ID
		}

		audit.ActorUserID = &user.ID
		return s.appendAuditTx(ctx, tx, &audit)
	})
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (*User, error) {
	row, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", email, err)
	}
	return userFromRow(row), nil
}

func (s *Storage) UserByID(ctx context.Context, id int64) (*User, error) {
	row, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", id, err)
	}
	return userFromRow(row), nil
}

func (s *Storage) DonorByUserID(ctx context.Context, userID int64) (*Donor, error) {
	row, err := s.profiles.GetDonorByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("donor profile of user %d: %w", userID, err)
	}
	return donorFromRow(row), nil
}

func (s *Storage) OrganizationByUserID(ctx context.Context, userID int64) (*Organization, error) {
	row, err := s.profiles.GetOrganizationByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("organization profile of user %d: %w", userID, err)
	}
	return organizationFromRow(row), nil
}

func (s *Storage) AppendAudit(ctx context.Context, entry AuditEntry) error {
	return s.inTx(ctx, "append audit entry", func(tx db.Tx) error {
		return s.appendAuditTx(ctx, tx, &entry)
	})
}

// RevokeSession ends a session and records the logout in the same
// transaction. Revoking twice is not an error.
func (s *Storage) RevokeSession(ctx context.Context, session RevokedSession, audit AuditEntry) error {
	return s.inTx(ctx, "revoke session", func(tx db.Tx) error {
		if session.RevokedAt.IsZero() {
			session.RevokedAt = s.timeNow().UTC()
		}
		if err := s.sessions.RevokeTx(ctx, tx, revokedSessionToRow(&session)); err != nil {
			return err
		}
		return s.appendAuditTx(ctx, tx, &audit)
	})
}

func (s *Storage) SessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	revoked, err := s.sessions.IsRevoked(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return revoked, nil
}

func (s *Storage) CreateDonation(ctx context.Context, donation *Donation, audit AuditEntry) error {
	err := s.inTx(ctx, "create donation", func(tx db.Tx) error {
		row := donationToRow(donation)
		if err := s.donations.CreateTx(ctx, tx, row); err != nil {
			return err
		}
		donation.ID = row.ID
		audit.DonationID = &donation.ID
		return s.appendAuditTx(ctx, tx, &audit)
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Set(donation)
	}
	return nil
}

func (s *Storage) GetDonation(ctx context.Context, id int64) (*Donation, error) {
	row, err := s.donations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("donation %d: %w", id, err)
	}
	return donationFromRow(row), nil
}

// UpdatePendingDonation fails with repository.ErrConflict when the donation
// left pending or changed owner since it was read.
func (s *Storage) UpdatePendingDonation(ctx context.Context, donation *Donation, audit AuditEntry) error {
	err := s.inTx(ctx, "update donation", func(tx db.Tx) error {
		if err := s.donations.UpdatePendingTx(ctx, tx, donationToRow(donation)); err != nil {
			return err
		}
		audit.DonationID = &donation.ID
		return s.appendAuditTx(ctx, tx, &audit)
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Set(donation)
	}
	return nil
}

func (s *Storage) CancelDonation(ctx context.Context, id int64, at time.Time, audit AuditEntry) error {
	err := s.inTx(ctx, "cancel donation", func(tx db.Tx) error {
		err := s.donations.TransitionStatusTx(ctx, tx, id, string(StatusPending), string(StatusCancelled), at)
		if err != nil {
			return err
		}
		audit.DonationID = &id
		return s.appendAuditTx(ctx, tx, &audit)
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Delete(id)
	}
	return nil
}

// AcceptDonation claims a pending donation. Only one caller wins the
// pending to in_transit update; the others get repository.ErrConflict and
// nothing of theirs is written.
func (s *Storage) AcceptDonation(ctx context.Context, id int64, rec *Reception, event *TrackingEvent, audit AuditEntry) error {
	err := s.inTx(ctx, "accept donation", func(tx db.Tx) error {
		err := s.donations.TransitionStatusTx(ctx, tx, id, string(StatusPending), string(StatusInTransit), rec.ReceivedAt)
		if err != nil {
			return err
		}

		rec.DonationID = id
		recRow := receptionToRow(rec)
		if err := s.receptions.CreateTx(ctx, tx, recRow); err != nil {
			return err
		}
		rec.ID = recRow.ID

		event.DonationID = id
		eventRow := trackingToRow(event)
		if err := s.tracking.CreateTx(ctx, tx, eventRow); err != nil {
			return err
		}
		event.ID = eventRow.ID

		audit.DonationID = &id
		return s.appendAuditTx(ctx, tx, &audit)
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Delete(id)
	}
	return nil
}

// CompleteDonation moves an in-transit donation to delivered and appends
// the delivery event. A second call loses the update and writes nothing.
func (s *Storage) CompleteDonation(ctx context.Context, id int64, event *TrackingEvent, audit AuditEntry) error {
	return s.inTx(ctx, "complete donation", func(tx db.Tx) error {
		err := s.donations.TransitionStatusTx(ctx, tx, id, string(StatusInTransit), string(StatusDelivered), event.RecordedAt)
		if err != nil {
			return err
		}

		event.DonationID = id
		row := trackingToRow(event)
		if err := s.tracking.CreateTx(ctx, tx, row); err != nil {
			return err
		}
		event.ID = row.ID

		audit.DonationID = &id
		return s.appendAuditTx(ctx, tx, &audit)
	})
}

func (s *Storage) LatestTrackingEvent(ctx context.Context, donationID int64, status TrackingStatus) (*TrackingEvent, error) {
	row, err := s.tracking.LatestByStatus(ctx, donationID, string(status))
	if err != nil {
		return nil, fmt.Errorf("latest %s event of donation %d: %w", status, donationID, err)
	}
	return trackingFromRow(row), nil
}

func (s *Storage) TrackingEvents(ctx context.Context, donationID int64) ([]*TrackingEvent, error) {
	rows, err := s.tracking.ListByDonation(ctx, donationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking of donation %d: %w", donationID, err)
	}
	events := make([]*TrackingEvent, len(rows))
	for i, r := range rows {
		events[i] = trackingFromRow(r)
	}
	return events, nil
}

func (s *Storage) ReceptionFor(ctx context.Context, donationID int64) (*Reception, error) {
	row, err := s.receptions.GetByDonationID(ctx, donationID)
	if err != nil {
		return nil, fmt.Errorf("reception of donation %d: %w", donationID, err)
	}
	return receptionFromRow(row), nil
}

func (s *Storage) DonationsByDonor(ctx context.Context, donorID int64) ([]*Donation, error) {
	rows, err := s.donations.ListByDonor(ctx, donorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get donations of donor %d: %w", donorID, err)
	}
	return donationsFromRows(rows), nil
}

func (s *Storage) DonationsByOrganization(ctx context.Context, organizationID int64) ([]*Donation, error) {
	rows, err := s.donations.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get donations of organization %d: %w", organizationID, err)
	}
	return donationsFromRows(rows), nil
}

// PendingDonations serves from the cache once it is loaded.
func (s *Storage) PendingDonations(ctx context.Context) ([]*Donation, error) {
	if s.cache != nil {
		if donations, ok := s.cache.Pending(); ok {
			return donations, nil
		}
	}
	rows, err := s.donations.ListByStatus(ctx, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to get pending donations: %w", err)
	}
	return donationsFromRows(rows), nil
}

func (s *Storage) DonationHistory(ctx context.Context, donationID int64) ([]*AuditEntry, error) {
	rows, err := s.audit.ListByDonation(ctx, donationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history of donation %d: %w", donationID, err)
	}
	entries := make([]*AuditEntry, len(rows))
	for i, r := range rows {
		entries[i] = auditFromRow(r)
	}
	return entries, nil
}

func (s *Storage) ReceivedReport(ctx context.Context, organizationID int64, status DonationStatus) ([]*ReportRow, error) {
	rows, err := s.receptions.ListReport(ctx, organizationID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to build report of organization %d: %w", organizationID, err)
	}
	report := make([]*ReportRow, len(rows))
	for i, r := range rows {
		report[i] = reportFromRow(r)
	}
	return report, nil
}
