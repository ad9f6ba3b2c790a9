package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
)

// MemoryStorage keeps everything in process. It honours the same
// conditional transitions as Storage, which makes it usable both for the
// memory driver and for lifecycle tests.
type MemoryStorage struct {
	mu sync.Mutex

	users         map[int64]*User
	donors        map[int64]*Donor
	organizations map[int64]*Organization
	donations     map[int64]*Donation
	receptions    []*Reception
	tracking      []*TrackingEvent
	audit         []*AuditEntry
	revoked       map[string]RevokedSession

	nextID  int64
	timeNow func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:         make(map[int64]*User),
		donors:        make(map[int64]*Donor),
		organizations: make(map[int64]*Organization),
		donations:     make(map[int64]*Donation),
		revoked:       make(map[string]RevokedSession),
		timeNow:       time.Now,
	}
}

func (m *MemoryStorage) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStorage) appendAudit(entry AuditEntry) {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = m.timeNow().UTC()
	}
	entry.ID = m.id()
	m.audit = append(m.audit, &entry)
}

func (m *MemoryStorage) RegisterUser(_ context.Context, user *User, donor *Donor, org *Organization, audit AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("failed to register user: %w", repository.ErrConflict)
		}
	}

	user.ID = m.id()
	stored := *user
	m.users[user.ID] = &stored

	switch {
	case donor != nil:
		donor.ID = m.id()
		donor.UserID = user.ID
		d := *donor
		m.donors[donor.ID] = &d
	case org != nil:
		org.ID = m.id()
		org.UserID = user.ID
		o := *org
		m.organizations[org.ID] = &o
	}

	audit.ActorUserID = &stored.ID
	m.appendAudit(audit)
	return nil
}

func (m *MemoryStorage) UserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			found := *u
			return &found, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", email, repository.ErrObjectNotFound)
}

func (m *MemoryStorage) UserByID(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, repository.ErrObjectNotFound)
	}
	found := *u
	return &found, nil
}

func (m *MemoryStorage) DonorByUserID(_ context.Context, userID int64) (*Donor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.donors {
		if d.UserID == userID {
			found := *d
			return &found, nil
		}
	}
	return nil, fmt.Errorf("donor profile of user %d: %w", userID, repository.ErrObjectNotFound)
}

func (m *MemoryStorage) OrganizationByUserID(_ context.Context, userID int64) (*Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.organizations {
		if o.UserID == userID {
			found := *o
			return &found, nil
		}
	}
	return nil, fmt.Errorf("organization profile of user %d: %w", userID, repository.ErrObjectNotFound)
}

func (m *MemoryStorage) AppendAudit(_ context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendAudit(entry)
	return nil
}

func (m *MemoryStorage) RevokeSession(_ context.Context, session RevokedSession, audit AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revoked[session.ID]; !ok {
		if session.RevokedAt.IsZero() {
			session.RevokedAt = m.timeNow().UTC()
		}
		m.revoked[session.ID] = session
	}
	m.appendAudit(audit)
	return nil
}

func (m *MemoryStorage) SessionRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[sessionID]
	return ok, nil
}

func (m *MemoryStorage) CreateDonation(_ context.Context, donation *Donation, audit AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	donation.ID = m.id()
	stored := *donation
	m.donations[donation.ID] = &stored

	audit.DonationID = &stored.ID
	m.appendAudit(audit)
	return nil
}

func (m *MemoryStorage) GetDonation(_ context.Context, id int64) (*Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return nil, fmt.Errorf("donation %d: %w", id, repository.ErrObjectNotFound)
	}
	found := *d
	return &found, nil
}

func (m *MemoryStorage) UpdatePendingDonation(_ context.Context, donation *Donation, audit AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.donations[donation.ID]
	if !ok || current.Status != StatusPending || current.DonorID != donation.DonorID {
		return fmt.Errorf("failed to update donation: %w", repository.ErrConflict)
	}
	current.FoodType = donation.FoodType
	current.Quantity = donation.Quantity
	current.Unit = donation.Unit
	current.ExpiresOn = donation.ExpiresOn
	current.Description = donation.Description
	current.UpdatedAt = donation.UpdatedAt

	id := donation.ID
	audit.DonationID = &id
	m.appendAudit(audit)
	return nil
}

// transition is the in-memory counterpart of the conditional UPDATE; the
// caller must hold m.mu.
func (m *MemoryStorage) transition(id int64, from, to DonationStatus, at time.Time) error {
	d, ok := m.donations[id]
	if !ok || d.Status != from {
		return repository.ErrConflict
	}
	d.Status = to
	d.UpdatedAt = at
	return nil
}

func (m *MemoryStorage) CancelDonation(_ context.Context, id int64, at time.Time, audit AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(id, StatusPending, StatusCancelled, at); err != nil {
		return fmt.Errorf("failed to cancel donation: %w", err)
	}
	audit.DonationID = &id
	m.appendAudit(audit)
	return nil
}

func (m *MemoryStorage) AcceptDonation(_ context.Context, id int64, rec *Reception, event *TrackingEvent, audit AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.receptions {
		if r.DonationID == id && r.OrganizationID == rec.OrganizationID {
			return fmt.Errorf("failed to accept donation: %w", repository.ErrConflict)
		}
	}
	if err := m.transition(id, StatusPending, StatusInTransit, rec.ReceivedAt); err != nil {
		return fmt.Errorf("failed to accept donation: %w", err)
	}

	rec.ID = m.id()
	rec.DonationID = id
	storedRec := *rec
	m.receptions = append(m.receptions, &storedRec)

	event.ID = m.id()
	event.DonationID = id
	storedEvent := *event
	m.tracking = append(m.tracking, &storedEvent)

	audit.DonationID = &id
	m.appendAudit(audit)
	return nil
}

func (m *MemoryStorage) CompleteDonation(_ context.Context, id int64, event *TrackingEvent, audit AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(id, StatusInTransit, StatusDelivered, event.RecordedAt); err != nil {
		return fmt.Errorf("failed to complete donation: %w", err)
	}

	event.ID = m.id()
	event.DonationID = id
	stored := *event
	m.tracking = append(m.tracking, &stored)

	audit.DonationID = &id
	m.appendAudit(audit)
	return nil
}

func (m *MemoryStorage) LatestTrackingEvent(_ context.Context, donationID int64, status TrackingStatus) (*TrackingEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *TrackingEvent
	for _, e := range m.tracking {
		if e.DonationID != donationID || e.Status != status {
			continue
		}
		if latest == nil || !e.RecordedAt.Before(latest.RecordedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("latest %s event of donation %d: %w", status, donationID, repository.ErrObjectNotFound)
	}
	found := *latest
	return &found, nil
}

func (m *MemoryStorage) TrackingEvents(_ context.Context, donationID int64) ([]*TrackingEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var events []*TrackingEvent
	for _, e := range m.tracking {
		if e.DonationID == donationID {
			found := *e
			events = append(events, &found)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].RecordedAt.Before(events[j].RecordedAt)
	})
	return events, nil
}

func (m *MemoryStorage) ReceptionFor(_ context.Context, donationID int64) (*Reception, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.receptions {
		if r.DonationID == donationID {
			found := *r
			return &found, nil
		}
	}
	return nil, fmt.Errorf("reception of donation %d: %w", donationID, repository.ErrObjectNotFound)
}

func (m *MemoryStorage) selectDonations(keep func(*Donation) bool) []*Donation {
	var out []*Donation
	for _, d := range m.donations {
		if keep(d) {
			found := *d
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *MemoryStorage) DonationsByDonor(_ context.Context, donorID int64) ([]*Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectDonations(func(d *Donation) bool { return d.DonorID == donorID }), nil
}

func (m *MemoryStorage) DonationsByOrganization(_ context.Context, organizationID int64) ([]*Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	received := make(map[int64]bool)
	for _, r := range m.receptions {
		if r.OrganizationID == organizationID {
			received[r.DonationID] = true
		}
	}
	return m.selectDonations(func(d *Donation) bool { return received[d.ID] }), nil
}

func (m *MemoryStorage) PendingDonations(_ context.Context) ([]*Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectDonations(func(d *Donation) bool { return d.Status == StatusPending }), nil
}

func (m *MemoryStorage) DonationHistory(_ context.Context, donationID int64) ([]*AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []*AuditEntry
	for _, e := range m.audit {
		if e.DonationID != nil && *e.DonationID == donationID {
			found := *e
			entries = append(entries, &found)
		}
	}
	return entries, nil
}

func (m *MemoryStorage) ReceivedReport(_ context.Context, organizationID int64, status DonationStatus) ([]*ReportRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var report []*ReportRow
	for _, r := range m.receptions {
		if r.OrganizationID != organizationID {
			continue
		}
		d, ok := m.donations[r.DonationID]
		if !ok || (status != "" && d.Status != status) {
			continue
		}
		report = append(report, &ReportRow{
			DonationID:  d.ID,
			FoodType:    d.FoodType,
			Quantity:    d.Quantity,
			Unit:        d.Unit,
			DonorName:   m.donorName(d.DonorID),
			ReceivedAt:  r.ReceivedAt,
			Status:      d.Status,
			Description: d.Description,
		})
	}
	sort.SliceStable(report, func(i, j int) bool {
		return report[i].ReceivedAt.After(report[j].ReceivedAt)
	})
	return report, nil
}

func (m *MemoryStorage) donorName(donorID int64) string {
	donor, ok := m.donors[donorID]
	if !ok {
		return ""
	}
	if donor.BusinessName != "" {
		return donor.BusinessName
	}
	if u, ok := m.users[donor.UserID]; ok {
		return u.FullName()
	}
	return ""
}

// AuditEntries returns a copy of the whole log in append order.
func (m *MemoryStorage) AuditEntries() []*AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*AuditEntry, len(m.audit))
	for i, e := range m.audit {
		found := *e
		out[i] = &found
	}
	return out
}
