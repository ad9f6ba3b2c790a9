package storage

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
)

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func userToRow(u *User) *repository.User {
	return &repository.User{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Phone:        u.Phone,
		Role:         string(u.Role),
		Active:       u.Active,
		RegisteredAt: u.RegisteredAt,
	}
}

func userFromRow(r *repository.User) *User {
	return &User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Phone:        r.Phone,
		Role:         Role(r.Role),
		Active:       r.Active,
		RegisteredAt: r.RegisteredAt,
	}
}

func donorToRow(d *Donor) *repository.Donor {
	return &repository.Donor{
		ID:           d.ID,
		UserID:       d.UserID,
		BusinessName: d.BusinessName,
		Kind:         string(d.Kind),
		City:         d.City,
		Description:  d.Description,
		CreatedAt:    d.CreatedAt,
	}
}

func donorFromRow(r *repository.Donor) *Donor {
	return &Donor{
		ID:           r.ID,
		UserID:       r.UserID,
		BusinessName: r.BusinessName,
		Kind:         DonorKind(r.Kind),
		City:         r.City,
		Description:  r.Description,
		CreatedAt:    r.CreatedAt,
	}
}

func organizationToRow(o *Organization) *repository.Organization {
	return &repository.Organization{
		ID:          o.ID,
		UserID:      o.UserID,
		Name:        o.Name,
		Kind:        string(o.Kind),
		City:        o.City,
		Description: o.Description,
		Capacity:    nullDecimal(o.Capacity),
		CreatedAt:   o.CreatedAt,
	}
}

func organizationFromRow(r *repository.Organization) *Organization {
	return &Organization{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Kind:        OrganizationKind(r.Kind),
		City:        r.City,
		Description: r.Description,
		Capacity:    decimalPtr(r.Capacity),
		CreatedAt:   r.CreatedAt,
	}
}

func donationToRow(d *Donation) *repository.Donation {
	return &repository.Donation{
		ID:          d.ID,
		DonorID:     d.DonorID,
		FoodType:    d.FoodType,
		Quantity:    d.Quantity,
		Unit:        string(d.Unit),
		ExpiresOn:   d.ExpiresOn,
		Description: d.Description,
		Status:      string(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func donationFromRow(r *repository.Donation) *Donation {
	return &Donation{
		ID:          r.ID,
		DonorID:     r.DonorID,
		FoodType:    r.FoodType,
		Quantity:    r.Quantity,
		Unit:        Unit(r.Unit),
		ExpiresOn:   r.ExpiresOn,
		Description: r.Description,
		Status:      DonationStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func donationsFromRows(rows []*repository.Donation) []*Donation {
	out := make([]*Donation, len(rows))
	for i, r := range rows {
		out[i] = donationFromRow(r)
	}
	return out
}

func receptionToRow(r *Reception) *repository.Reception {
	return &repository.Reception{
		ID:               r.ID,
		DonationID:       r.DonationID,
		OrganizationID:   r.OrganizationID,
		ReceivedAt:       r.ReceivedAt,
		QuantityReceived: r.QuantityReceived,
		ResponsibleName:  r.ResponsibleName,
		Comments:         r.Comments,
	}
}

func receptionFromRow(r *repository.Reception) *Reception {
	return &Reception{
		ID:               r.ID,
		DonationID:       r.DonationID,
		OrganizationID:   r.OrganizationID,
		ReceivedAt:       r.ReceivedAt,
		QuantityReceived: r.QuantityReceived,
		ResponsibleName:  r.ResponsibleName,
		Comments:         r.Comments,
	}
}

func trackingToRow(e *TrackingEvent) *repository.TrackingEvent {
	return &repository.TrackingEvent{
		ID:             e.ID,
		DonationID:     e.DonationID,
		OrganizationID: e.OrganizationID,
		Status:         string(e.Status),
		Location:       e.Location,
		Latitude:       nullDecimal(e.Latitude),
		Longitude:      nullDecimal(e.Longitude),
		Temperature:    nullDecimal(e.Temperature),
		Humidity:       nullDecimal(e.Humidity),
		Comment:        e.Comment,
		ActorUserID:    e.ActorUserID,
		RecordedAt:     e.RecordedAt,
	}
}

func trackingFromRow(r *repository.TrackingEvent) *TrackingEvent {
	return &TrackingEvent{
		ID:             r.ID,
		DonationID:     r.DonationID,
		OrganizationID: r.OrganizationID,
		Status:         TrackingStatus(r.Status),
		Location:       r.Location,
		Latitude:       decimalPtr(r.Latitude),
		Longitude:      decimalPtr(r.Longitude),
		Temperature:    decimalPtr(r.Temperature),
		Humidity:       decimalPtr(r.Humidity),
		Comment:        r.Comment,
		ActorUserID:    r.ActorUserID,
		RecordedAt:     r.RecordedAt,
	}
}

func auditToRow(e *AuditEntry) (*repository.AuditEntry, error) {
	row := &repository.AuditEntry{
		ID:          e.ID,
		ActorUserID: e.ActorUserID,
		Action:      string(e.Action),
		DonationID:  e.DonationID,
		Description: e.Description,
		OccurredAt:  e.OccurredAt,
	}
	if len(e.Details) > 0 {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return nil, err
		}
		row.Details = details
	}
	return row, nil
}

func auditFromRow(r *repository.AuditEntry) *AuditEntry {
	entry := &AuditEntry{
		ID:          r.ID,
		ActorUserID: r.ActorUserID,
		Action:      ActionKind(r.Action),
		DonationID:  r.DonationID,
		Description: r.Description,
		OccurredAt:  r.OccurredAt,
	}
	if len(r.Details) > 0 {
		// Details were written by auditToRow; a decode failure leaves them empty.
		_ = json.Unmarshal(r.Details, &entry.Details)
	}
	return entry
}

func reportFromRow(r *repository.ReportRow) *ReportRow {
	return &ReportRow{
		DonationID:  r.DonationID,
		FoodType:    r.FoodType,
		Quantity:    r.Quantity,
		Unit:        Unit(r.Unit),
		DonorName:   r.DonorName,
		ReceivedAt:  r.ReceivedAt,
		Status:      DonationStatus(r.Status),
		Description: r.Description,
	}
}

func revokedSessionToRow(r *RevokedSession) *repository.RevokedSession {
	return &repository.RevokedSession{
		ID:        r.ID,
		UserID:    r.UserID,
		ExpiresAt: r.ExpiresAt,
		RevokedAt: r.RevokedAt,
	}
}
