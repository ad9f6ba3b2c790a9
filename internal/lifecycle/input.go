package lifecycle

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

const maxFoodTypeLen = 100

var maxQuantity = decimal.RequireFromString("99999999.99")

// DonationInput carries the donor-editable fields of a donation.
type DonationInput struct {
	FoodType    string
	Quantity    decimal.Decimal
	Unit        storage.Unit
	ExpiresOn   *time.Time
	Description string
}

func (in *DonationInput) normalize() error {
	in.FoodType = strings.TrimSpace(in.FoodType)
	in.Description = strings.TrimSpace(in.Description)
	in.Quantity = in.Quantity.Round(2)

	switch {
	case in.FoodType == "":
		return apperr.Validation("missing_food_type", "food type is required")
	case len([]rune(in.FoodType)) > maxFoodTypeLen:
		return apperr.Validation("food_type_too_long", "food type must be at most 100 characters")
	case !in.Quantity.IsPositive():
		return apperr.Validation("quantity_not_positive", "quantity must be greater than zero")
	case in.Quantity.GreaterThan(maxQuantity):
		return apperr.Validation("quantity_too_large", "quantity is too large")
	case !in.Unit.Valid():
		return apperr.Validation("invalid_unit", "unit must be one of kg, liters, units, packages, boxes")
	}

	if in.ExpiresOn != nil {
		day := time.Date(in.ExpiresOn.Year(), in.ExpiresOn.Month(), in.ExpiresOn.Day(), 0, 0, 0, 0, time.UTC)
		in.ExpiresOn = &day
	}
	return nil
}

// AcceptInput holds the optional reception details an organization may add.
type AcceptInput struct {
	ResponsibleName string
	Comments        string
}
