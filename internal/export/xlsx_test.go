package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

func TestWriteReceived(t *testing.T) {
	rows := []*storage.ReportRow{
		{
			DonationID:  7,
			FoodType:    "Pan",
			Quantity:    decimal.RequireFromString("12.5"),
			Unit:        storage.UnitKilograms,
			DonorName:   "Panaderia Soto",
			ReceivedAt:  time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC),
			Status:      storage.StatusDelivered,
			Description: "Pan del dia",
		},
		{
			DonationID: 9,
			FoodType:   "Leche",
			Quantity:   decimal.NewFromInt(30),
			Unit:       storage.UnitLiters,
			DonorName:  "Ana Soto",
			ReceivedAt: time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC),
			Status:     storage.StatusInTransit,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReceived(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Tipo de alimento", got[0][1])
	assert.Equal(t, []string{"7", "Pan", "12.5", "kg", "Panaderia Soto", "2025-03-10 14:05", "delivered", "Pan del dia"}, got[1])
	require.GreaterOrEqual(t, len(got[2]), 7)
	assert.Equal(t, []string{"9", "Leche", "30", "liters", "Ana Soto", "2025-03-11 08:00", "in_transit"}, got[2][:7])
}

func TestWriteReceived_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReceived(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0], 8)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "donaciones_recibidas_4.xlsx", FileName(4))
}
