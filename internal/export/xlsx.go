// Package export renders an organization's received donations as a
// spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

const (
	SheetName   = "Donaciones recibidas"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dateLayout  = "2006-01-02 15:04"
)

var header = []interface{}{
	"ID",
	"Tipo de alimento",
	"Cantidad",
	"Unidad",
	"Donador",
	"Fecha de recepción",
	"Estado",
	"Descripción",
}

var columnWidths = []float64{8, 28, 12, 12, 30, 20, 14, 40}

// FileName returns the attachment name for an organization's export.
func FileName(organizationID int64) string {
	return fmt.Sprintf("donaciones_recibidas_%d.xlsx", organizationID)
}

// WriteReceived writes rows to w as a single-sheet workbook. Quantities are
// written as numbers so the sheet can sum them.
func WriteReceived(w io.Writer, rows []*storage.ReportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		quantity, _ := row.Quantity.Float64()
		values := []interface{}{
			row.DonationID,
			row.FoodType,
			quantity,
			string(row.Unit),
			row.DonorName,
			row.ReceivedAt.Format(dateLayout),
			string(row.Status),
			row.Description,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write donation %d: %w", row.DonationID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
