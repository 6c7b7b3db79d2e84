// Package export renders booking lists as spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"krishisetu-api-server/internal/models"

	"github.com/xuri/excelize/v2"
)

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var bookingHeader = []interface{}{
	"booking_id",
	"user_id",
	"user_name",
	"crop",
	"quantity",
	"start_date",
	"end_date",
	"status",
	"cost",
	"special_instructions",
	"created_at",
}

// Bookings writes one sheet named after the facility with a row per booking.
// names maps user ids to display names; missing users get an empty cell.
func Bookings(facilityName string, bookings []models.Booking, names map[string]string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if name := sheetName(facilityName); name != "" {
		if err := f.SetSheetName(sheet, name); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
		sheet = name
	}

	if err := f.SetSheetRow(sheet, "A1", &bookingHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, b := range bookings {
		row := []interface{}{
			b.ID.Hex(),
			b.User.Hex(),
			names[b.User.Hex()],
			b.Crop,
			b.Quantity,
			b.StartDate.UTC().Format(time.DateOnly),
			b.EndDate.UTC().Format(time.DateOnly),
			string(b.Status),
			b.Cost,
			b.SpecialInstructions,
			b.CreatedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("cell for row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

// sheetName trims a facility name to what Excel accepts as a sheet title.
// Titles may not start or end with an apostrophe.
func sheetName(name string) string {
	out := make([]rune, 0, 31)
	for _, r := range strings.Trim(name, "'") {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			continue
		}
		out = append(out, r)
		if len(out) == 31 {
			break
		}
	}
	return strings.TrimRight(strings.TrimSpace(string(out)), "'")
}
