package export

import (
	"bytes"
	"testing"
	"time"

	"krishisetu-api-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBookingsWorkbook(t *testing.T) {
	user := primitive.NewObjectID()
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	bookings := []models.Booking{{
		ID:        primitive.NewObjectID(),
		User:      user,
		Crop:      "potato",
		Quantity:  60,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 5),
		Status:    models.BookingConfirmed,
		Cost:      600,
		CreatedAt: start,
	}}

	buf, err := Bookings("Nashik: Cold/Chain", bookings, map[string]string{user.Hex(): "Ramesh"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	assert.Equal(t, "Nashik ColdChain", sheet)

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "booking_id", rows[0][0])
	assert.Equal(t, "Ramesh", rows[1][2])
	assert.Equal(t, "potato", rows[1][3])
	assert.Equal(t, "60", rows[1][4])
	assert.Equal(t, "2026-01-15", rows[1][6])
	assert.Equal(t, "confirmed", rows[1][7])
}

func TestSheetNameLength(t *testing.T) {
	name := sheetName("A very long cold storage facility name in Maharashtra")
	assert.Len(t, []rune(name), 31)
}

func TestSheetNameWithApostrophes(t *testing.T) {
	assert.Equal(t, "Ravi's Store", sheetName("'Ravi's Store'"))
	assert.Equal(t, "", sheetName("''"))

	for _, name := range []string{"'Ravi's Store'", "''", "[*]"} {
		buf, err := Bookings(name, nil, nil)
		require.NoError(t, err, name)

		f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		_ = f.Close()
	}
}
