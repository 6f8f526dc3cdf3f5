package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel-panel/models"
)

func samplePanel() *models.Table {
	tbl := models.NewTable("hotel_panel", true, models.NightsSpent, models.GDP)
	tbl.Append("FR", month(2020, time.February), models.Float(7), models.Null)
	tbl.Append("DE", month(2020, time.January), models.Float(10), models.Float(1.5))
	return tbl
}

func TestToLong(t *testing.T) {
	long := ToLong(samplePanel())
	require.Len(t, long, 4)

	assert.Equal(t, LongRow{Region: "FR", Month: month(2020, time.February), Variable: models.NightsSpent, Position: 0, Value: models.Float(7)}, long[0])
	assert.Equal(t, LongRow{Region: "FR", Month: month(2020, time.February), Variable: models.GDP, Position: 1, Value: models.Null}, long[1])
	assert.Equal(t, models.GDP, long[3].Variable)
	assert.Equal(t, models.Float(1.5), long[3].Value)
}

func TestFromLongRestoresPanel(t *testing.T) {
	long := ToLong(samplePanel())
	// Rows arrive in storage order, not insertion order.
	long[0], long[3] = long[3], long[0]

	got := FromLong("hotel_panel", long)
	assert.True(t, got.Regional)
	assert.Equal(t, []string{models.NightsSpent, models.GDP}, got.Columns)
	require.Equal(t, 2, got.Len())

	assert.Equal(t, "DE", got.Rows[0].Region)
	assert.Equal(t, models.Float(10), got.Rows[0].Values[0])
	assert.Equal(t, models.Float(1.5), got.Rows[0].Values[1])
	assert.Equal(t, "FR", got.Rows[1].Region)
	assert.False(t, got.Rows[1].Values[1].Valid)
}

func TestFromLongMonthOnly(t *testing.T) {
	got := FromLong("fx", []LongRow{
		{Month: month(2020, time.January), Variable: models.EURUSD, Position: 0, Value: models.Float(1.1)},
	})
	assert.False(t, got.Regional)
	require.Equal(t, 1, got.Len())
}

func TestInsertStatement(t *testing.T) {
	runID := uuid.MustParse("3f2c1b1e-7d1a-4f5e-9b8c-1a2b3c4d5e6f")
	long := ToLong(samplePanel())[:2]

	query, args := insertStatement("hotel_panel", runID, long)

	assert.Contains(t, query, "($1,$2,$3,$4,$5,$6,$7),($8,$9,$10,$11,$12,$13,$14)")
	assert.True(t, strings.Contains(query, "ON CONFLICT (panel, region, month, variable) DO NOTHING"))
	require.Len(t, args, 14)
	assert.Equal(t, "hotel_panel", args[0])
	assert.Equal(t, "FR", args[1])
	assert.Equal(t, "2020-02-01", args[2])
	assert.Equal(t, models.NightsSpent, args[3])
	assert.Equal(t, 0, args[4])
	assert.Equal(t, models.Float(7), args[5])
	assert.Equal(t, runID.String(), args[6])
	assert.Equal(t, models.Null, args[12])
}
