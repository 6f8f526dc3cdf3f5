package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"hotel-panel/models"
	"hotel-panel/utils"
)

func TestXLSXWriterWritePanel(t *testing.T) {
	dir := t.TempDir()
	w := NewXLSXWriter(dir, utils.NewNopLogger())

	tbl := models.NewTable("hotel_panel_clean", true, models.NightsSpent, models.GDP)
	tbl.Append("AT", month(2020, time.January), models.Float(1500), models.Null)
	tbl.Append("AT", month(2020, time.February), models.Float(1200.5), models.Float(3.5))

	require.NoError(t, w.WritePanel(context.Background(), "hotel_panel_clean", tbl))
	require.NoError(t, w.Close())

	f, err := excelize.OpenFile(filepath.Join(dir, "hotel_panel_clean.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"region", "month", "nights_spent", "gdp"}, rows[0])
	assert.Equal(t, []string{"AT", "2020-01-01", "1500"}, rows[1])
	assert.Equal(t, []string{"AT", "2020-02-01", "1200.5", "3.5"}, rows[2])
}
