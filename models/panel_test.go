package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestMonthStartNormalizes(t *testing.T) {
	in := time.Date(2021, time.March, 17, 13, 45, 0, 0, time.FixedZone("CET", 3600))
	got := MonthStart(in)
	assert.Equal(t, month(2021, time.March), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestMonthNumberIsContiguousAcrossYears(t *testing.T) {
	assert.Equal(t, MonthNumber(month(2020, time.December))+1, MonthNumber(month(2021, time.January)))
}

func TestTableDedupeKeepsFirst(t *testing.T) {
	tbl := NewTable("gdp", true, GDP)
	tbl.Append("DE", month(2021, time.January), Float(1))
	tbl.Append("DE", month(2021, time.January), Float(2))
	tbl.Append("FR", month(2021, time.January), Float(3))

	dropped := tbl.Dedupe()

	assert.Equal(t, 1, dropped)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, 1.0, tbl.Rows[0].Values[0].Float64)
}

func TestTableSortByRegionThenMonth(t *testing.T) {
	tbl := NewTable("x", true, "v")
	tbl.Append("FR", month(2021, time.February))
	tbl.Append("DE", month(2021, time.February))
	tbl.Append("DE", month(2021, time.January))

	tbl.Sort()

	assert.Equal(t, "DE", tbl.Rows[0].Region)
	assert.Equal(t, month(2021, time.January), tbl.Rows[0].Month)
	assert.Equal(t, "DE", tbl.Rows[1].Region)
	assert.Equal(t, "FR", tbl.Rows[2].Region)
}

func TestTableAddColumnPadsRows(t *testing.T) {
	tbl := NewTable("x", true, "a")
	tbl.Append("DE", month(2021, time.January), Float(1))

	idx := tbl.AddColumn("b")

	assert.Equal(t, 1, idx)
	assert.Equal(t, []string{"a", "b"}, tbl.Columns)
	assert.False(t, tbl.Rows[0].Values[1].Valid)
	assert.Equal(t, idx, tbl.AddColumn("b"))
}

func TestTableNullCountAbsentColumn(t *testing.T) {
	tbl := NewTable("x", true, "a")
	tbl.Append("DE", month(2021, time.January), Float(1))
	tbl.Append("DE", month(2021, time.February))

	assert.Equal(t, 1, tbl.NullCount("a"))
	assert.Equal(t, 2, tbl.NullCount("missing"))
}

func TestTableHeader(t *testing.T) {
	assert.Equal(t, []string{"region", "month", "gdp"}, NewTable("g", true, GDP).Header())
	assert.Equal(t, []string{"month", "eurusd", "eurgbp"}, NewTable("fx", false, EURUSD, EURGBP).Header())
}

func TestTableCloneIsDeep(t *testing.T) {
	tbl := NewTable("x", true, "a")
	tbl.Append("DE", month(2021, time.January), Float(1))

	c := tbl.Clone()
	c.Rows[0].Values[0] = Float(9)

	assert.Equal(t, 1.0, tbl.Rows[0].Values[0].Float64)
}

func TestTableGroupByRegion(t *testing.T) {
	tbl := NewTable("x", true)
	tbl.Append("DE", month(2021, time.January))
	tbl.Append("DE", month(2021, time.February))
	tbl.Append("FR", month(2021, time.January))

	assert.Equal(t, [][]int{{0, 1}, {2}}, tbl.GroupByRegion())
	assert.Equal(t, []string{"DE", "FR"}, tbl.Regions())
}
