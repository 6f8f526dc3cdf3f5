package models

// Raw table names. Each is cached as <name>.csv in the raw directory.
const (
	TableNights       = "eurostat_nights"
	TableGDP          = "eurostat_gdp"
	TableUnemployment = "eurostat_unemployment"
	TableTurnover     = "eurostat_turnover"
	TableHICP         = "eurostat_hicp"
	TableCovid        = "covid"
	TableFX           = "fx_rates"
	TableStringency   = "policy_stringency"
	TableMobility     = "mobility"
)

// BaseTable is the mandatory table every other source is joined onto.
const BaseTable = TableNights

// AuxiliaryTables lists the optional tables in merge order.
var AuxiliaryTables = []string{
	TableCovid,
	TableFX,
	TableStringency,
	TableMobility,
	TableGDP,
	TableUnemployment,
	TableTurnover,
	TableHICP,
}
