// Package mobility streams the Google Community Mobility Report and averages
// the national retail and workplace series per month.
package mobility

import (
	"context"
	"fmt"
	"io"

	"hotel-panel/models"
	"hotel-panel/sources"
	"hotel-panel/utils"
)

const (
	retailColumn = "retail_and_recreation_percent_change_from_baseline"
	workColumn   = "workplaces_percent_change_from_baseline"
)

// Loader produces the mobility table. The report is several hundred
// megabytes, so it is read as a stream.
type Loader struct {
	opener sources.Opener
	url    string
	logger *utils.Logger
}

// New creates a Loader.
func New(opener sources.Opener, url string, logger *utils.Logger) *Loader {
	return &Loader{opener: opener, url: url, logger: logger}
}

func (l *Loader) Name() string      { return "mobility" }
func (l *Loader) Outputs() []string { return []string{models.TableMobility} }

func (l *Loader) Load(ctx context.Context) ([]*models.Table, error) {
	body, err := l.opener.Open(ctx, l.url)
	if err != nil {
		return nil, fmt.Errorf("mobility: %w", err)
	}
	defer body.Close()

	t, err := Parse(body, l.logger)
	if err != nil {
		return nil, err
	}
	return []*models.Table{t}, nil
}

// Parse keeps national rows (no sub-region or metro area) and averages the
// two series per country and month.
func Parse(r io.Reader, logger *utils.Logger) (*models.Table, error) {
	s, err := sources.NewCSVStream(r)
	if err != nil {
		return nil, fmt.Errorf("mobility: %w", err)
	}
	code, date := s.Index("country_region_code"), s.Index("date")
	retail, work := s.Index(retailColumn), s.Index(workColumn)
	if code < 0 || date < 0 || retail < 0 || work < 0 {
		return nil, &models.MissingColumnError{
			Table: models.TableMobility, Column: "country_region_code,date," + retailColumn + "," + workColumn,
			Available: s.Columns(),
		}
	}
	subRegions := []int{s.Index("sub_region_1"), s.Index("sub_region_2"), s.Index("metro_area")}

	filter := sources.NewRegionFilter()
	agg := sources.NewAggregator(sources.Mean, models.MobilityRetail, models.MobilityWork)
	national := 0

	err = s.Each(func(rec []string) {
		for _, i := range subRegions {
			if sources.Field(rec, i) != "" {
				return
			}
		}
		day, ok := models.ParseMonth(sources.Field(rec, date))
		if !ok {
			return
		}
		region, ok := filter.EU(sources.Field(rec, code))
		if !ok {
			return
		}
		national++

		agg.Touch(region, day)
		if v, ok := models.ParseValue(sources.Field(rec, retail)); ok {
			agg.Observe(region, day, 0, v)
		}
		if v, ok := models.ParseValue(sources.Field(rec, work)); ok {
			agg.Observe(region, day, 1, v)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("mobility: %w", err)
	}

	filter.Report(logger, "mobility")
	logger.Debug("[mobility] %d national EU rows", national)
	return agg.Table(models.TableMobility, true), nil
}
