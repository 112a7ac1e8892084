package etl

import (
	"context"

	"go.uber.org/zap"

	"github.com/biocirv/agstats-cli/internal/nass"
)

// ExtractReport summarizes one extract pass.
type ExtractReport struct {
	Queried int
	Failed  int
	Rows    int
}

// Extractor pulls QuickStats rows for the mapped commodity set, one query
// per commodity per statistic category.
type Extractor struct {
	client     nass.Querier
	state      string
	year       int
	statistics []string
	aggLevel   string
	log        *zap.Logger
}

// NewExtractor builds an Extractor scoped to one state/year and a fixed
// set of statistic categories.
func NewExtractor(client nass.Querier, state string, year int, statistics []string, aggLevel string) *Extractor {
	return &Extractor{
		client:     client,
		state:      state,
		year:       year,
		statistics: statistics,
		aggLevel:   aggLevel,
		log:        zap.L().With(zap.String("component", "etl.extract")),
	}
}

// Extract queries the API once per (commodity, statistic) pair and
// concatenates the rows. An empty code list short-circuits to an empty
// result: pulling the entire catalog by accident is never an option. A
// failing commodity is logged and omitted; the rest of the extract
// proceeds.
func (e *Extractor) Extract(ctx context.Context, codes []string) ([]nass.RawStatRecord, ExtractReport, error) {
	var report ExtractReport

	if len(codes) == 0 {
		e.log.Warn("no mapped commodities, skipping extract")
		return nil, report, nil
	}

	var all []nass.RawStatRecord
	for _, code := range codes {
		report.Queried++

		rows, err := e.extractCommodity(ctx, code)
		if err != nil {
			if ctx.Err() != nil {
				return all, report, err
			}
			report.Failed++
			e.log.Warn("commodity extract failed, skipping",
				zap.String("commodity", code),
				zap.Error(err),
			)
			continue
		}
		all = append(all, rows...)
	}

	report.Rows = len(all)
	e.log.Info("extract complete",
		zap.Int("queried", report.Queried),
		zap.Int("failed", report.Failed),
		zap.Int("rows", report.Rows),
	)
	return all, report, nil
}

// extractCommodity runs the per-statistic queries for one commodity. Any
// query failing fails the whole commodity; the API reports bad parameters
// in-band, so a partial answer is not trustworthy.
func (e *Extractor) extractCommodity(ctx context.Context, code string) ([]nass.RawStatRecord, error) {
	var rows []nass.RawStatRecord
	for _, stat := range e.statistics {
		params := nass.QueryParams{
			StatisticCat: stat,
			AggLevelDesc: e.aggLevel,
			StateAlpha:   e.state,
			Year:         e.year,
		}
		// The taxonomy keys commodities by numeric code, falling back to
		// the upper-cased name when the API omits a code. QuickStats only
		// matches names in commodity_desc, so each key selects its own
		// query parameter.
		if isNumericCode(code) {
			params.CommodityCode = code
		} else {
			params.CommodityDesc = code
		}
		batch, err := e.client.Query(ctx, params)
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
	}
	return rows, nil
}

func isNumericCode(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
