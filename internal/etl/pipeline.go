package etl

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/biocirv/agstats-cli/internal/db"
	"github.com/biocirv/agstats-cli/internal/nass"
)

// RunSummary is the end-to-end accounting for one pipeline run. Every
// input row is either loaded, skipped as a duplicate, or dropped for a
// named reason; a run that loaded nothing still says why.
type RunSummary struct {
	Extracted            int            `json:"extracted"`
	CommoditiesQueried   int            `json:"commodities_queried"`
	CommoditiesFailed    int            `json:"commodities_failed"`
	Transformed          int            `json:"transformed"`
	Dropped              map[string]int `json:"dropped,omitempty"`
	RecordsInserted      int            `json:"records_inserted"`
	RecordsSkipped       int            `json:"records_skipped"`
	ObservationsInserted int            `json:"observations_inserted"`
	ObservationsSkipped  int            `json:"observations_skipped"`
}

// CodeSource supplies the mapped commodity codes driving the extract.
type CodeSource interface {
	MappedCommodityCodes(ctx context.Context) ([]string, error)
}

// Pipeline orchestrates extract → transform → load under one run-log entry.
type Pipeline struct {
	pool     db.Pool
	client   nass.Querier
	codes    CodeSource
	dataset  string
	state    string
	year     int
	stats    []string
	aggLevel string
	log      *zap.Logger
}

// PipelineConfig wires a Pipeline.
type PipelineConfig struct {
	Pool       db.Pool
	Client     nass.Querier
	Codes      CodeSource
	Dataset    string
	State      string
	Year       int
	Statistics []string
	AggLevel   string
}

// NewPipeline builds a Pipeline from its parts.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		pool:     cfg.Pool,
		client:   cfg.Client,
		codes:    cfg.Codes,
		dataset:  cfg.Dataset,
		state:    cfg.State,
		year:     cfg.Year,
		stats:    cfg.Statistics,
		aggLevel: cfg.AggLevel,
		log:      zap.L().With(zap.String("component", "etl.pipeline")),
	}
}

// Run executes one full pipeline pass. The run is logged before any work
// and marked complete or failed at the end, so `etl status` always shows
// what happened.
func (p *Pipeline) Run(ctx context.Context, lineage Lineage) (RunSummary, error) {
	var summary RunSummary

	runLog := NewRunLog(p.pool)
	if err := runLog.Start(ctx, lineage, p.dataset); err != nil {
		return summary, err
	}

	summary, err := p.run(ctx, lineage)
	if err != nil {
		if failErr := runLog.Fail(ctx, lineage.RunID, err.Error()); failErr != nil {
			p.log.Warn("failed to record run failure", zap.Error(failErr))
		}
		return summary, err
	}

	if err := runLog.Complete(ctx, lineage.RunID, summary); err != nil {
		return summary, err
	}

	p.log.Info("pipeline run complete",
		zap.String("run_id", lineage.RunID.String()),
		zap.Int("extracted", summary.Extracted),
		zap.Int("transformed", summary.Transformed),
		zap.Int("records_inserted", summary.RecordsInserted),
		zap.Int("observations_inserted", summary.ObservationsInserted),
		zap.Int("observations_skipped", summary.ObservationsSkipped),
	)
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, lineage Lineage) (RunSummary, error) {
	var summary RunSummary

	codes, err := p.codes.MappedCommodityCodes(ctx)
	if err != nil {
		return summary, err
	}

	extractor := NewExtractor(p.client, p.state, p.year, p.stats, p.aggLevel)
	raw, extractReport, err := extractor.Extract(ctx, codes)
	if err != nil {
		return summary, eris.Wrap(err, "etl: extract")
	}
	summary.Extracted = extractReport.Rows
	summary.CommoditiesQueried = extractReport.Queried
	summary.CommoditiesFailed = extractReport.Failed

	transformer := NewTransformer(NewResolver(p.pool), codes, lineage)
	normalized, transformReport, err := transformer.Transform(ctx, raw)
	if err != nil {
		return summary, eris.Wrap(err, "etl: transform")
	}
	summary.Transformed = transformReport.Out
	summary.Dropped = transformReport.Dropped

	loadResult, err := NewLoader(p.pool).Load(ctx, p.dataset, normalized)
	if err != nil {
		return summary, eris.Wrap(err, "etl: load")
	}
	summary.RecordsInserted = loadResult.RecordsInserted
	summary.RecordsSkipped = loadResult.RecordsSkipped
	summary.ObservationsInserted = loadResult.ObservationsInserted
	summary.ObservationsSkipped = loadResult.ObservationsSkipped

	return summary, nil
}
