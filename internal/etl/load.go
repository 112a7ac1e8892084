package etl

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/biocirv/agstats-cli/internal/db"
)

// LoadResult counts inserts and duplicate skips per table.
type LoadResult struct {
	RecordsInserted      int
	RecordsSkipped       int
	ObservationsInserted int
	ObservationsSkipped  int
}

// Loader writes normalized rows into the typed record tables and the
// observation table. Duplicates are caught three times over: existing keys
// are pre-loaded from the database, the in-flight batch is deduplicated in
// memory, and every insert carries ON CONFLICT DO NOTHING so a concurrent
// writer cannot break a run. Re-running after a partial failure inserts
// only what is missing.
type Loader struct {
	pool db.Pool
	log  *zap.Logger
}

// NewLoader creates a Loader backed by the given connection pool.
func NewLoader(pool db.Pool) *Loader {
	return &Loader{
		pool: pool,
		log:  zap.L().With(zap.String("component", "etl.load")),
	}
}

func recordTable(kind string) string {
	if kind == KindCensus {
		return "ag_data.usda_census_record"
	}
	return "ag_data.usda_survey_record"
}

func recordKey(geoid, commodityCode string, year int) string {
	return fmt.Sprintf("%s|%s|%d", geoid, commodityCode, year)
}

func observationKey(recordID int64, kind string, parameterID, unitID int64) string {
	return fmt.Sprintf("%d|%s|%d|%d", recordID, kind, parameterID, unitID)
}

// Load persists a normalized batch under the named dataset.
func (l *Loader) Load(ctx context.Context, datasetName string, rows []NormalizedRow) (LoadResult, error) {
	var result LoadResult
	if len(rows) == 0 {
		return result, nil
	}

	datasetID, err := l.ensureDataset(ctx, datasetName)
	if err != nil {
		return result, err
	}

	for _, kind := range []string{KindCensus, KindSurvey} {
		var batch []NormalizedRow
		for _, r := range rows {
			if r.Kind == kind {
				batch = append(batch, r)
			}
		}
		if len(batch) == 0 {
			continue
		}
		if err := l.loadKind(ctx, datasetID, kind, batch, &result); err != nil {
			return result, err
		}
	}

	l.log.Info("load complete",
		zap.Int("records_inserted", result.RecordsInserted),
		zap.Int("records_skipped", result.RecordsSkipped),
		zap.Int("observations_inserted", result.ObservationsInserted),
		zap.Int("observations_skipped", result.ObservationsSkipped),
	)
	return result, nil
}

func (l *Loader) loadKind(ctx context.Context, datasetID int64, kind string, rows []NormalizedRow, result *LoadResult) error {
	table := recordTable(kind)

	recordIDs, err := l.existingRecords(ctx, table, rows)
	if err != nil {
		return err
	}

	// Insert missing record rows; every row of the batch then resolves to a
	// record id regardless of who created it.
	dedup := NewDeduper(func(r NormalizedRow) string {
		return recordKey(r.Geoid, r.CommodityCode, r.Year)
	})
	for _, r := range rows {
		if !dedup.Admit(r) {
			continue
		}
		key := recordKey(r.Geoid, r.CommodityCode, r.Year)
		if _, exists := recordIDs[key]; exists {
			result.RecordsSkipped++
			continue
		}
		id, inserted, err := l.insertRecord(ctx, table, datasetID, r)
		if err != nil {
			return err
		}
		recordIDs[key] = id
		if inserted {
			result.RecordsInserted++
		} else {
			result.RecordsSkipped++
		}
	}

	ids := make([]int64, 0, len(recordIDs))
	for _, id := range recordIDs {
		ids = append(ids, id)
	}
	obsDedup, err := l.seedObservations(ctx, kind, ids)
	if err != nil {
		return err
	}

	sql := db.InsertIgnoreSQL("ag_data.observation",
		[]string{"record_id", "record_type", "parameter_id", "unit_id", "value_numeric", "value_text", "run_id", "group_id"},
		[]string{"record_id", "record_type", "parameter_id", "unit_id"},
	)
	for _, r := range rows {
		recordID := recordIDs[recordKey(r.Geoid, r.CommodityCode, r.Year)]
		obs := observationKey(recordID, kind, r.ParameterID, r.UnitID)
		if obsDedup.Seen(obs) {
			result.ObservationsSkipped++
			continue
		}
		tag, err := l.pool.Exec(ctx, sql,
			recordID, kind, r.ParameterID, r.UnitID,
			r.ValueNumeric, r.ValueText, r.Lineage.RunID, r.Lineage.GroupID,
		)
		if err != nil {
			return eris.Wrapf(err, "etl: insert observation for record %d", recordID)
		}
		obsDedup.Seed([]string{obs})
		if tag.RowsAffected() == 0 {
			result.ObservationsSkipped++
		} else {
			result.ObservationsInserted++
		}
	}
	return nil
}

// ensureDataset looks up or creates the dataset row.
func (l *Loader) ensureDataset(ctx context.Context, name string) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`SELECT id FROM ag_data.dataset WHERE name = $1`, name,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !eris.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(err, "etl: lookup dataset %s", name)
	}

	err = l.pool.QueryRow(ctx,
		`INSERT INTO ag_data.dataset (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		name,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "etl: create dataset %s", name)
	}
	return id, nil
}

// existingRecords loads the natural key → id map for the batch's slice of a
// record table. The query is scoped to the batch's geoids and years so a
// rerun over a grown table stays bounded by the batch, not the table.
func (l *Loader) existingRecords(ctx context.Context, table string, batch []NormalizedRow) (map[string]int64, error) {
	geoidSet := make(map[string]bool)
	yearSet := make(map[int]bool)
	for _, r := range batch {
		geoidSet[r.Geoid] = true
		yearSet[r.Year] = true
	}
	geoids := make([]string, 0, len(geoidSet))
	for g := range geoidSet {
		geoids = append(geoids, g)
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}

	rows, err := l.pool.Query(ctx,
		"SELECT id, geoid, commodity_code, year FROM "+table+" WHERE geoid = ANY($1) AND year = ANY($2)",
		geoids, years,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "etl: query existing records in %s", table)
	}
	defer rows.Close()

	existing := make(map[string]int64)
	for rows.Next() {
		var id int64
		var geoid, code string
		var year int
		if err := rows.Scan(&id, &geoid, &code, &year); err != nil {
			return nil, eris.Wrap(err, "etl: scan existing record")
		}
		existing[recordKey(geoid, code, year)] = id
	}
	return existing, rows.Err()
}

// insertRecord inserts one record row, falling back to a re-select when a
// concurrent writer won the conflict.
func (l *Loader) insertRecord(ctx context.Context, table string, datasetID int64, r NormalizedRow) (int64, bool, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		"INSERT INTO "+table+` (dataset_id, geoid, commodity_code, year, run_id, group_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (geoid, commodity_code, year) DO NOTHING
		 RETURNING id`,
		datasetID, r.Geoid, r.CommodityCode, r.Year, r.Lineage.RunID, r.Lineage.GroupID,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !eris.Is(err, pgx.ErrNoRows) {
		return 0, false, eris.Wrapf(err, "etl: insert record into %s", table)
	}

	err = l.pool.QueryRow(ctx,
		"SELECT id FROM "+table+" WHERE geoid = $1 AND commodity_code = $2 AND year = $3",
		r.Geoid, r.CommodityCode, r.Year,
	).Scan(&id)
	if err != nil {
		return 0, false, eris.Wrapf(err, "etl: re-select record in %s", table)
	}
	return id, false, nil
}

// seedObservations pre-loads existing observation keys for the given
// records so re-runs skip without touching the database per row.
func (l *Loader) seedObservations(ctx context.Context, kind string, recordIDs []int64) (*Deduper[string], error) {
	dedup := NewDeduper(func(k string) string { return k })
	if len(recordIDs) == 0 {
		return dedup, nil
	}

	rows, err := l.pool.Query(ctx,
		`SELECT record_id, parameter_id, unit_id FROM ag_data.observation
		 WHERE record_type = $1 AND record_id = ANY($2)`,
		kind, recordIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "etl: query existing observations")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var recordID, paramID, unitID int64
		if err := rows.Scan(&recordID, &paramID, &unitID); err != nil {
			return nil, eris.Wrap(err, "etl: scan existing observation")
		}
		keys = append(keys, observationKey(recordID, kind, paramID, unitID))
	}
	dedup.Seed(keys)
	return dedup, rows.Err()
}
