package etl

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func surveyRows(lineage Lineage) []NormalizedRow {
	// One county/commodity/year with two measured statistics.
	base := NormalizedRow{
		Geoid:         "06077",
		CommodityCode: "CORN",
		Year:          2022,
		Kind:          KindSurvey,
		UnitID:        7,
		Lineage:       lineage,
	}
	area := base
	area.ParameterID = 1
	area.ValueNumeric = 12500
	area.ValueText = "12,500"
	yield := base
	yield.ParameterID = 2
	yield.ValueNumeric = 8.2
	yield.ValueText = "8.2"
	return []NormalizedRow{area, yield}
}

func expectDatasetLookup(mock pgxmock.PgxPoolIface, name string, id int64) {
	mock.ExpectQuery("SELECT id FROM ag_data.dataset").
		WithArgs(name).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(id))
}

func TestLoad_OneRecordTwoObservations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lineage := NewLineage(uuid.Nil)
	rows := surveyRows(lineage)

	expectDatasetLookup(mock, "quickstats_ca", 1)

	// Survey kind: no existing records, one insert, no existing observations.
	mock.ExpectQuery("SELECT id, geoid, commodity_code, year FROM ag_data.usda_survey_record").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows([]string{"id", "geoid", "commodity_code", "year"}))
	mock.ExpectQuery("INSERT INTO ag_data.usda_survey_record").
		WithArgs(int64(1), "06077", "CORN", 2022, lineage.RunID, lineage.GroupID).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectQuery("SELECT record_id, parameter_id, unit_id FROM ag_data.observation").
		WithArgs(KindSurvey, []int64{10}).
		WillReturnRows(mock.NewRows([]string{"record_id", "parameter_id", "unit_id"}))

	mock.ExpectExec("INSERT INTO \"ag_data\".\"observation\"").
		WithArgs(int64(10), KindSurvey, int64(1), int64(7), 12500.0, "12,500", lineage.RunID, lineage.GroupID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO \"ag_data\".\"observation\"").
		WithArgs(int64(10), KindSurvey, int64(2), int64(7), 8.2, "8.2", lineage.RunID, lineage.GroupID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	result, err := NewLoader(mock).Load(context.Background(), "quickstats_ca", rows)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsInserted)
	assert.Zero(t, result.RecordsSkipped)
	assert.Equal(t, 2, result.ObservationsInserted)
	assert.Zero(t, result.ObservationsSkipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_RerunInsertsNothing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lineage := NewLineage(uuid.Nil)
	rows := surveyRows(lineage)

	expectDatasetLookup(mock, "quickstats_ca", 1)

	// Everything already loaded by the previous run. The existing-record
	// preload is scoped to the batch's geoids and years, never the full table.
	mock.ExpectQuery("SELECT id, geoid, commodity_code, year FROM ag_data.usda_survey_record WHERE geoid = ANY").
		WithArgs([]string{"06077"}, []int{2022}).
		WillReturnRows(mock.NewRows([]string{"id", "geoid", "commodity_code", "year"}).
			AddRow(int64(10), "06077", "CORN", 2022))
	mock.ExpectQuery("SELECT record_id, parameter_id, unit_id FROM ag_data.observation").
		WithArgs(KindSurvey, []int64{10}).
		WillReturnRows(mock.NewRows([]string{"record_id", "parameter_id", "unit_id"}).
			AddRow(int64(10), int64(1), int64(7)).
			AddRow(int64(10), int64(2), int64(7)))

	result, err := NewLoader(mock).Load(context.Background(), "quickstats_ca", rows)
	require.NoError(t, err)
	assert.Zero(t, result.RecordsInserted)
	assert.Equal(t, 1, result.RecordsSkipped)
	assert.Zero(t, result.ObservationsInserted)
	assert.Equal(t, 2, result.ObservationsSkipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_ResumeAfterPartialFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lineage := NewLineage(uuid.Nil)
	rows := surveyRows(lineage)

	expectDatasetLookup(mock, "quickstats_ca", 1)

	// Previous run crashed after the record and the first observation.
	mock.ExpectQuery("SELECT id, geoid, commodity_code, year FROM ag_data.usda_survey_record").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows([]string{"id", "geoid", "commodity_code", "year"}).
			AddRow(int64(10), "06077", "CORN", 2022))
	mock.ExpectQuery("SELECT record_id, parameter_id, unit_id FROM ag_data.observation").
		WithArgs(KindSurvey, []int64{10}).
		WillReturnRows(mock.NewRows([]string{"record_id", "parameter_id", "unit_id"}).
			AddRow(int64(10), int64(1), int64(7)))

	// Only the missing observation is written.
	mock.ExpectExec("INSERT INTO \"ag_data\".\"observation\"").
		WithArgs(int64(10), KindSurvey, int64(2), int64(7), 8.2, "8.2", lineage.RunID, lineage.GroupID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	result, err := NewLoader(mock).Load(context.Background(), "quickstats_ca", rows)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ObservationsInserted)
	assert.Equal(t, 1, result.ObservationsSkipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_ConcurrentRecordInsertFallsBackToSelect(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lineage := NewLineage(uuid.Nil)
	rows := surveyRows(lineage)[:1]

	expectDatasetLookup(mock, "quickstats_ca", 1)

	mock.ExpectQuery("SELECT id, geoid, commodity_code, year FROM ag_data.usda_survey_record").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows([]string{"id", "geoid", "commodity_code", "year"}))
	// ON CONFLICT DO NOTHING returns no row when another writer won.
	mock.ExpectQuery("INSERT INTO ag_data.usda_survey_record").
		WithArgs(int64(1), "06077", "CORN", 2022, lineage.RunID, lineage.GroupID).
		WillReturnRows(mock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT id FROM ag_data.usda_survey_record").
		WithArgs("06077", "CORN", 2022).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectQuery("SELECT record_id, parameter_id, unit_id FROM ag_data.observation").
		WithArgs(KindSurvey, []int64{10}).
		WillReturnRows(mock.NewRows([]string{"record_id", "parameter_id", "unit_id"}))
	mock.ExpectExec("INSERT INTO \"ag_data\".\"observation\"").
		WithArgs(int64(10), KindSurvey, int64(1), int64(7), 12500.0, "12,500", lineage.RunID, lineage.GroupID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	result, err := NewLoader(mock).Load(context.Background(), "quickstats_ca", rows)
	require.NoError(t, err)
	assert.Zero(t, result.RecordsInserted)
	assert.Equal(t, 1, result.RecordsSkipped)
	assert.Equal(t, 1, result.ObservationsInserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_EmptyBatchIsNoOp(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	result, err := NewLoader(mock).Load(context.Background(), "quickstats_ca", nil)
	require.NoError(t, err)
	assert.Zero(t, result.RecordsInserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_CreatesDataset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lineage := NewLineage(uuid.Nil)
	rows := surveyRows(lineage)[:1]

	mock.ExpectQuery("SELECT id FROM ag_data.dataset").
		WithArgs("quickstats_ca").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO ag_data.dataset").
		WithArgs("quickstats_ca").
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(2)))

	mock.ExpectQuery("SELECT id, geoid, commodity_code, year FROM ag_data.usda_survey_record").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows([]string{"id", "geoid", "commodity_code", "year"}))
	mock.ExpectQuery("INSERT INTO ag_data.usda_survey_record").
		WithArgs(int64(2), "06077", "CORN", 2022, lineage.RunID, lineage.GroupID).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectQuery("SELECT record_id, parameter_id, unit_id FROM ag_data.observation").
		WithArgs(KindSurvey, []int64{10}).
		WillReturnRows(mock.NewRows([]string{"record_id", "parameter_id", "unit_id"}))
	mock.ExpectExec("INSERT INTO \"ag_data\".\"observation\"").
		WithArgs(int64(10), KindSurvey, int64(1), int64(7), 12500.0, "12,500", lineage.RunID, lineage.GroupID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	result, err := NewLoader(mock).Load(context.Background(), "quickstats_ca", rows)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsInserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
