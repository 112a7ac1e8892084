package etl

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biocirv/agstats-cli/internal/nass"
)

func rawYieldRow() nass.RawStatRecord {
	return nass.RawStatRecord{
		SourceDesc:       "SURVEY",
		CommodityDesc:    "CORN",
		StatisticCatDesc: "YIELD",
		UnitDesc:         "TONS",
		Value:            "8.2",
		Year:             2022,
		StateAlpha:       "CA",
		StateFIPSCode:    "06",
		CountyCode:       "077",
		CountyName:       "SAN JOAQUIN",
		AggLevelDesc:     "COUNTY",
	}
}

// expectResolve mocks the insert+select pair ensure() issues per new name.
func expectResolve(mock pgxmock.PgxPoolIface, table, name string, id int64) {
	mock.ExpectExec("INSERT INTO \"ag_data\"").
		WithArgs(name).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT id FROM ag_data." + table).
		WithArgs(name).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
}

func TestTransform_SurveyYieldRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectResolve(mock, "parameter", "YIELD", 3)
	expectResolve(mock, "unit", "TONS", 7)

	lineage := NewLineage(uuid.Nil)
	tr := NewTransformer(NewResolver(mock), []string{"CORN"}, lineage)

	out, report, err := tr.Transform(context.Background(), []nass.RawStatRecord{rawYieldRow()})
	require.NoError(t, err)
	require.Len(t, out, 1)

	row := out[0]
	assert.Equal(t, "06077", row.Geoid)
	assert.Equal(t, "CORN", row.CommodityCode)
	assert.Equal(t, 2022, row.Year)
	assert.Equal(t, KindSurvey, row.Kind)
	assert.Equal(t, int64(3), row.ParameterID)
	assert.Equal(t, int64(7), row.UnitID)
	assert.InDelta(t, 8.2, row.ValueNumeric, 1e-9)
	assert.Equal(t, lineage.RunID, row.Lineage.RunID)

	assert.Equal(t, 1, report.In)
	assert.Equal(t, 1, report.Out)
	assert.Zero(t, report.DroppedTotal())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransform_WithheldValueDropped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	row := rawYieldRow()
	row.Value = "(D)"

	tr := NewTransformer(NewResolver(mock), []string{"CORN"}, NewLineage(uuid.Nil))
	out, report, err := tr.Transform(context.Background(), []nass.RawStatRecord{row})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, report.Dropped[DropMalformedValue])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransform_UnmappedCommodityDropped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tr := NewTransformer(NewResolver(mock), []string{"WHEAT"}, NewLineage(uuid.Nil))
	out, report, err := tr.Transform(context.Background(), []nass.RawStatRecord{rawYieldRow()})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, report.Dropped[DropUnresolvedReference])
}

func TestTransform_BadGeoidDropped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	row := rawYieldRow()
	row.CountyCode = "" // state-level row sneaking into a county extract

	tr := NewTransformer(NewResolver(mock), []string{"CORN"}, NewLineage(uuid.Nil))
	_, report, err := tr.Transform(context.Background(), []nass.RawStatRecord{row})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dropped[DropInvalidGeoid])
}

func TestTransform_UnknownSourceDropped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	row := rawYieldRow()
	row.SourceDesc = "FORECAST"

	tr := NewTransformer(NewResolver(mock), []string{"CORN"}, NewLineage(uuid.Nil))
	_, report, err := tr.Transform(context.Background(), []nass.RawStatRecord{row})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dropped[DropUnknownSource])
}

func TestTransform_MissingFieldDropped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	row := rawYieldRow()
	row.UnitDesc = ""

	tr := NewTransformer(NewResolver(mock), []string{"CORN"}, NewLineage(uuid.Nil))
	_, report, err := tr.Transform(context.Background(), []nass.RawStatRecord{row})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dropped[DropMissingField])
}

func TestTransform_FullDropIsVisible(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	bad := rawYieldRow()
	bad.Value = "(D)"

	tr := NewTransformer(NewResolver(mock), []string{"CORN"}, NewLineage(uuid.Nil))
	_, report, err := tr.Transform(context.Background(), []nass.RawStatRecord{bad, bad})
	require.NoError(t, err)

	// A batch where every row dropped reads differently from no input.
	assert.Equal(t, 2, report.In)
	assert.Zero(t, report.Out)
	assert.Equal(t, 2, report.DroppedTotal())
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12,500", 12500, true},
		{"8.2", 8.2, true},
		{" 42 ", 42, true},
		{"1,234,567.5", 1234567.5, true},
		{"(D)", 0, false},
		{"(Z)", 0, false},
		{"N/A", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := coerceValue(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestResolver_Memoizes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectResolve(mock, "parameter", "YIELD", 3)

	r := NewResolver(mock)
	id1, err := r.ParameterID(context.Background(), "YIELD")
	require.NoError(t, err)
	id2, err := r.ParameterID(context.Background(), "YIELD")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	// Only one insert+select pair despite two lookups.
	assert.NoError(t, mock.ExpectationsWereMet())
}
