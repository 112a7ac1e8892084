package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeduper_AdmitsFirstOccurrenceOnly(t *testing.T) {
	d := NewDeduper(func(r NormalizedRow) string {
		return recordKey(r.Geoid, r.CommodityCode, r.Year)
	})

	row := NormalizedRow{Geoid: "06077", CommodityCode: "CORN", Year: 2022}
	assert.True(t, d.Admit(row))
	assert.False(t, d.Admit(row))

	other := row
	other.Year = 2021
	assert.True(t, d.Admit(other))
}

func TestDeduper_SeedBlocksAdmission(t *testing.T) {
	d := NewDeduper(func(k string) string { return k })
	d.Seed([]string{"a", "b"})

	assert.False(t, d.Admit("a"))
	assert.True(t, d.Seen("b"))
	assert.True(t, d.Admit("c"))
}
