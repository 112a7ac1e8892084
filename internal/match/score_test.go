package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio_Identical(t *testing.T) {
	assert.InDelta(t, 1.0, Ratio("alfalfa", "alfalfa"), 1e-9)
}

func TestRatio_Disjoint(t *testing.T) {
	assert.InDelta(t, 0.0, Ratio("abc", "xyz"), 1e-9)
}

func TestRatio_Empty(t *testing.T) {
	assert.InDelta(t, 1.0, Ratio("", ""), 1e-9)
	assert.InDelta(t, 0.0, Ratio("abc", ""), 1e-9)
}

func TestRatio_KnownValue(t *testing.T) {
	// Classic gestalt example: 2*3/(6+6).
	assert.InDelta(t, 0.5, Ratio("abcdef", "defghi"), 1e-9)
}

func TestRatio_Symmetric(t *testing.T) {
	a, b := "walnuts", "walnut"
	assert.InDelta(t, Ratio(a, b), Ratio(b, a), 1e-9)
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Almonds", "almond"},
		{"HAY, ALFALFA", "hay alfalfa"},
		{"Wine Grapes", "wine grape"},
		{"OATS", "oat"},
		{"Grass Seed", "grass seed"},
		{"  Corn-Sweet  ", "corn sweet"},
		{"Peppers (Bell)", "pepper bell"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in), "input %q", c.in)
	}
}

func TestScore_ExactNameDifferentCase(t *testing.T) {
	assert.InDelta(t, 1.0, Score("Almonds", "ALMONDS"), 1e-9)
}

func TestScore_FacetMatch(t *testing.T) {
	// The taxonomy qualifies names with comma facets; the resource name
	// matching one facet exactly scores a perfect 1.0.
	assert.InDelta(t, 1.0, Score("Alfalfa", "HAY, ALFALFA"), 1e-9)
}

func TestScore_FacetBeatsWholeString(t *testing.T) {
	whole := Ratio(Normalize("Alfalfa"), Normalize("HAY, ALFALFA"))
	assert.Less(t, whole, 0.90)
	assert.Greater(t, Score("Alfalfa", "HAY, ALFALFA"), 0.90)
}

func TestScore_Unrelated(t *testing.T) {
	assert.Less(t, Score("Timber", "CATTLE"), 0.60)
}

func TestScore_Plurals(t *testing.T) {
	assert.InDelta(t, 1.0, Score("Walnuts", "WALNUT"), 1e-9)
}
