package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biocirv/agstats-cli/internal/refcache"
)

func ref(code, name string) refcache.CommodityReference {
	return refcache.CommodityReference{Code: code, Name: name, Source: refcache.SourceNASS}
}

func testRefs() []refcache.CommodityReference {
	return []refcache.CommodityReference{
		ref("HAY", "HAY"),
		ref("HAY_ALF", "HAY, ALFALFA"),
		ref("CORN", "CORN"),
		ref("WHEAT", "WHEAT"),
		ref("CATTLE", "CATTLE"),
		ref("FORAGE", "FORAGE"),
	}
}

func TestThresholds_Tier(t *testing.T) {
	th := DefaultThresholds

	assert.Equal(t, TierAuto, th.Tier(0.95))
	assert.Equal(t, TierAuto, th.Tier(1.0))
	// Exactly at the auto bound still needs a human.
	assert.Equal(t, TierUserApproved, th.Tier(0.90))
	assert.Equal(t, TierUserApproved, th.Tier(0.75))
	// Exactly at the review bound is still reviewable.
	assert.Equal(t, TierUserApproved, th.Tier(0.60))
	assert.Equal(t, TierNoMatch, th.Tier(0.59))
	assert.Equal(t, TierNoMatch, th.Tier(0.0))
}

func TestBest_AutoMatchViaFacet(t *testing.T) {
	m := NewMatcher(testRefs(), DefaultThresholds, 5)

	best, tier := m.Best("Alfalfa")
	assert.Equal(t, TierAuto, tier)
	assert.Equal(t, "HAY_ALF", best.Ref.Code)
	assert.InDelta(t, 1.0, best.Score, 1e-9)
}

func TestBest_NoMatch(t *testing.T) {
	m := NewMatcher(testRefs(), DefaultThresholds, 5)

	_, tier := m.Best("Timber Products")
	assert.Equal(t, TierNoMatch, tier)
}

func TestRank_SortedBestFirst(t *testing.T) {
	m := NewMatcher(testRefs(), DefaultThresholds, 5)

	ranked := m.Rank("Hay")
	require.NotEmpty(t, ranked)
	assert.Equal(t, "HAY", ranked[0].Ref.Code)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
}

func TestRank_TieBreaksToShorterNameThenCode(t *testing.T) {
	refs := []refcache.CommodityReference{
		ref("B2", "BEAN"),
		ref("B1", "BEAN"),
		ref("B3", "BEANS, DRY"),
	}
	m := NewMatcher(refs, DefaultThresholds, 0)

	ranked := m.Rank("Beans")
	require.Len(t, ranked, 3)
	// All three score 1.0; shorter name wins, then code order.
	assert.Equal(t, "B1", ranked[0].Ref.Code)
	assert.Equal(t, "B2", ranked[1].Ref.Code)
	assert.Equal(t, "B3", ranked[2].Ref.Code)
}

func TestRank_LimitCapsResults(t *testing.T) {
	refs := []refcache.CommodityReference{
		ref("A", "HAY"), ref("B", "HAY"), ref("C", "HAY"), ref("D", "HAY"),
	}
	m := NewMatcher(refs, DefaultThresholds, 2)

	assert.Len(t, m.Rank("Hay"), 2)
}

func TestRank_DropsBelowReviewThreshold(t *testing.T) {
	m := NewMatcher(testRefs(), DefaultThresholds, 0)

	for _, c := range m.Rank("Alfalfa") {
		assert.GreaterOrEqual(t, c.Score, DefaultThresholds.Review)
	}
}

func TestBest_Deterministic(t *testing.T) {
	m := NewMatcher(testRefs(), DefaultThresholds, 5)

	first, _ := m.Best("Wheat")
	for i := 0; i < 10; i++ {
		again, _ := m.Best("Wheat")
		assert.Equal(t, first.Ref.Code, again.Ref.Code)
	}
}
