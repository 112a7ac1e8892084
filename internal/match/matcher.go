package match

import (
	"sort"

	"github.com/biocirv/agstats-cli/internal/refcache"
)

// Tier classifies a match by confidence.
type Tier string

const (
	// TierAuto is assigned above the auto threshold; the mapping is applied
	// without human input.
	TierAuto Tier = "AUTO_MATCH"
	// TierUserApproved marks candidates inside the review band; a human must
	// confirm before the mapping is saved.
	TierUserApproved Tier = "USER_APPROVED"
	// TierNoMatch means no candidate scored high enough to present.
	TierNoMatch Tier = "NO_MATCH"
)

// Thresholds delimit the confidence bands. Scores strictly above Auto map
// automatically; scores in [Review, Auto] queue for human review; scores
// strictly below Review are discarded. A score of exactly Auto therefore
// goes to review, and exactly Review is still reviewable.
type Thresholds struct {
	Auto   float64
	Review float64
}

// DefaultThresholds mirror the long-standing production tuning.
var DefaultThresholds = Thresholds{Auto: 0.90, Review: 0.60}

// Tier buckets a score.
func (t Thresholds) Tier(score float64) Tier {
	switch {
	case score > t.Auto:
		return TierAuto
	case score >= t.Review:
		return TierUserApproved
	default:
		return TierNoMatch
	}
}

// Candidate pairs a taxonomy entry with its similarity to a resource name.
type Candidate struct {
	Ref   refcache.CommodityReference
	Score float64
}

// Matcher ranks taxonomy entries against resource names.
type Matcher struct {
	refs       []refcache.CommodityReference
	thresholds Thresholds
	limit      int
}

// NewMatcher builds a Matcher over the full commodity reference list. limit
// caps how many candidates Rank returns (<=0 means all).
func NewMatcher(refs []refcache.CommodityReference, thresholds Thresholds, limit int) *Matcher {
	return &Matcher{refs: refs, thresholds: thresholds, limit: limit}
}

// Thresholds returns the matcher's configured confidence bands.
func (m *Matcher) Thresholds() Thresholds {
	return m.thresholds
}

// Rank scores every reference against the resource name and returns
// candidates at or above the review threshold, best first. Ties break to
// the shorter (more specific) taxonomy name, then to code order so results
// are deterministic run to run.
func (m *Matcher) Rank(resource string) []Candidate {
	var out []Candidate
	for _, ref := range m.refs {
		s := Score(resource, ref.Name)
		if s >= m.thresholds.Review {
			out = append(out, Candidate{Ref: ref, Score: s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if len(out[i].Ref.Name) != len(out[j].Ref.Name) {
			return len(out[i].Ref.Name) < len(out[j].Ref.Name)
		}
		return out[i].Ref.Code < out[j].Ref.Code
	})
	if m.limit > 0 && len(out) > m.limit {
		out = out[:m.limit]
	}
	return out
}

// Best returns the top candidate and its tier, or TierNoMatch when nothing
// clears the review threshold.
func (m *Matcher) Best(resource string) (Candidate, Tier) {
	ranked := m.Rank(resource)
	if len(ranked) == 0 {
		return Candidate{}, TierNoMatch
	}
	return ranked[0], m.thresholds.Tier(ranked[0].Score)
}
