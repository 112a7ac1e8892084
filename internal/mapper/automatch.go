package mapper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/biocirv/agstats-cli/internal/match"
)

// AutoMatchReport summarizes one auto-match pass.
type AutoMatchReport struct {
	Considered int
	Auto       int
	Queued     int
	Unmatched  int
}

// AutoMatch scores every unmapped resource against the commodity taxonomy.
// High-confidence matches land in the approved list directly; mid-band
// matches are queued for review with their top candidates; the rest stay
// unmapped. Because the input is the unmapped set, rerunning the pass
// after a save is a no-op for everything already decided.
func AutoMatch(ctx context.Context, store *Store, m *match.Matcher, session *Session) (AutoMatchReport, error) {
	log := zap.L().With(zap.String("component", "mapper"))

	resources, err := store.UnmappedResources(ctx)
	if err != nil {
		return AutoMatchReport{}, err
	}

	var report AutoMatchReport
	var queue []ReviewItem

	// Decisions not yet saved to the database still come back as unmapped;
	// skip them so a rejected resource is not re-queued.
	decided := session.decidedKeys()

	for _, res := range resources {
		if decided[resourceKey(res)] {
			continue
		}
		report.Considered++
		ranked := m.Rank(res.Name)
		if len(ranked) == 0 {
			report.Unmatched++
			log.Debug("no candidates", zap.String("resource", res.Name))
			continue
		}

		best := ranked[0]
		switch m.Thresholds().Tier(best.Score) {
		case match.TierAuto:
			err := session.AddAuto(ApprovedMatch{
				Resource:      res,
				CommodityCode: best.Ref.Code,
				CommodityName: best.Ref.Name,
				Score:         best.Score,
				Tier:          string(match.TierAuto),
				Note:          fmt.Sprintf("auto-matched at %.3f (gestalt ratio)", best.Score),
				DecidedAt:     time.Now().UTC(),
			})
			if err != nil {
				return report, err
			}
			report.Auto++
			log.Info("auto-matched",
				zap.String("resource", res.Name),
				zap.String("commodity", best.Ref.Name),
				zap.Float64("score", best.Score),
			)
		case match.TierUserApproved:
			queue = append(queue, ReviewItem{
				Resource:   res,
				Candidates: toEntries(ranked),
			})
			report.Queued++
		default:
			report.Unmatched++
		}
	}

	if err := session.Enqueue(queue); err != nil {
		return report, err
	}

	log.Info("auto-match pass complete",
		zap.Int("considered", report.Considered),
		zap.Int("auto", report.Auto),
		zap.Int("queued", report.Queued),
		zap.Int("unmatched", report.Unmatched),
	)
	return report, nil
}

func toEntries(ranked []match.Candidate) []CandidateEntry {
	entries := make([]CandidateEntry, len(ranked))
	for i, c := range ranked {
		entries[i] = CandidateEntry{Code: c.Ref.Code, Name: c.Ref.Name, Score: c.Score}
	}
	return entries
}
