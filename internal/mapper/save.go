package mapper

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/biocirv/agstats-cli/internal/db"
)

// SaveResult counts the outcome of persisting approved matches.
type SaveResult struct {
	Saved   int
	Skipped int
}

// Saver writes approved matches into Postgres.
type Saver struct {
	pool db.Pool
	log  *zap.Logger
}

// NewSaver creates a Saver backed by the given connection pool.
func NewSaver(pool db.Pool) *Saver {
	return &Saver{
		pool: pool,
		log:  zap.L().With(zap.String("component", "mapper")),
	}
}

// Save persists each approved match: the commodity row is created if it
// does not exist, an already-mapped pair is skipped, and new mappings carry
// the tier plus an audit note. NO_MATCH rejections become commodity-less
// mapping rows so the resource stays settled across sessions. Running Save
// twice on the same approved list changes nothing the second time.
func (s *Saver) Save(ctx context.Context, approved []ApprovedMatch) (SaveResult, error) {
	var result SaveResult

	for _, m := range approved {
		if m.Tier == "NO_MATCH" {
			if err := s.saveNoMatch(ctx, m, &result); err != nil {
				return result, err
			}
			continue
		}

		commodityID, err := s.ensureCommodity(ctx, m.CommodityCode, m.CommodityName)
		if err != nil {
			return result, err
		}

		exists, err := s.mappingExists(ctx, m.Resource, commodityID)
		if err != nil {
			return result, err
		}
		if exists {
			result.Skipped++
			continue
		}

		sql := db.InsertIgnoreSQL("ag_data.resource_usda_commodity_map",
			[]string{"resource_id", "resource_kind", "usda_commodity_id", "match_tier", "note"},
			[]string{"resource_id", "resource_kind", "usda_commodity_id"},
		)
		tag, err := s.pool.Exec(ctx, sql, m.Resource.ID, m.Resource.Kind, commodityID, m.Tier, m.Note)
		if err != nil {
			return result, eris.Wrapf(err, "mapper: insert mapping for %s", m.Resource.Name)
		}
		if tag.RowsAffected() == 0 {
			result.Skipped++
			continue
		}
		result.Saved++
		s.log.Info("mapping saved",
			zap.String("resource", m.Resource.Name),
			zap.String("commodity", m.CommodityName),
			zap.String("tier", m.Tier),
		)
	}

	return result, nil
}

// saveNoMatch records a rejection. The partial unique index on
// commodity-less rows makes the insert idempotent per resource.
func (s *Saver) saveNoMatch(ctx context.Context, m ApprovedMatch, result *SaveResult) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO ag_data.resource_usda_commodity_map
		     (resource_id, resource_kind, usda_commodity_id, match_tier, note)
		 VALUES ($1, $2, NULL, 'NO_MATCH', $3)
		 ON CONFLICT (resource_id, resource_kind) WHERE usda_commodity_id IS NULL DO NOTHING`,
		m.Resource.ID, m.Resource.Kind, m.Note,
	)
	if err != nil {
		return eris.Wrapf(err, "mapper: insert no-match for %s", m.Resource.Name)
	}
	if tag.RowsAffected() == 0 {
		result.Skipped++
		return nil
	}
	result.Saved++
	s.log.Info("no-match recorded", zap.String("resource", m.Resource.Name))
	return nil
}

// ensureCommodity returns the id for a commodity code, creating the row if
// the taxonomy sync has not seen it yet.
func (s *Saver) ensureCommodity(ctx context.Context, code, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM ag_data.usda_commodity WHERE code = $1`, code,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !eris.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(err, "mapper: lookup commodity %s", code)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO ag_data.usda_commodity (code, name, description, source)
		 VALUES ($1, $2, $2, 'NASS')
		 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		code, name,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "mapper: create commodity %s", code)
	}
	return id, nil
}

func (s *Saver) mappingExists(ctx context.Context, r ResourceRef, commodityID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM ag_data.resource_usda_commodity_map
		     WHERE resource_id = $1 AND resource_kind = $2 AND usda_commodity_id = $3
		 )`,
		r.ID, r.Kind, commodityID,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "mapper: check mapping for %s", r.Name)
	}
	return exists, nil
}
