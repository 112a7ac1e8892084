// Package mapper links local agricultural resource names to USDA commodity
// codes through fuzzy matching, human review, and persisted mappings.
package mapper

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/biocirv/agstats-cli/internal/db"
	"github.com/biocirv/agstats-cli/internal/refcache"
)

// Resource kinds. Both tables map into the same commodity space.
const (
	KindResource         = "resource"
	KindPrimaryAgProduct = "primary_ag_product"
)

// ResourceRef identifies one local row that may map to a commodity.
type ResourceRef struct {
	ID   int64
	Name string
	Kind string
}

// Store reads and writes mapping state in Postgres.
type Store struct {
	pool db.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// UnmappedResources returns resources and primary ag products that have no
// commodity mapping yet. Already-mapped rows are excluded so repeated
// auto-match passes only consider new work.
func (s *Store) UnmappedResources(ctx context.Context) ([]ResourceRef, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.name, r.kind FROM (
		     SELECT id, name, 'resource' AS kind FROM ag_data.resource
		     UNION ALL
		     SELECT id, name, 'primary_ag_product' AS kind FROM ag_data.primary_ag_product
		 ) r
		 WHERE NOT EXISTS (
		     SELECT 1 FROM ag_data.resource_usda_commodity_map m
		     WHERE m.resource_id = r.id AND m.resource_kind = r.kind
		 )
		 ORDER BY r.kind, r.name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "mapper: query unmapped resources")
	}
	defer rows.Close()

	var refs []ResourceRef
	for rows.Next() {
		var r ResourceRef
		if err := rows.Scan(&r.ID, &r.Name, &r.Kind); err != nil {
			return nil, eris.Wrap(err, "mapper: scan resource")
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// MappedCommodityCodes returns the distinct commodity codes that at least
// one resource maps to. This is the extract stage's input: only mapped
// commodities are ever pulled from the API.
func (s *Store) MappedCommodityCodes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT c.code
		 FROM ag_data.usda_commodity c
		 JOIN ag_data.resource_usda_commodity_map m ON m.usda_commodity_id = c.id
		 ORDER BY c.code`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "mapper: query mapped commodity codes")
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, eris.Wrap(err, "mapper: scan commodity code")
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// SyncCommodities bulk-upserts the commodity reference list into
// ag_data.usda_commodity keyed by code.
func (s *Store) SyncCommodities(ctx context.Context, refs []refcache.CommodityReference) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(refs))
	for i, ref := range refs {
		rows[i] = []any{ref.Code, ref.Name, ref.Description, ref.Source}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "ag_data.usda_commodity",
		Columns:      []string{"code", "name", "description", "source"},
		ConflictKeys: []string{"code"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "mapper: sync commodities")
	}
	return n, nil
}
