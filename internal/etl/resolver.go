package etl

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/biocirv/agstats-cli/internal/db"
)

// Resolver maps parameter and unit names to lookup-table ids, creating
// rows on first sight. Results are memoized for the life of the resolver,
// so a batch with thousands of repeated "ACRES" rows costs two queries.
type Resolver struct {
	pool   db.Pool
	params map[string]int64
	units  map[string]int64
}

// NewResolver creates a Resolver backed by the given connection pool.
func NewResolver(pool db.Pool) *Resolver {
	return &Resolver{
		pool:   pool,
		params: make(map[string]int64),
		units:  make(map[string]int64),
	}
}

// ParameterID returns the id for a parameter name, inserting it if new.
func (r *Resolver) ParameterID(ctx context.Context, name string) (int64, error) {
	if id, ok := r.params[name]; ok {
		return id, nil
	}
	id, err := r.ensure(ctx, "ag_data.parameter", name)
	if err != nil {
		return 0, eris.Wrapf(err, "etl: resolve parameter %s", name)
	}
	r.params[name] = id
	return id, nil
}

// UnitID returns the id for a unit name, inserting it if new.
func (r *Resolver) UnitID(ctx context.Context, name string) (int64, error) {
	if id, ok := r.units[name]; ok {
		return id, nil
	}
	id, err := r.ensure(ctx, "ag_data.unit", name)
	if err != nil {
		return 0, eris.Wrapf(err, "etl: resolve unit %s", name)
	}
	r.units[name] = id
	return id, nil
}

// ensure inserts the name if missing, then selects its id. The ON CONFLICT
// DO NOTHING keeps concurrent resolvers from racing each other.
func (r *Resolver) ensure(ctx context.Context, table, name string) (int64, error) {
	sql := db.InsertIgnoreSQL(table, []string{"name"}, []string{"name"})
	if _, err := r.pool.Exec(ctx, sql, name); err != nil {
		return 0, err
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		"SELECT id FROM "+table+" WHERE name = $1", name,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}
