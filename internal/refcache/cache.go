package refcache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrSourceUnavailable is returned when the taxonomy endpoint cannot be
// reached and no usable snapshot exists.
var ErrSourceUnavailable = eris.New("refcache: commodity source unavailable and no cached snapshot")

// Lister fetches the commodity universe for a geography from the external
// taxonomy API.
type Lister interface {
	ListCommodities(ctx context.Context, state string) ([]CommodityReference, error)
}

// Options configures snapshot staleness policy.
type Options struct {
	// MaxAge marks a snapshot stale once its mtime is older than this.
	// Zero means snapshots never go stale.
	MaxAge time.Duration

	// AllowStale permits serving a stale snapshot (with a logged warning)
	// when the taxonomy endpoint is unreachable. Off by default so a dead
	// source is loud, not silent.
	AllowStale bool
}

// Cache is a keyed local snapshot of the commodity reference list.
// Snapshots are human-readable JSON, replaced atomically.
type Cache struct {
	dir    string
	lister Lister
	opts   Options
}

// New creates a Cache storing snapshots under dir.
func New(dir string, lister Lister, opts Options) *Cache {
	return &Cache{dir: dir, lister: lister, opts: opts}
}

// Path returns the snapshot file for a geography key.
func (c *Cache) Path(state string) string {
	return filepath.Join(c.dir, fmt.Sprintf("commodities_%s.json", strings.ToLower(state)))
}

// Stale reports whether the snapshot for state exists but is older than MaxAge.
func (c *Cache) Stale(state string) bool {
	if c.opts.MaxAge <= 0 {
		return false
	}
	info, err := os.Stat(c.Path(state))
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > c.opts.MaxAge
}

// FetchAll returns the commodity references for a geography. A fresh
// snapshot is served without a network call. On miss, staleness, or an
// explicit refresh the taxonomy endpoint is queried and the snapshot
// replaced atomically. If the fetch fails, a stale snapshot is served only
// when AllowStale is set; otherwise the caller gets ErrSourceUnavailable.
func (c *Cache) FetchAll(ctx context.Context, state string, refresh bool) ([]CommodityReference, error) {
	log := zap.L().With(zap.String("component", "refcache"), zap.String("state", state))

	path := c.Path(state)
	cached, cacheErr := readSnapshot(path)
	haveCache := cacheErr == nil

	if haveCache && !refresh && !c.Stale(state) {
		log.Debug("serving commodity snapshot", zap.Int("count", len(cached)))
		return cached, nil
	}

	refs, err := c.lister.ListCommodities(ctx, state)
	if err != nil {
		if haveCache && c.opts.AllowStale {
			log.Warn("taxonomy fetch failed, serving stale snapshot",
				zap.Int("count", len(cached)),
				zap.Error(err),
			)
			return cached, nil
		}
		return nil, eris.Wrap(err, ErrSourceUnavailable.Error())
	}

	if err := WriteJSONAtomic(path, refs); err != nil {
		return nil, err
	}
	log.Info("commodity snapshot refreshed", zap.Int("count", len(refs)))
	return refs, nil
}

func readSnapshot(path string) ([]CommodityReference, error) {
	var refs []CommodityReference
	if err := ReadJSON(path, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// WriteJSONAtomic writes v as indented JSON via a temp file + rename so a
// crash mid-write never leaves a corrupt half-written snapshot.
func WriteJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "refcache: create dir for %s", path)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "refcache: marshal %s", path)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "refcache: create temp for %s", path)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrapf(err, "refcache: write temp for %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "refcache: close temp for %s", path)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "refcache: replace %s", path)
	}
	return nil
}

// ReadJSON reads a JSON file into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "refcache: read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "refcache: decode %s", path)
	}
	return nil
}
