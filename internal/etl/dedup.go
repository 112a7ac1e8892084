package etl

// Deduper drops rows whose natural key has already been seen. The same
// abstraction covers record keys (geoid|commodity|year) and observation
// keys (record|kind|parameter|unit); callers seed it with keys already in
// the database and then feed it the in-flight batch.
type Deduper[T any] struct {
	keyFn func(T) string
	seen  map[string]bool
}

// NewDeduper builds a Deduper over the given key function.
func NewDeduper[T any](keyFn func(T) string) *Deduper[T] {
	return &Deduper[T]{keyFn: keyFn, seen: make(map[string]bool)}
}

// Seed marks keys as already present (e.g. loaded by a previous run).
func (d *Deduper[T]) Seed(keys []string) {
	for _, k := range keys {
		d.seen[k] = true
	}
}

// Admit reports whether the item's key is new, and records it. The second
// occurrence of a key in the same batch is rejected.
func (d *Deduper[T]) Admit(item T) bool {
	k := d.keyFn(item)
	if d.seen[k] {
		return false
	}
	d.seen[k] = true
	return true
}

// Seen reports whether a key has been admitted or seeded.
func (d *Deduper[T]) Seen(key string) bool {
	return d.seen[key]
}
