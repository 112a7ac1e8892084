package etl

import "github.com/google/uuid"

// Lineage identifies the provenance of every produced row. RunID is unique
// per pipeline execution; GroupID ties related runs (e.g. one run-all
// invocation) together.
type Lineage struct {
	RunID   uuid.UUID
	GroupID uuid.UUID
}

// NewLineage mints a fresh lineage. A zero group gets its own id.
func NewLineage(group uuid.UUID) Lineage {
	if group == uuid.Nil {
		group = uuid.New()
	}
	return Lineage{RunID: uuid.New(), GroupID: group}
}
