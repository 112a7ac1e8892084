package etl

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/biocirv/agstats-cli/internal/db"
)

// RunEntry is a row in ag_data.etl_run.
type RunEntry struct {
	ID          int64       `json:"id"`
	RunID       uuid.UUID   `json:"run_id"`
	GroupID     uuid.UUID   `json:"group_id"`
	Dataset     string      `json:"dataset"`
	Status      string      `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	RowsLoaded  int64       `json:"rows_loaded"`
	Error       string      `json:"error,omitempty"`
	Summary     *RunSummary `json:"summary,omitempty"`
}

// RunLog provides read/write access to the ag_data.etl_run table.
type RunLog struct {
	pool db.Pool
}

// NewRunLog creates a RunLog backed by the given connection pool.
func NewRunLog(pool db.Pool) *RunLog {
	return &RunLog{pool: pool}
}

// Start records the beginning of a pipeline run.
func (rl *RunLog) Start(ctx context.Context, lineage Lineage, dataset string) error {
	_, err := rl.pool.Exec(ctx,
		`INSERT INTO ag_data.etl_run (run_id, group_id, dataset, status, started_at)
		 VALUES ($1, $2, $3, 'running', now())`,
		lineage.RunID, lineage.GroupID, dataset,
	)
	if err != nil {
		return eris.Wrapf(err, "etl: start run log for %s", dataset)
	}
	return nil
}

// Complete marks a run as successfully completed with its summary.
func (rl *RunLog) Complete(ctx context.Context, runID uuid.UUID, summary RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "etl: marshal run summary")
	}

	_, err = rl.pool.Exec(ctx,
		`UPDATE ag_data.etl_run
		 SET status = 'complete', completed_at = now(), rows_loaded = $1, summary = $2
		 WHERE run_id = $3`,
		int64(summary.RecordsInserted+summary.ObservationsInserted), summaryJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "etl: complete run %s", runID)
	}
	return nil
}

// Fail marks a run as failed with an error message.
func (rl *RunLog) Fail(ctx context.Context, runID uuid.UUID, errMsg string) error {
	_, err := rl.pool.Exec(ctx,
		`UPDATE ag_data.etl_run
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE run_id = $2`,
		errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "etl: fail run %s", runID)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (rl *RunLog) List(ctx context.Context, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := rl.pool.Query(ctx,
		`SELECT id, run_id, group_id, dataset, status, started_at, completed_at, rows_loaded, error, summary
		 FROM ag_data.etl_run ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "etl: list runs")
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var completedAt *time.Time
		var errStr *string
		var summaryJSON []byte
		if err := rows.Scan(&e.ID, &e.RunID, &e.GroupID, &e.Dataset, &e.Status, &e.StartedAt, &completedAt, &e.RowsLoaded, &errStr, &summaryJSON); err != nil {
			return nil, eris.Wrap(err, "etl: scan run entry")
		}
		e.CompletedAt = completedAt
		if errStr != nil {
			e.Error = *errStr
		}
		if summaryJSON != nil {
			var s RunSummary
			if json.Unmarshal(summaryJSON, &s) == nil {
				e.Summary = &s
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
