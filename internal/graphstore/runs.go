package graphstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Scan run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Scan types.
const (
	ScanTypeFull  = "full"
	ScanTypeDelta = "delta"
)

// CreateScanRun creates a ScanRun node with status "running" and returns
// its runId. One is created per orchestrator invocation.
func (s *Store) CreateScanRun(ctx context.Context, scanType string) (string, error) {
	runID := uuid.NewString()

	_, err := s.q.Run(ctx,
		`CREATE (r:ScanRun {
			runId: $runId, timestamp: $ts,
			status: 'running', scanType: $scanType
		})`,
		map[string]any{
			"runId":    runID,
			"ts":       time.Now().UTC().Format(time.RFC3339),
			"scanType": scanType,
		},
	)
	if err != nil {
		return "", fmt.Errorf("graphstore: creating scan run: %w", err)
	}

	s.logger.Info("scan run created",
		slog.String("run_id", runID),
		slog.String("scan_type", scanType),
	)

	return runID, nil
}

// FinishScanRun sets a ScanRun's terminal status (completed or failed).
// Set exactly once per run; a run left in "running" after a crash is
// never touched again and is ignored by readers.
func (s *Store) FinishScanRun(ctx context.Context, runID, status string) error {
	_, err := s.q.Run(ctx,
		"MATCH (r:ScanRun {runId: $runId}) SET r.status = $status",
		map[string]any{"runId": runID, "status": status},
	)
	if err != nil {
		return fmt.Errorf("graphstore: finishing scan run %s: %w", runID, err)
	}

	return nil
}

// LastFullScanTime returns the timestamp of the most recent completed
// full scan, or the zero time when none exists.
func (s *Store) LastFullScanTime(ctx context.Context) (time.Time, error) {
	rows, err := s.q.Run(ctx, `
		MATCH (r:ScanRun {status: 'completed', scanType: 'full'})
		RETURN r.timestamp AS timestamp
		ORDER BY r.timestamp DESC
		LIMIT 1`,
		nil,
	)
	if err != nil {
		return time.Time{}, err
	}

	if len(rows) == 0 {
		return time.Time{}, nil
	}

	raw, _ := rows[0]["timestamp"].(string)

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("graphstore: parsing scan run timestamp %q: %w", raw, err)
	}

	return t, nil
}

// HasDeltaStates reports whether any drive has a stored delta link.
func (s *Store) HasDeltaStates(ctx context.Context) (bool, error) {
	rows, err := s.q.Run(ctx, "MATCH (d:DeltaState) RETURN count(d) AS count", nil)
	if err != nil {
		return false, err
	}

	if len(rows) == 0 {
		return false, nil
	}

	count, _ := rows[0]["count"].(int64)

	return count > 0, nil
}

// SaveDeltaLink stores or overwrites the delta continuation token for a
// drive. Called after every successful traversal of the drive in either
// mode.
func (s *Store) SaveDeltaLink(ctx context.Context, driveID, deltaLink string) error {
	_, err := s.q.Run(ctx,
		`MERGE (d:DeltaState {driveId: $driveId})
		 SET d.deltaLink = $deltaLink,
		     d.updatedAt = datetime()`,
		map[string]any{"driveId": driveID, "deltaLink": deltaLink},
	)
	if err != nil {
		return fmt.Errorf("graphstore: saving delta link for drive %s: %w", driveID, err)
	}

	return nil
}

// DeltaLink returns the stored continuation token for a drive, or empty
// when the drive has never completed a traversal.
func (s *Store) DeltaLink(ctx context.Context, driveID string) (string, error) {
	rows, err := s.q.Run(ctx,
		"MATCH (d:DeltaState {driveId: $driveId}) RETURN d.deltaLink AS deltaLink",
		map[string]any{"driveId": driveID},
	)
	if err != nil {
		return "", err
	}

	if len(rows) == 0 {
		return "", nil
	}

	link, _ := rows[0]["deltaLink"].(string)

	return link, nil
}

// SweepStaleEdges deletes SHARED_WITH edges that the given run failed to
// re-observe: the item was confirmed present (FOUND by this run) but the
// edge's lastSeenRunId is older. Run after a completed full crawl so
// permissions that silently vanished between runs do not linger forever.
// Returns the number of edges removed.
func (s *Store) SweepStaleEdges(ctx context.Context, runID string) (int, error) {
	rows, err := s.q.Run(ctx, `
		MATCH (r:ScanRun {runId: $runId})-[:FOUND]->(f:File)-[s:SHARED_WITH]->()
		WHERE s.lastSeenRunId <> $runId
		DELETE s
		RETURN count(s) AS removed`,
		map[string]any{"runId": runID},
	)
	if err != nil {
		return 0, fmt.Errorf("graphstore: sweeping stale edges for run %s: %w", runID, err)
	}

	var removed int64
	if len(rows) > 0 {
		removed, _ = rows[0]["removed"].(int64)
	}

	s.logger.Info("swept stale sharing edges",
		slog.String("run_id", runID),
		slog.Int64("removed", removed),
	)

	return int(removed), nil
}
