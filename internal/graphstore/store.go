// Package graphstore is the persistence layer over the Neo4j graph.
// All writes are idempotent MERGE upserts keyed by the schema's uniqueness
// constraints, so re-running a scan against unchanged remote state leaves
// the graph unchanged apart from run bookkeeping.
package graphstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Querier abstracts Cypher execution. The real implementation wraps a
// Bolt driver; tests inject a recording mock so store logic is exercised
// without a live database.
type Querier interface {
	Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// boltQuerier is the production Querier backed by neo4j.DriverWithContext.
type boltQuerier struct {
	driver   neo4j.DriverWithContext
	database string
}

func (q *boltQuerier) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(ctx, q.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(q.database),
	)
	if err != nil {
		return nil, fmt.Errorf("graphstore: query failed: %w", err)
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, rec := range result.Records {
		rows = append(rows, rec.AsMap())
	}

	return rows, nil
}

// Store provides the graph persistence operations shared by the walker,
// the delta consumer, and the orchestrator. Methods are safe for
// concurrent use for different item keys; callers serialize per-drive
// traversals themselves.
type Store struct {
	q      Querier
	logger *slog.Logger
}

// New creates a Store over the given Querier.
func New(q Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{q: q, logger: logger}
}

// Connect opens a Bolt connection, verifies connectivity, and returns a
// Store plus a close function for the underlying driver.
func Connect(ctx context.Context, uri, user, password, database string, logger *slog.Logger) (*Store, func(ctx context.Context) error, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, nil, fmt.Errorf("graphstore: creating driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, nil, fmt.Errorf("graphstore: verifying connectivity to %s: %w", uri, err)
	}

	store := New(&boltQuerier{driver: driver, database: database}, logger)

	return store, driver.Close, nil
}

// schemaStatements create the uniqueness constraints and indexes the
// upsert operations rely on. All statements are idempotent.
var schemaStatements = []string{
	"CREATE CONSTRAINT user_email IF NOT EXISTS FOR (u:User) REQUIRE u.email IS UNIQUE",
	"CREATE CONSTRAINT site_id IF NOT EXISTS FOR (s:Site) REQUIRE s.siteId IS UNIQUE",
	"CREATE CONSTRAINT scan_run_id IF NOT EXISTS FOR (r:ScanRun) REQUIRE r.runId IS UNIQUE",
	"CREATE CONSTRAINT delta_drive_id IF NOT EXISTS FOR (d:DeltaState) REQUIRE d.driveId IS UNIQUE",
	"CREATE CONSTRAINT file_key IF NOT EXISTS FOR (f:File) REQUIRE (f.driveId, f.itemId) IS UNIQUE",
}

// InitSchema creates constraints and indexes for the graph schema.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.q.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("graphstore: initializing schema: %w", err)
		}
	}

	s.logger.Info("graph schema initialized",
		slog.Int("statements", len(schemaStatements)),
	)

	return nil
}
