// Package telemetry records local search metrics so slow and fruitless
// queries can be inspected later. Everything stays on disk in a SQLite
// file; nothing is reported anywhere.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// LatencyBucket is one histogram bucket of search latency.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// zeroResultCap bounds the retained zero-result query list.
const zeroResultCap = 100

// TermCount is a query term and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an aggregate view of recorded searches.
type Snapshot struct {
	TotalSearches       int64                   `json:"total_searches"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	TopTerms            []TermCount             `json:"top_terms"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
}

// Store persists search metrics in a local SQLite database. Recording is
// best effort and never fails the search path.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the metrics database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_stats (
		date TEXT NOT NULL,
		workspace TEXT NOT NULL,
		searches INTEGER NOT NULL DEFAULT 0,
		zero_results INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, workspace)
	);

	CREATE TABLE IF NOT EXISTS query_terms (
		term TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		workspace TEXT NOT NULL,
		query TEXT NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS search_latency_stats (
		date TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// RecordSearch logs one search. Errors are logged, never returned, so a
// broken telemetry file cannot degrade search.
func (s *Store) RecordSearch(ctx context.Context, workspaceID, query string, results int, took time.Duration) {
	date := time.Now().UTC().Format("2006-01-02")
	zero := 0
	if results == 0 {
		zero = 1
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO search_stats (date, workspace, searches, zero_results)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(date, workspace) DO UPDATE SET
			searches = searches + 1,
			zero_results = zero_results + excluded.zero_results
	`, date, workspaceID, zero); err != nil {
		s.logger.Warn("failed to record search stats", slog.String("error", err.Error()))
		return
	}

	if err := s.recordTerms(ctx, query); err != nil {
		s.logger.Warn("failed to record query terms", slog.String("error", err.Error()))
	}
	if err := s.recordLatency(ctx, date, took); err != nil {
		s.logger.Warn("failed to record search latency", slog.String("error", err.Error()))
	}
	if results == 0 {
		if err := s.recordZeroResult(ctx, workspaceID, query); err != nil {
			s.logger.Warn("failed to record zero-result query", slog.String("error", err.Error()))
		}
	}
}

func (s *Store) recordTerms(ctx context.Context, query string) error {
	terms := ExtractTerms(query)
	if len(terms) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO query_terms (term, count, last_seen)
		VALUES (?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + 1,
			last_seen = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, term := range terms {
		if _, err := stmt.ExecContext(ctx, term); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) recordLatency(ctx context.Context, date string, took time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_latency_stats (date, bucket, count)
		VALUES (?, ?, 1)
		ON CONFLICT(date, bucket) DO UPDATE SET count = count + 1
	`, date, string(LatencyToBucket(took)))
	return err
}

func (s *Store) recordZeroResult(ctx context.Context, workspaceID, query string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO zero_result_queries (workspace, query) VALUES (?, ?)
	`, workspaceID, query); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM zero_result_queries
		WHERE id NOT IN (
			SELECT id FROM zero_result_queries ORDER BY id DESC LIMIT ?
		)
	`, zeroResultCap)
	return err
}

// Snapshot aggregates everything recorded so far.
func (s *Store) Snapshot(ctx context.Context, topTerms int) (*Snapshot, error) {
	snap := &Snapshot{LatencyDistribution: make(map[LatencyBucket]int64)}

	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(searches), 0), COALESCE(SUM(zero_results), 0)
		FROM search_stats
	`)
	if err := row.Scan(&snap.TotalSearches, &snap.ZeroResultCount); err != nil {
		return nil, fmt.Errorf("aggregate search stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT term, count FROM query_terms ORDER BY count DESC LIMIT ?
	`, topTerms)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		snap.TopTerms = append(snap.TopTerms, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	zrows, err := s.db.QueryContext(ctx, `
		SELECT query FROM zero_result_queries ORDER BY id DESC LIMIT ?
	`, zeroResultCap)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer func() { _ = zrows.Close() }()
	for zrows.Next() {
		var q string
		if err := zrows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan zero-result query: %w", err)
		}
		snap.ZeroResultQueries = append(snap.ZeroResultQueries, q)
	}
	if err := zrows.Err(); err != nil {
		return nil, err
	}

	lrows, err := s.db.QueryContext(ctx, `
		SELECT bucket, SUM(count) FROM search_latency_stats GROUP BY bucket
	`)
	if err != nil {
		return nil, fmt.Errorf("query latency stats: %w", err)
	}
	defer func() { _ = lrows.Close() }()
	for lrows.Next() {
		var bucket string
		var count int64
		if err := lrows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan latency bucket: %w", err)
		}
		snap.LatencyDistribution[LatencyBucket(bucket)] = count
	}
	return snap, lrows.Err()
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ExtractTerms splits a query into lowercased terms of length >= 3.
func ExtractTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var terms []string
	for _, w := range strings.Fields(query) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}
