package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/logger"
	"github.com/okian/facepace/pkg/metrics"
)

// SQL dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS leaderboard_entries (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	metric_kind TEXT NOT NULL,
	metric DOUBLE PRECISION NOT NULL,
	image_url TEXT NOT NULL,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS leaderboard_entries_order ON leaderboard_entries (metric, created_at, id);
`

const selectColumns = `id, name, metric_kind, metric, image_url, created_at`

// SQLStore implements Store over database/sql. It supports SQLite
// (modernc.org/sqlite) and PostgreSQL (lib/pq).
type SQLStore struct {
	db      *sql.DB
	dialect string
	logger  logger.Logger
}

// OpenSQLStore opens dsn with the driver for dialect and migrates the schema.
func OpenSQLStore(ctx context.Context, dialect, dsn string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// one writer; a shared in-memory database also needs a single connection
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLStore(db, dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database. Call Init to create the schema.
func NewSQLStore(db *sql.DB, dialect string, opts ...Option) (*SQLStore, error) {
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, dialect)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SQLStore{db: db, dialect: dialect, logger: o.logger.Named("leaderboard-sql")}, nil
}

// Init creates the table and index if missing.
func (s *SQLStore) Init(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate leaderboard: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Insert publishes e.
func (s *SQLStore) Insert(ctx context.Context, e model.LeaderboardEntry) error {
	if err := validate(e); err != nil {
		return fmt.Errorf("%w: %s", err, e.ID)
	}
	query := s.rebind(`INSERT INTO leaderboard_entries (` + selectColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.DisplayName, string(e.MetricKind), e.Metric, e.ImageRef, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
		}
		metrics.RecordErrorByComponent("repository", "insert")
		return fmt.Errorf("insert leaderboard entry: %w", err)
	}
	metrics.RecordLeaderboardInsert()
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateLeaderboardEntries(n)
	}
	return nil
}

// Rank returns the entry and the number of entries ordered before it, plus one.
func (s *SQLStore) Rank(ctx context.Context, id string) (Ranked, error) {
	start := time.Now()
	defer func() { metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Milliseconds())) }()

	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+selectColumns+` FROM leaderboard_entries WHERE id = ?`), id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ranked{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Ranked{}, fmt.Errorf("get leaderboard entry: %w", err)
	}

	at := e.CreatedAt.UnixNano()
	query := s.rebind(`SELECT COUNT(*) FROM leaderboard_entries
		WHERE metric < ? OR (metric = ? AND (created_at < ? OR (created_at = ? AND id < ?)))`)
	var before int
	if err := s.db.QueryRowContext(ctx, query, e.Metric, e.Metric, at, at, e.ID).Scan(&before); err != nil {
		return Ranked{}, fmt.Errorf("rank leaderboard entry: %w", err)
	}
	return Ranked{LeaderboardEntry: e, Rank: before + 1}, nil
}

// TopN returns the first n entries.
func (s *SQLStore) TopN(ctx context.Context, n int) ([]Ranked, error) {
	start := time.Now()
	defer func() { metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Milliseconds())) }()

	if n < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+selectColumns+` FROM leaderboard_entries ORDER BY metric ASC, created_at ASC, id ASC LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Ranked, 0, n)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		out = append(out, Ranked{LeaderboardEntry: e, Rank: len(out) + 1})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	return out, nil
}

// Count returns the number of entries.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leaderboard_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count leaderboard: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (model.LeaderboardEntry, error) {
	var (
		e    model.LeaderboardEntry
		kind string
		at   int64
	)
	if err := sc.Scan(&e.ID, &e.DisplayName, &kind, &e.Metric, &e.ImageRef, &at); err != nil {
		return model.LeaderboardEntry{}, err
	}
	e.MetricKind = model.MetricKind(kind)
	e.CreatedAt = time.Unix(0, at).UTC()
	return e, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
