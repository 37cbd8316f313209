package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tickoutlier/pkg/contracts/domain"
)

// DB is the subset of *pgxpool.Pool used by PostgresSink
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// OutlierColumns lists the columns written for every outlier row
var OutlierColumns = []string{
	"run_id", "run_started_at", "exchange", "tag", "source_file", "window_start",
	"symbol", "tick_timestamp", "price", "mean", "deviation", "percent_deviation",
}

// Connect creates a connection pool and verifies it with a ping
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	// One pass, one writer
	poolCfg.MinConns = 0
	poolCfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// SinkStats counts what a PostgresSink stored
type SinkStats struct {
	Reports int64
	Rows    int64
}

// PostgresSink stores every outlier row of a run, tagged with the run ID
type PostgresSink struct {
	db      DB
	table   pgx.Identifier
	run     domain.Run
	logger  *slog.Logger
	ensured bool
	stats   SinkStats
}

// NewPostgresSink creates a sink writing to table, which may be schema-qualified
func NewPostgresSink(db DB, table string, run domain.Run, logger *slog.Logger) *PostgresSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSink{
		db:     db,
		table:  pgx.Identifier(strings.Split(table, ".")),
		run:    run,
		logger: logger.With("component", "postgres_sink"),
	}
}

// Name identifies the sink in errors
func (s *PostgresSink) Name() string {
	return "postgres"
}

// CreateTableSQL returns the DDL of the outlier table
func (s *PostgresSink) CreateTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id            UUID             NOT NULL,
	run_started_at    TIMESTAMPTZ      NOT NULL,
	exchange          TEXT             NOT NULL,
	tag               TEXT             NOT NULL,
	source_file       TEXT             NOT NULL,
	window_start      INTEGER          NOT NULL,
	symbol            TEXT             NOT NULL,
	tick_timestamp    TEXT             NOT NULL,
	price             DOUBLE PRECISION NOT NULL,
	mean              DOUBLE PRECISION NOT NULL,
	deviation         DOUBLE PRECISION NOT NULL,
	percent_deviation DOUBLE PRECISION
)`, s.table.Sanitize())
}

// EnsureTable creates the outlier table if needed
func (s *PostgresSink) EnsureTable(ctx context.Context) error {
	if s.ensured {
		return nil
	}
	if _, err := s.db.Exec(ctx, s.CreateTableSQL()); err != nil {
		return fmt.Errorf("create table %s: %w", s.table.Sanitize(), err)
	}
	s.ensured = true
	return nil
}

// ReportRows maps a report to CopyFrom rows in OutlierColumns order.
// An undefined percent deviation is stored as NULL.
func ReportRows(run domain.Run, report domain.OutlierReport) [][]any {
	rows := make([][]any, 0, len(report.Rows))
	for _, r := range report.Rows {
		var pct any
		if r.HasPercentDeviation() {
			pct = r.PercentDeviation
		}
		rows = append(rows, []any{
			run.ID,
			run.StartedAt,
			report.Exchange,
			report.Tag,
			report.SourceFile,
			report.Start,
			r.ID,
			r.Timestamp,
			r.Price,
			r.Mean,
			r.Deviation,
			pct,
		})
	}
	return rows
}

// Add copies the rows of one report
func (s *PostgresSink) Add(ctx context.Context, report domain.OutlierReport) error {
	if err := s.EnsureTable(ctx); err != nil {
		return err
	}

	rows := ReportRows(s.run, report)
	n, err := s.db.CopyFrom(ctx, s.table, OutlierColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy outliers: %w", err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copy outliers: wrote %d of %d rows", n, len(rows))
	}

	s.stats.Reports++
	s.stats.Rows += n
	return nil
}

// Flush logs what the run stored. Rows are already committed by Add.
func (s *PostgresSink) Flush(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Outliers stored in postgres",
		slog.String("table", s.table.Sanitize()),
		slog.Int64("reports", s.stats.Reports),
		slog.Int64("rows", s.stats.Rows))
	return nil
}

// Stats returns the sink counters
func (s *PostgresSink) Stats() SinkStats {
	return s.stats
}
