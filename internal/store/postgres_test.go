package store

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickoutlier/internal/shared/testutil"
	"tickoutlier/pkg/contracts/domain"
)

type fakeDB struct {
	execs     []string
	execErr   error
	copyErr   error
	dropRows  int64
	tables    []pgx.Identifier
	columns   [][]string
	copiedRow [][]any
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeDB) CopyFrom(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.tables = append(f.tables, table)
	f.columns = append(f.columns, cols)
	var n int64
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		f.copiedRow = append(f.copiedRow, vals)
		n++
	}
	return n - f.dropRows, src.Err()
}

var testRun = domain.Run{
	ID:        "7f9c2b1e-3d4a-4b5c-8e6f-0a1b2c3d4e5f",
	StartedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
}

func testReport() domain.OutlierReport {
	return domain.OutlierReport{
		Exchange:   "NYSE",
		Tag:        "AAPL",
		SourceFile: "inputs/NYSE/AAPL.csv",
		Start:      4,
		Mean:       100,
		StdDev:     2,
		Threshold:  2,
		Rows: []domain.OutlierRow{
			{Tick: domain.Tick{ID: "AAPL", Timestamp: "01-09-2023 10:04:00", Price: 110}, Mean: 100, Deviation: 10, PercentDeviation: 10},
			{Tick: domain.Tick{ID: "AAPL", Timestamp: "01-09-2023 10:09:00", Price: 92}, Mean: 100, Deviation: -8, PercentDeviation: -8},
		},
	}
}

func TestReportRows(t *testing.T) {
	rows := ReportRows(testRun, testReport())
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Len(t, r, len(OutlierColumns))
	}

	assert.Equal(t, []any{
		testRun.ID, testRun.StartedAt, "NYSE", "AAPL", "inputs/NYSE/AAPL.csv", 4,
		"AAPL", "01-09-2023 10:04:00", 110.0, 100.0, 10.0, 10.0,
	}, rows[0])
	assert.Equal(t, -8.0, rows[1][10])
}

func TestReportRows_UndefinedPercentIsNull(t *testing.T) {
	report := testReport()
	report.Rows[0].PercentDeviation = math.NaN()

	rows := ReportRows(testRun, report)
	assert.Nil(t, rows[0][11])
	assert.Equal(t, -8.0, rows[1][11])
}

func TestPostgresSink_Add(t *testing.T) {
	db := &fakeDB{}
	logger, _ := testutil.NewTestLogger(t)
	sink := NewPostgresSink(db, "analytics.tick_outliers", testRun, logger)
	ctx := context.Background()

	require.NoError(t, sink.Add(ctx, testReport()))
	require.NoError(t, sink.Add(ctx, testReport()))

	// Table is created once per sink
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], `CREATE TABLE IF NOT EXISTS "analytics"."tick_outliers"`)
	assert.Contains(t, db.execs[0], "percent_deviation DOUBLE PRECISION\n")

	require.Len(t, db.tables, 2)
	assert.Equal(t, pgx.Identifier{"analytics", "tick_outliers"}, db.tables[0])
	assert.Equal(t, OutlierColumns, db.columns[0])
	assert.Len(t, db.copiedRow, 4)

	assert.Equal(t, SinkStats{Reports: 2, Rows: 4}, sink.Stats())
	assert.Equal(t, "postgres", sink.Name())
}

func TestPostgresSink_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("create table fails", func(t *testing.T) {
		db := &fakeDB{execErr: errors.New("permission denied")}
		sink := NewPostgresSink(db, "tick_outliers", testRun, nil)

		err := sink.Add(ctx, testReport())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create table")
		assert.Empty(t, db.copiedRow)
	})

	t.Run("copy fails", func(t *testing.T) {
		db := &fakeDB{copyErr: errors.New("connection reset")}
		sink := NewPostgresSink(db, "tick_outliers", testRun, nil)

		err := sink.Add(ctx, testReport())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "copy outliers")
		assert.Zero(t, sink.Stats().Rows)
	})

	t.Run("short copy", func(t *testing.T) {
		db := &fakeDB{dropRows: 1}
		sink := NewPostgresSink(db, "tick_outliers", testRun, nil)

		err := sink.Add(ctx, testReport())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wrote 1 of 2 rows")
	})
}

func TestPostgresSink_Flush(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	sink := NewPostgresSink(&fakeDB{}, "tick_outliers", testRun, logger)

	require.NoError(t, sink.Add(context.Background(), testReport()))
	require.NoError(t, sink.Flush(context.Background()))

	testutil.AssertLogContains(t, handler, slog.LevelInfo, "Outliers stored in postgres")
}

func TestPostgresSink_Integration(t *testing.T) {
	dsn := os.Getenv("TICKOUTLIER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TICKOUTLIER_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	table := "tick_outliers_test"
	_, err = pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{table}.Sanitize())
	require.NoError(t, err)

	sink := NewPostgresSink(pool, table, testRun, nil)
	require.NoError(t, sink.Add(ctx, testReport()))

	var n int
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT count(*) FROM "+pgx.Identifier{table}.Sanitize()+" WHERE run_id = $1", testRun.ID).Scan(&n))
	assert.Equal(t, 2, n)
}
