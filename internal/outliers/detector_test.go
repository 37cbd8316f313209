package outliers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"tickoutlier/internal/config"
	apperrors "tickoutlier/internal/errors"
	"tickoutlier/internal/exporter"
	"tickoutlier/internal/files"
	"tickoutlier/internal/infrastructure"
	"tickoutlier/internal/shared/testutil"
	"tickoutlier/pkg/contracts/domain"
)

func windowOf(exchange, symbol string, prices []float64) domain.SampleWindow {
	ticks := make([]domain.Tick, len(prices))
	for i, p := range prices {
		ticks[i] = domain.Tick{ID: symbol, Timestamp: fmt.Sprintf("t%02d", i), Price: p}
	}
	return domain.SampleWindow{
		Exchange:   exchange,
		SourceFile: filepath.Join("inputs", exchange, symbol+".csv"),
		Ticks:      ticks,
	}
}

func flat(n int, p float64) []float64 {
	return spike(p, n, p)
}

func TestScore_IdenticalPricesHaveNoOutliers(t *testing.T) {
	for _, p := range []float64{0, 0.1, 10, 123456.789} {
		report, err := Score(windowOf("NYSE", "AAPL", flat(30, p)), 2)
		require.NoError(t, err)
		assert.True(t, report.Empty(), "price %v", p)
	}
}

func TestScore_SingleSpike(t *testing.T) {
	report, err := Score(windowOf("NYSE", "AAPL", spike(10, 30, 100)), 2)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", report.Tag)
	assert.Equal(t, "NYSE", report.Exchange)
	assert.InDelta(t, 13.0, report.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(270), report.StdDev, 1e-12)
	assert.InDelta(t, 32.86335345, report.Threshold, 1e-8)

	require.Len(t, report.Rows, 1)
	row := report.Rows[0]
	assert.Equal(t, 100.0, row.Price)
	assert.Equal(t, "t29", row.Timestamp)
	assert.InDelta(t, 87.0, row.Deviation, 1e-12)
	assert.InDelta(t, 87.0/13*100, row.PercentDeviation, 1e-9)
	assert.InDelta(t, 13.0, row.Mean, 1e-12)
}

func TestScore_ZeroMean(t *testing.T) {
	prices := flat(30, 0)
	prices[0] = -50
	prices[29] = 50

	report, err := Score(windowOf("LSE", "VOD", prices), 2)
	require.NoError(t, err)

	assert.Equal(t, 0.0, report.Mean)
	require.Len(t, report.Rows, 2)
	for _, row := range report.Rows {
		assert.False(t, row.HasPercentDeviation())
	}
}

func TestScore_ThresholdMultiplier(t *testing.T) {
	window := windowOf("NYSE", "AAPL", spike(10, 30, 100))

	report, err := Score(window, 10)
	require.NoError(t, err)
	assert.True(t, report.Empty(), "87 is below 10 sigma")

	report, err = Score(window, 5)
	require.NoError(t, err)
	assert.Len(t, report.Rows, 1, "87 is above 5 sigma")
}

func TestScore_RowsAreSubsetInWindowOrder(t *testing.T) {
	prices := flat(30, 10)
	prices[3] = 200
	prices[17] = -180

	window := windowOf("NYSE", "AAPL", prices)
	report, err := Score(window, 2)
	require.NoError(t, err)

	require.Len(t, report.Rows, 2)
	assert.Equal(t, window.Ticks[3], report.Rows[0].Tick)
	assert.Equal(t, window.Ticks[17], report.Rows[1].Tick)
}

func TestScore_EmptyWindow(t *testing.T) {
	_, err := Score(domain.SampleWindow{Exchange: "NYSE"}, 2)
	assert.ErrorIs(t, err, apperrors.ErrDegenerateWindow)
}

type detectorFixture struct {
	detector *Detector
	handler  *testutil.BufferedSlogHandler
	paths    *config.Paths
}

func newFixture(t *testing.T, writer ReportWriter, sinks ...ReportSink) *detectorFixture {
	t.Helper()

	paths, err := config.NewPaths(config.PathsConfig{InputDir: "inputs", OutputDir: "output"}, t.TempDir())
	require.NoError(t, err)

	logger, handler := testutil.NewTestLogger(t)
	if writer == nil {
		writer = exporter.NewCSVWriter(paths, files.NewManager(paths, logger), logger)
	}

	d, err := NewDetector(Options{
		ThresholdSigma: 2,
		Writer:         writer,
		Sinks:          sinks,
		Logger:         logger,
	})
	require.NoError(t, err)

	return &detectorFixture{detector: d, handler: handler, paths: paths}
}

func mixedSet() *domain.SampleSet {
	set := domain.NewSampleSet()
	set.Add("LSE", []domain.SampleWindow{windowOf("LSE", "VOD", flat(30, 50))})
	set.Add("NYSE", []domain.SampleWindow{
		windowOf("NYSE", "AAPL", spike(10, 30, 100)),
		windowOf("NYSE", "MSFT", spike(20, 30, -100)),
	})
	return set
}

func TestNewDetector_Validation(t *testing.T) {
	writer := &failingWriter{}

	_, err := NewDetector(Options{ThresholdSigma: 0, Writer: writer})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))

	_, err = NewDetector(Options{ThresholdSigma: math.NaN(), Writer: writer})
	assert.Error(t, err)

	_, err = NewDetector(Options{ThresholdSigma: 2})
	assert.Error(t, err)
}

func TestDetect_WritesOnlyNonEmptyReports(t *testing.T) {
	fx := newFixture(t, nil)

	require.NoError(t, fx.detector.Detect(context.Background(), mixedSet()))

	entries, err := os.ReadDir(fx.paths.OutputDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"NYSE_AAPL_outliers.csv", "NYSE_MSFT_outliers.csv"}, names)

	stats := fx.detector.Stats()
	assert.Equal(t, 3, stats.WindowsScored)
	assert.Equal(t, 2, stats.ReportsWritten)
	assert.Equal(t, 2, stats.OutliersFound)
	assert.Len(t, stats.Files, 2)

	testutil.AssertLogContains(t, fx.handler, slog.LevelInfo, "No outliers found")
	testutil.AssertLogAttr(t, fx.handler, "tag", "VOD")
	testutil.AssertLogContains(t, fx.handler, slog.LevelInfo, "Outliers saved")
	testutil.AssertLogAttr(t, fx.handler, "path", filepath.Join(fx.paths.OutputDir, "NYSE_AAPL_outliers.csv"))
	testutil.AssertNoErrors(t, fx.handler)
}

func TestDetect_IsIdempotent(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()
	set := mixedSet()

	require.NoError(t, fx.detector.Detect(ctx, set))
	first, err := os.ReadFile(filepath.Join(fx.paths.OutputDir, "NYSE_AAPL_outliers.csv"))
	require.NoError(t, err)

	require.NoError(t, fx.detector.Detect(ctx, set))
	second, err := os.ReadFile(filepath.Join(fx.paths.OutputDir, "NYSE_AAPL_outliers.csv"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 3, fx.detector.Stats().WindowsScored, "stats are per call")
}

func TestDetect_EmptySet(t *testing.T) {
	fx := newFixture(t, nil)

	require.NoError(t, fx.detector.Detect(context.Background(), domain.NewSampleSet()))
	assert.Zero(t, fx.detector.Stats().WindowsScored)
}

func TestDetect_NilSet(t *testing.T) {
	fx := newFixture(t, nil)

	err := fx.detector.Detect(context.Background(), nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDetection))
}

// failingWriter writes to a real CSVWriter until failAt writes have happened
type failingWriter struct {
	next   ReportWriter
	failAt int
	calls  int
}

func (w *failingWriter) WriteReport(ctx context.Context, report domain.OutlierReport) (string, error) {
	w.calls++
	if w.calls > w.failAt {
		return "", errors.New("disk full")
	}
	return w.next.WriteReport(ctx, report)
}

func TestDetect_WriteFailureAbortsAndKeepsEarlierFiles(t *testing.T) {
	paths, err := config.NewPaths(config.PathsConfig{InputDir: "inputs", OutputDir: "output"}, t.TempDir())
	require.NoError(t, err)
	logger, handler := testutil.NewTestLogger(t)

	writer := &failingWriter{
		next:   exporter.NewCSVWriter(paths, files.NewManager(paths, logger), logger),
		failAt: 1,
	}
	d, err := NewDetector(Options{ThresholdSigma: 2, Writer: writer, Logger: logger})
	require.NoError(t, err)

	set := mixedSet()
	set.Add("TSE", []domain.SampleWindow{windowOf("TSE", "TM", spike(1, 30, 50))})

	err = d.Detect(context.Background(), set)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDetection))
	assert.Equal(t, 2, writer.calls, "TSE is never reached")

	_, err = os.Stat(filepath.Join(paths.OutputDir, "NYSE_AAPL_outliers.csv"))
	assert.NoError(t, err, "reports written before the failure stay in place")

	testutil.AssertLogContains(t, handler, slog.LevelError, "Outlier detection aborted")
}

func TestDetect_EmptyWindowAborts(t *testing.T) {
	fx := newFixture(t, nil)

	set := domain.NewSampleSet()
	set.Add("NYSE", []domain.SampleWindow{{Exchange: "NYSE", SourceFile: "x.csv"}})

	err := fx.detector.Detect(context.Background(), set)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDegenerateWindow)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDetection))
}

type recordingSink struct {
	added   []domain.OutlierReport
	flushed int
	addErr  error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Add(_ context.Context, r domain.OutlierReport) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.added = append(s.added, r)
	return nil
}

func (s *recordingSink) Flush(context.Context) error {
	s.flushed++
	return nil
}

func TestDetect_Sinks(t *testing.T) {
	sink := &recordingSink{}
	fx := newFixture(t, nil, sink)

	require.NoError(t, fx.detector.Detect(context.Background(), mixedSet()))

	require.Len(t, sink.added, 2)
	assert.Equal(t, "AAPL", sink.added[0].Tag)
	assert.Equal(t, "MSFT", sink.added[1].Tag)
	assert.Equal(t, 1, sink.flushed)
}

func TestDetect_SinkFailureIsStorageError(t *testing.T) {
	sink := &recordingSink{addErr: errors.New("connection refused")}
	fx := newFixture(t, nil, sink)

	err := fx.detector.Detect(context.Background(), mixedSet())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
	assert.Contains(t, err.Error(), "recording sink")
	assert.Zero(t, sink.flushed)
}

func TestDetect_RecordsSpanEvents(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	fx := newFixture(t, nil)

	ctx, span := tp.Tracer("test").Start(context.Background(), "detect")
	require.NoError(t, fx.detector.Detect(ctx, mixedSet()))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)

	written := 0
	for _, ev := range ended[0].Events() {
		if ev.Name == "outlier_report.written" {
			written++
		}
	}
	assert.Equal(t, 2, written)
}

func TestDetect_SameTagTwiceOverwritesAndCountsOnce(t *testing.T) {
	paths, err := config.NewPaths(config.PathsConfig{InputDir: "inputs", OutputDir: "output"}, t.TempDir())
	require.NoError(t, err)
	logger, handler := testutil.NewTestLogger(t)

	providers, err := infrastructure.InitializeOTel(config.Default().Telemetry, logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())
	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	require.NoError(t, err)

	sink := &recordingSink{}
	d, err := NewDetector(Options{
		ThresholdSigma: 2,
		Writer:         exporter.NewCSVWriter(paths, files.NewManager(paths, logger), logger),
		Sinks:          []ReportSink{sink},
		Logger:         logger,
		Metrics:        metrics,
	})
	require.NoError(t, err)

	// both tick files of the exchange start their window with AAPL
	first := windowOf("NYSE", "AAPL", spike(10, 30, 100))
	second := windowOf("NYSE", "AAPL", spike(20, 30, -100))
	second.SourceFile = filepath.Join("inputs", "NYSE", "AAPL_b.csv")

	set := domain.NewSampleSet()
	set.Add("NYSE", []domain.SampleWindow{first, second})

	require.NoError(t, d.Detect(context.Background(), set))

	target := filepath.Join(paths.OutputDir, "NYSE_AAPL_outliers.csv")
	stats := d.Stats()
	assert.Equal(t, 2, stats.WindowsScored)
	assert.Equal(t, 1, stats.ReportsWritten)
	assert.Equal(t, 1, stats.Overwritten)
	assert.Equal(t, 2, stats.OutliersFound)
	assert.Equal(t, []string{target}, stats.Files)
	assert.Len(t, sink.added, 2, "sinks still see both reports")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "-100", "the later window wins")

	testutil.AssertLogContains(t, handler, slog.LevelWarn, "Outlier report overwritten by a later window of the same run")
	testutil.AssertLogAttr(t, handler, "source_file", second.SourceFile)

	saved := 0
	for _, r := range handler.GetRecords() {
		if r.Message == "Outliers saved" {
			saved++
		}
	}
	assert.Equal(t, 1, saved)

	families, err := providers.Registry.Gather()
	require.NoError(t, err)
	var filesWritten float64
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "outlier_files_written") {
			continue
		}
		for _, m := range mf.GetMetric() {
			filesWritten += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, filesWritten)
}

func TestDetect_OverwriteTrackingIsPerCall(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, fx.detector.Detect(ctx, mixedSet()))
	require.NoError(t, fx.detector.Detect(ctx, mixedSet()))

	stats := fx.detector.Stats()
	assert.Equal(t, 2, stats.ReportsWritten)
	assert.Zero(t, stats.Overwritten)
	for _, r := range fx.handler.GetRecords() {
		assert.NotEqual(t, slog.LevelWarn, r.Level, r.Message)
	}
}
