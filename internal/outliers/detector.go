package outliers

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/attribute"

	apperrors "tickoutlier/internal/errors"
	"tickoutlier/internal/infrastructure"
	"tickoutlier/pkg/contracts/domain"
)

// ReportWriter persists a non-empty report and returns the path written
type ReportWriter interface {
	WriteReport(ctx context.Context, report domain.OutlierReport) (string, error)
}

// ReportSink receives every non-empty report after it was written.
// Flush is called once when detection completes without error.
type ReportSink interface {
	Name() string
	Add(ctx context.Context, report domain.OutlierReport) error
	Flush(ctx context.Context) error
}

// Options configures a Detector
type Options struct {
	ThresholdSigma float64
	Run            domain.Run
	Writer         ReportWriter
	Sinks          []ReportSink
	Logger         *slog.Logger
	Metrics        *infrastructure.PipelineMetrics
}

// Stats summarizes one Detect call. ReportsWritten and Files count distinct
// paths; a report overwritten later in the same call is counted once.
type Stats struct {
	WindowsScored  int
	ReportsWritten int
	Overwritten    int
	OutliersFound  int
	Files          []string
}

// Detector scores sample windows and writes their outliers
type Detector struct {
	sigma   float64
	run     domain.Run
	writer  ReportWriter
	sinks   []ReportSink
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
	stats   Stats
	written map[string]struct{}
}

// NewDetector creates a detector
func NewDetector(opts Options) (*Detector, error) {
	if !(opts.ThresholdSigma > 0) || math.IsInf(opts.ThresholdSigma, 0) {
		return nil, apperrors.NewConfigError("threshold sigma must be a positive number", nil).
			WithContext("threshold_sigma", opts.ThresholdSigma)
	}
	if opts.Writer == nil {
		return nil, apperrors.NewConfigError("report writer is required", nil)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		sigma:   opts.ThresholdSigma,
		run:     opts.Run,
		writer:  opts.Writer,
		sinks:   opts.Sinks,
		logger:  infrastructure.WithComponent(logger, "detector"),
		metrics: opts.Metrics,
	}, nil
}

// Score computes the window statistics and keeps the ticks whose absolute
// deviation from the mean is strictly greater than sigma standard deviations
func Score(window domain.SampleWindow, sigma float64) (domain.OutlierReport, error) {
	if window.Len() == 0 {
		return domain.OutlierReport{}, fmt.Errorf("%w: window of %s has no ticks",
			apperrors.ErrDegenerateWindow, window.SourceFile)
	}

	prices := domain.Prices(window.Ticks)
	mean := Mean(prices)
	std := SampleStdDev(prices, mean)
	threshold := sigma * std

	report := domain.OutlierReport{
		Exchange:   window.Exchange,
		Tag:        window.Tag(),
		SourceFile: window.SourceFile,
		Start:      window.Start,
		Mean:       mean,
		StdDev:     std,
		Threshold:  threshold,
	}

	for _, tick := range window.Ticks {
		deviation := tick.Price - mean
		if math.Abs(deviation) <= threshold {
			continue
		}
		report.Rows = append(report.Rows, domain.OutlierRow{
			Tick:             tick,
			Mean:             mean,
			Deviation:        deviation,
			PercentDeviation: PercentDeviation(deviation, mean),
		})
	}

	return report, nil
}

// Detect scores every window of set in exchange order. The first scoring or
// write failure aborts the remaining work; reports already written stay.
func (d *Detector) Detect(ctx context.Context, set *domain.SampleSet) error {
	d.stats = Stats{}
	d.written = make(map[string]struct{})

	if set == nil {
		return apperrors.NewDetectionError("no sample set to score", nil)
	}

	d.logger.DebugContext(ctx, "Scoring sample set",
		slog.Int("exchanges", set.Len()),
		slog.Int("windows", set.WindowCount()),
		slog.Float64("threshold_sigma", d.sigma),
		slog.Time("run_started_at", d.run.StartedAt))

	for _, exchange := range set.Exchanges() {
		windows, _ := set.Windows(exchange)
		for _, window := range windows {
			if err := d.detectWindow(ctx, window); err != nil {
				d.logger.ErrorContext(ctx, "Outlier detection aborted",
					slog.String("exchange", exchange),
					slog.String("source_file", window.SourceFile),
					slog.String("error", err.Error()))
				return err
			}
		}
	}

	for _, sink := range d.sinks {
		if err := sink.Flush(ctx); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to flush %s sink", sink.Name()), err)
		}
	}

	d.logger.InfoContext(ctx, "Outlier detection complete",
		slog.Int("windows", d.stats.WindowsScored),
		slog.Int("reports", d.stats.ReportsWritten),
		slog.Int("overwritten", d.stats.Overwritten),
		slog.Int("outliers", d.stats.OutliersFound))

	return nil
}

func (d *Detector) detectWindow(ctx context.Context, window domain.SampleWindow) error {
	report, err := Score(window, d.sigma)
	if err != nil {
		return apperrors.NewDetectionError("failed to score window", err).
			WithContext("exchange", window.Exchange).
			WithContext("source_file", window.SourceFile)
	}

	d.stats.WindowsScored++
	d.metrics.RecordWindowScored(ctx, window.Exchange, len(report.Rows))

	if report.Empty() {
		d.logger.InfoContext(ctx, "No outliers found",
			slog.String("exchange", report.Exchange),
			slog.String("tag", report.Tag))
		return nil
	}

	path, err := d.writer.WriteReport(ctx, report)
	if err != nil {
		return apperrors.NewDetectionError("failed to write outlier report", err).
			WithContext("exchange", report.Exchange).
			WithContext("tag", report.Tag)
	}

	_, reused := d.written[path]
	d.stats.OutliersFound += len(report.Rows)
	infrastructure.AddSpanEvent(ctx, "outlier_report.written",
		attribute.String("exchange", report.Exchange),
		attribute.String("tag", report.Tag),
		attribute.String("path", path),
		attribute.Int("outliers", len(report.Rows)),
		attribute.Bool("overwrite", reused))

	if reused {
		// two windows of one exchange start with the same ID; the later one wins
		d.stats.Overwritten++
		d.logger.WarnContext(ctx, "Outlier report overwritten by a later window of the same run",
			slog.String("path", path),
			slog.String("exchange", report.Exchange),
			slog.String("tag", report.Tag),
			slog.String("source_file", report.SourceFile),
			slog.Int("outliers", len(report.Rows)))
	} else {
		d.written[path] = struct{}{}
		d.stats.ReportsWritten++
		d.stats.Files = append(d.stats.Files, path)
		d.metrics.RecordFileWritten(ctx, report.Exchange)
		d.logger.InfoContext(ctx, "Outliers saved",
			slog.String("path", path),
			slog.String("exchange", report.Exchange),
			slog.String("tag", report.Tag),
			slog.Int("outliers", len(report.Rows)))
	}

	for _, sink := range d.sinks {
		if err := sink.Add(ctx, report); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("%s sink rejected report", sink.Name()), err).
				WithContext("exchange", report.Exchange).
				WithContext("tag", report.Tag)
		}
	}

	return nil
}

// Stats returns the counters of the last Detect call
func (d *Detector) Stats() Stats {
	s := d.stats
	s.Files = append([]string(nil), d.stats.Files...)
	return s
}
