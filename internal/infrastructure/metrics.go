package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics holds the instruments recorded during a run.
// All Record methods are safe on a nil receiver.
type PipelineMetrics struct {
	TickFilesSampled    metric.Int64Counter
	ExchangesSkipped    metric.Int64Counter
	WindowsSampled      metric.Int64Counter
	WindowsScored       metric.Int64Counter
	OutliersDetected    metric.Int64Counter
	OutlierFilesWritten metric.Int64Counter
	RunFailures         metric.Int64Counter
	StepDuration        metric.Float64Histogram
}

// CreatePipelineMetrics creates the run instruments on meter
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	tickFilesSampled, err := meter.Int64Counter(
		"tick_files_sampled",
		metric.WithDescription("Tick files parsed and windowed"),
	)
	if err != nil {
		return nil, err
	}

	exchangesSkipped, err := meter.Int64Counter(
		"exchanges_skipped",
		metric.WithDescription("Input entries left out of the sample set"),
	)
	if err != nil {
		return nil, err
	}

	windowsSampled, err := meter.Int64Counter(
		"windows_sampled",
		metric.WithDescription("Sample windows drawn"),
	)
	if err != nil {
		return nil, err
	}

	windowsScored, err := meter.Int64Counter(
		"windows_scored",
		metric.WithDescription("Sample windows scored by the detector"),
	)
	if err != nil {
		return nil, err
	}

	outliersDetected, err := meter.Int64Counter(
		"outliers_detected",
		metric.WithDescription("Ticks flagged as outliers"),
	)
	if err != nil {
		return nil, err
	}

	outlierFilesWritten, err := meter.Int64Counter(
		"outlier_files_written",
		metric.WithDescription("Outlier report files written"),
	)
	if err != nil {
		return nil, err
	}

	runFailures, err := meter.Int64Counter(
		"run_failures",
		metric.WithDescription("Aborted runs by step and error type"),
	)
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram(
		"step_duration",
		metric.WithDescription("Pipeline step duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		TickFilesSampled:    tickFilesSampled,
		ExchangesSkipped:    exchangesSkipped,
		WindowsSampled:      windowsSampled,
		WindowsScored:       windowsScored,
		OutliersDetected:    outliersDetected,
		OutlierFilesWritten: outlierFilesWritten,
		RunFailures:         runFailures,
		StepDuration:        stepDuration,
	}, nil
}

func exchangeAttr(exchange string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("exchange", exchange))
}

// RecordFileSampled counts one parsed tick file and its window
func (m *PipelineMetrics) RecordFileSampled(ctx context.Context, exchange string) {
	if m == nil {
		return
	}
	m.TickFilesSampled.Add(ctx, 1, exchangeAttr(exchange))
	m.WindowsSampled.Add(ctx, 1, exchangeAttr(exchange))
}

// RecordExchangeSkipped counts an input entry that produced no windows
func (m *PipelineMetrics) RecordExchangeSkipped(ctx context.Context, exchange, reason string) {
	if m == nil {
		return
	}
	m.ExchangesSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("exchange", exchange),
		attribute.String("reason", reason),
	))
}

// RecordWindowScored counts a scored window and its outliers
func (m *PipelineMetrics) RecordWindowScored(ctx context.Context, exchange string, outliers int) {
	if m == nil {
		return
	}
	m.WindowsScored.Add(ctx, 1, exchangeAttr(exchange))
	m.OutliersDetected.Add(ctx, int64(outliers), exchangeAttr(exchange))
}

// RecordFileWritten counts a written outlier report
func (m *PipelineMetrics) RecordFileWritten(ctx context.Context, exchange string) {
	if m == nil {
		return
	}
	m.OutlierFilesWritten.Add(ctx, 1, exchangeAttr(exchange))
}

// RecordStep records the duration and outcome of a pipeline step
func (m *PipelineMetrics) RecordStep(ctx context.Context, step string, duration time.Duration, errType string) {
	if m == nil {
		return
	}
	status := "success"
	if errType != "" {
		status = "failure"
		m.RunFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("step", step),
			attribute.String("error.type", errType),
		))
	}
	m.StepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("status", status),
	))
}
