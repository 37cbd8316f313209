package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	apperrors "tickoutlier/internal/errors"
	"tickoutlier/internal/infrastructure"
	"tickoutlier/pkg/contracts/domain"
)

// Sampler draws the windows of a run
type Sampler interface {
	Sample(ctx context.Context) (*domain.SampleSet, error)
}

// Detector scores the windows of a run and writes their outliers
type Detector interface {
	Detect(ctx context.Context, set *domain.SampleSet) error
}

// Options configures a Runner
type Options struct {
	Run      domain.Run
	Sampler  Sampler
	Detector Detector
	Tracer   trace.Tracer
	Logger   *slog.Logger
	Metrics  *infrastructure.PipelineMetrics
}

// Runner executes the sample step followed by the detect step
type Runner struct {
	run      domain.Run
	sampler  Sampler
	detector Detector
	tracer   trace.Tracer
	logger   *slog.Logger
	metrics  *infrastructure.PipelineMetrics
	steps    []*StepState
	set      *domain.SampleSet
}

// NewRunner creates a runner. Sampler and Detector are required.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Sampler == nil || opts.Detector == nil {
		return nil, apperrors.NewConfigError("pipeline needs a sampler and a detector", nil)
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		run:      opts.Run,
		sampler:  opts.Sampler,
		detector: opts.Detector,
		tracer:   tracer,
		logger:   infrastructure.WithComponent(logger, "pipeline"),
		metrics:  opts.Metrics,
		steps:    []*StepState{NewStepState(StepSample), NewStepState(StepDetect)},
	}, nil
}

// Run executes both steps once. A failing step stops the run and the
// remaining step is marked skipped. The returned error is always an
// *apperrors.AppError carrying the failing step name.
func (r *Runner) Run(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", r.run.ID),
			attribute.String("run.started_at", r.run.StartedAt.Format(time.RFC3339Nano)),
		),
	)
	defer span.End()

	r.logger.InfoContext(ctx, "Run started")

	err := r.runStep(ctx, r.steps[0], func(ctx context.Context) error {
		set, err := r.sampler.Sample(ctx)
		if err != nil {
			return err
		}
		r.set = set
		span.SetAttributes(
			attribute.Int("run.exchanges", set.Len()),
			attribute.Int("run.windows", set.WindowCount()),
		)
		return nil
	})
	if err != nil {
		r.steps[1].Skip("sample step failed")
		return r.fail(ctx, span, err)
	}

	err = r.runStep(ctx, r.steps[1], func(ctx context.Context) error {
		return r.detector.Detect(ctx, r.set)
	})
	if err != nil {
		return r.fail(ctx, span, err)
	}

	span.SetStatus(codes.Ok, "")
	r.logger.InfoContext(ctx, "Run completed",
		slog.Duration("sample_duration", r.steps[0].Duration()),
		slog.Duration("detect_duration", r.steps[1].Duration()))
	return nil
}

func (r *Runner) runStep(ctx context.Context, state *StepState, fn func(context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "pipeline.step."+state.Name,
		trace.WithAttributes(attribute.String("step.name", state.Name)))
	defer span.End()

	state.Start()
	err := fn(ctx)
	if err != nil {
		appErr := stepError(state.Name, err)
		state.Fail(appErr)
		infrastructure.RecordError(ctx, appErr,
			trace.WithAttributes(attribute.String("error.type", string(appErr.Type))))
		r.metrics.RecordStep(ctx, state.Name, state.Duration(), string(appErr.Type))
		return appErr
	}

	state.Complete()
	span.SetStatus(codes.Ok, "")
	r.metrics.RecordStep(ctx, state.Name, state.Duration(), "")
	r.logger.DebugContext(ctx, "Step completed",
		slog.String("step", state.Name),
		slog.Duration("duration", state.Duration()))
	return nil
}

func (r *Runner) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	infrastructure.WithError(r.logger, err).ErrorContext(ctx, "Run failed",
		slog.String("error_type", string(apperrors.TypeOf(err))))
	return err
}

// stepError tags err with the failing step. Errors that are not yet
// classified are reported as failures of the step itself.
func stepError(step string, err error) *apperrors.AppError {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.WithContext("step", step)
	}

	errType := apperrors.TypeOf(err)
	if errType == "" {
		errType = apperrors.ErrTypeDetection
		if step == StepSample {
			errType = apperrors.ErrTypeStorage
		}
	}
	return apperrors.NewAppError(errType, step+" step failed", err).WithContext("step", step)
}
