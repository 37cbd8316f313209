package sampling

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"tickoutlier/internal/config"
	"tickoutlier/internal/dataprocessing"
	apperrors "tickoutlier/internal/errors"
	"tickoutlier/internal/files"
	"tickoutlier/internal/infrastructure"
	"tickoutlier/pkg/contracts/domain"
)

// Skip reasons recorded on the exchanges_skipped metric
const (
	SkipNotDirectory = "not_a_directory"
	SkipNoTickFiles  = "no_tick_files"
)

// Options configures a Sampler
type Options struct {
	Sampling config.SamplingConfig
	InputDir string
	Run      domain.Run
	Rand     RandSource
	Logger   *slog.Logger
	Metrics  *infrastructure.PipelineMetrics
}

// Sampler draws one contiguous window from each selected tick file
type Sampler struct {
	fileCount  int
	windowSize int
	extension  string
	inputDir   string
	run        domain.Run
	rand       RandSource
	discovery  *files.Discovery
	logger     *slog.Logger
	metrics    *infrastructure.PipelineMetrics
}

// NewSampler creates a sampler over opts.InputDir
func NewSampler(opts Options) (*Sampler, error) {
	if opts.Sampling.FileCount < 1 || opts.Sampling.FileCount > 2 {
		return nil, apperrors.NewUsageError(fmt.Sprintf("file count must be 1 or 2, got %d", opts.Sampling.FileCount))
	}
	if opts.Sampling.WindowSize < 1 {
		return nil, apperrors.NewConfigError("window size must be positive", nil).
			WithContext("window_size", opts.Sampling.WindowSize)
	}
	if opts.Rand == nil {
		return nil, apperrors.NewConfigError("random source is required", nil)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sampler{
		fileCount:  opts.Sampling.FileCount,
		windowSize: opts.Sampling.WindowSize,
		extension:  opts.Sampling.Extension,
		inputDir:   opts.InputDir,
		run:        opts.Run,
		rand:       opts.Rand,
		discovery:  files.NewDiscovery(opts.InputDir),
		logger:     infrastructure.WithComponent(logger, "sampler"),
		metrics:    opts.Metrics,
	}, nil
}

// Sample walks the input root and returns the windows drawn per exchange.
// Stray files and exchanges without tick files are logged and left out. Any
// empty, short or malformed tick file aborts the whole call with no result.
func (s *Sampler) Sample(ctx context.Context) (*domain.SampleSet, error) {
	entries, err := s.discovery.ListEntries(".")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list input directory", err).
			WithContext("path", s.inputDir)
	}

	s.logger.DebugContext(ctx, "Sampling input directory",
		slog.String("path", s.inputDir),
		slog.Int("entries", len(entries)),
		slog.Int("file_count", s.fileCount),
		slog.Time("run_started_at", s.run.StartedAt))

	set := domain.NewSampleSet()
	for _, entry := range entries {
		if !entry.IsDir {
			err := apperrors.NewStructuralError("additional file outside of exchange directories").
				WithContext("path", entry.Path)
			s.skip(ctx, "Additional file outside of exchange directories, skipping", entry.Name, SkipNotDirectory, err,
				slog.String("path", entry.Path))
			continue
		}

		windows, err := s.sampleExchange(ctx, entry)
		if apperrors.IsRecoverable(err) {
			s.skip(ctx, "No tick files in exchange directory, skipping", entry.Name, SkipNoTickFiles, err,
				slog.String("exchange", entry.Name),
				slog.String("path", entry.Path),
				slog.String("extension", s.extension))
			continue
		}
		if err != nil {
			return nil, err
		}
		set.Add(entry.Name, windows)
	}

	s.logger.InfoContext(ctx, "Sampling complete",
		slog.Int("exchanges", set.Len()),
		slog.Int("windows", set.WindowCount()))

	return set, nil
}

// sampleExchange returns the windows of one exchange. An exchange without
// tick files yields a STRUCTURAL error.
func (s *Sampler) sampleExchange(ctx context.Context, exchange files.FileInfo) ([]domain.SampleWindow, error) {
	tickFiles, err := s.discovery.FindTickFiles(exchange.Path, s.extension)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list exchange directory", err).
			WithContext("exchange", exchange.Name)
	}

	if len(tickFiles) == 0 {
		return nil, apperrors.NewStructuralError("no tick files in exchange directory").
			WithContext("exchange", exchange.Name).
			WithContext("extension", s.extension)
	}

	selected := files.FirstN(tickFiles, s.fileCount)
	windows := make([]domain.SampleWindow, 0, len(selected))
	for _, f := range selected {
		window, err := s.sampleFile(ctx, exchange.Name, f.Path)
		if err != nil {
			return nil, err
		}
		windows = append(windows, window)
	}
	return windows, nil
}

// sampleFile loads a tick file and cuts a random window out of it
func (s *Sampler) sampleFile(ctx context.Context, exchange, path string) (domain.SampleWindow, error) {
	tickFile, err := dataprocessing.ReadTickFile(path, exchange)
	if err != nil {
		s.logFailure(ctx, "Failed to load tick file", err, exchange, path)
		return domain.SampleWindow{}, err
	}

	n := tickFile.Len()
	if n < s.windowSize {
		err := apperrors.NewDataQualityError(
			fmt.Sprintf("tick file has %d rows, need at least %d", n, s.windowSize),
			apperrors.ErrInsufficientData,
		).WithContext("path", path).WithContext("exchange", exchange)
		s.logFailure(ctx, "Tick file has fewer data points than the window", err, exchange, path)
		return domain.SampleWindow{}, err
	}

	start := s.rand.IntN(n - s.windowSize + 1)
	ticks := make([]domain.Tick, s.windowSize)
	copy(ticks, tickFile.Ticks[start:start+s.windowSize])

	window := domain.SampleWindow{
		Exchange:   exchange,
		SourceFile: path,
		Start:      start,
		Ticks:      ticks,
	}

	s.metrics.RecordFileSampled(ctx, exchange)
	infrastructure.AddSpanEvent(ctx, "tick_file.sampled",
		attribute.String("exchange", exchange),
		attribute.String("path", path),
		attribute.Int("rows", n),
		attribute.Int("start", start))

	s.logger.DebugContext(ctx, "Sampled window",
		slog.String("exchange", exchange),
		slog.String("path", path),
		slog.String("tag", window.Tag()),
		slog.Int("rows", n),
		slog.Int("start", start))

	return window, nil
}

// skip logs a recoverable layout problem and counts it on the skip metric
func (s *Sampler) skip(ctx context.Context, msg, name, reason string, err error, attrs ...any) {
	attrs = append(attrs,
		slog.String("reason", reason),
		slog.String("error", err.Error()),
		slog.String("error_type", string(apperrors.TypeOf(err))))
	s.logger.WarnContext(ctx, msg, attrs...)
	s.metrics.RecordExchangeSkipped(ctx, name, reason)
}

// logFailure logs data-quality aborts at CRITICAL and everything else at ERROR
func (s *Sampler) logFailure(ctx context.Context, msg string, err error, exchange, path string) {
	args := []any{
		slog.String("exchange", exchange),
		slog.String("path", path),
		slog.String("error", err.Error()),
	}
	if apperrors.IsCritical(err) {
		infrastructure.Critical(ctx, s.logger, msg, args...)
		return
	}
	s.logger.ErrorContext(ctx, msg, args...)
}
