// Command outliers samples a random window from the first tick files of every
// exchange under the input directory and writes the prices that deviate from
// the window mean by more than the configured number of standard deviations.
//
// Usage:
//
//	outliers [-config file] [-env file] [-in dir] [-out dir] [-seed n] <files-per-exchange>
//	outliers -version
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"tickoutlier/internal/config"
	apperrors "tickoutlier/internal/errors"
	"tickoutlier/internal/exporter"
	"tickoutlier/internal/files"
	"tickoutlier/internal/infrastructure"
	"tickoutlier/internal/outliers"
	"tickoutlier/internal/pipeline"
	"tickoutlier/internal/sampling"
	"tickoutlier/internal/store"
	"tickoutlier/internal/validation"
	"tickoutlier/pkg/contracts"
	"tickoutlier/pkg/contracts/domain"
)

const usageText = `usage: outliers [flags] <files-per-exchange>

Samples a window of consecutive ticks from the first 1 or 2 tick files of each
exchange directory and writes the outliers found in each window.

Flags:
`

// cliOptions holds the parsed command line
type cliOptions struct {
	fileCount  int
	configPath string
	envFile    string
	inputDir   string
	outputDir  string
	seed       uint64
	seedSet    bool
	version    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one batch and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	// Captured once; every log line and report of the run shares it
	runInfo := infrastructure.NewRun(time.Now())

	logger, err := infrastructure.NewRunLogger(cfg.Logging, runInfo)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer infrastructure.CloseLogFile()

	if err := execute(context.Background(), cfg, runInfo, logger); err != nil {
		return 1
	}
	return 0
}

// parseArgs reads the flags and the single positional file count. Anything
// other than exactly one argument made of digits equal to 1 or 2 is a usage
// error.
func parseArgs(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions

	fs := flag.NewFlagSet("outliers", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usageText)
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&opts.envFile, "env", "", "dotenv file with TICKOUTLIER_* variables")
	fs.StringVar(&opts.inputDir, "in", "", "input directory holding one sub-directory per exchange")
	fs.StringVar(&opts.outputDir, "out", "", "output directory for outlier reports")
	fs.Uint64Var(&opts.seed, "seed", 0, "seed of the window random source (0 seeds from the clock)")
	fs.BoolVar(&opts.version, "version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return opts, apperrors.NewUsageError(err.Error())
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			opts.seedSet = true
		}
	})
	if opts.version {
		return opts, nil
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return opts, apperrors.NewUsageError(fmt.Sprintf("expected exactly one argument, got %d", fs.NArg()))
	}

	n, err := parseFileCount(fs.Arg(0))
	if err != nil {
		fs.Usage()
		return opts, err
	}
	opts.fileCount = n
	return opts, nil
}

// parseFileCount accepts "1" or "2" only
func parseFileCount(arg string) (int, error) {
	if arg == "" {
		return 0, apperrors.NewUsageError("files-per-exchange must be a number")
	}
	for _, r := range arg {
		if r < '0' || r > '9' {
			return 0, apperrors.NewUsageError(fmt.Sprintf("files-per-exchange must be a number, got %q", arg))
		}
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > 2 {
		return 0, apperrors.NewUsageError(fmt.Sprintf("files-per-exchange must be 1 or 2, got %s", arg))
	}
	return n, nil
}

// loadConfig applies command-line overrides on top of file and environment
// configuration
func loadConfig(opts cliOptions) (*config.Config, error) {
	if opts.envFile != "" {
		if err := config.LoadEnvFile(opts.envFile); err != nil {
			return nil, err
		}
	}

	return config.Load(opts.configPath, func(cfg *config.Config) {
		cfg.Sampling.FileCount = opts.fileCount
		if opts.inputDir != "" {
			cfg.Paths.InputDir = opts.inputDir
		}
		if opts.outputDir != "" {
			cfg.Paths.OutputDir = opts.outputDir
		}
		if opts.seedSet {
			cfg.Sampling.Seed = opts.seed
		}
	})
}

// execute wires the components of a run and drives the pipeline
func execute(ctx context.Context, cfg *config.Config, runInfo domain.Run, logger *slog.Logger) error {
	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize telemetry", slog.String("error", err.Error()))
		return apperrors.NewConfigError("failed to initialize telemetry", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := providers.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("Telemetry shutdown failed", slog.String("error", shutdownErr.Error()))
		}
	}()

	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return apperrors.NewConfigError("failed to create metrics", err)
	}
	defer func() {
		if cfg.Telemetry.MetricsFile == "" {
			return
		}
		if writeErr := providers.WriteMetrics(cfg.Telemetry.MetricsFile); writeErr != nil {
			logger.Warn("Failed to write metrics file",
				slog.String("path", cfg.Telemetry.MetricsFile),
				slog.String("error", writeErr.Error()))
		}
	}()

	paths, err := config.NewPaths(cfg.Paths, "")
	if err != nil {
		return apperrors.NewConfigError("failed to resolve paths", err)
	}
	paths.LogPathResolution(logger)

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateInputDirectory(paths.InputDir, "*/*"+cfg.Sampling.Extension); err != nil {
		return err
	}
	if err := validator.ValidateOutputDirectory(paths.OutputDir); err != nil {
		return err
	}

	manager := files.NewManager(paths, logger)
	if err := manager.EnsureOutputDir(); err != nil {
		return apperrors.NewStorageError("failed to create output directory", err)
	}

	rnd, seed := sampling.NewRandSource(cfg.Sampling.Seed)
	logger.InfoContext(ctx, "Starting outlier run",
		slog.Int("files_per_exchange", cfg.Sampling.FileCount),
		slog.Int("window_size", cfg.Sampling.WindowSize),
		slog.Uint64("seed", seed),
		slog.String("input_dir", paths.InputDir),
		slog.String("output_dir", paths.OutputDir))

	sampler, err := sampling.NewSampler(sampling.Options{
		Sampling: cfg.Sampling,
		InputDir: paths.InputDir,
		Run:      runInfo,
		Rand:     rnd,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	sinks, closeSinks, err := buildSinks(ctx, cfg, paths, runInfo, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	detector, err := outliers.NewDetector(outliers.Options{
		ThresholdSigma: cfg.Detection.ThresholdSigma,
		Run:            runInfo,
		Writer:         exporter.NewCSVWriter(paths, manager, logger),
		Sinks:          sinks,
		Logger:         logger,
		Metrics:        metrics,
	})
	if err != nil {
		return err
	}

	runner, err := pipeline.NewRunner(pipeline.Options{
		Run:      runInfo,
		Sampler:  sampler,
		Detector: detector,
		Tracer:   providers.Tracer,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	if err := runner.Run(ctx); err != nil {
		return err
	}

	stats := detector.Stats()
	logger.InfoContext(ctx, "Outlier run finished",
		slog.Int("windows", stats.WindowsScored),
		slog.Int("reports", stats.ReportsWritten),
		slog.Int("overwritten", stats.Overwritten),
		slog.Int("outliers", stats.OutliersFound))
	return nil
}

// buildSinks creates the optional workbook and Postgres sinks. The returned
// func releases any connection they hold.
func buildSinks(ctx context.Context, cfg *config.Config, paths *config.Paths, runInfo domain.Run, logger *slog.Logger) ([]outliers.ReportSink, func(), error) {
	var sinks []outliers.ReportSink
	closeFn := func() {}

	if cfg.Detection.SummaryWorkbook {
		sinks = append(sinks, exporter.NewWorkbookSink(paths.GetSummaryWorkbookPath(), runInfo, logger))
	}

	if cfg.Store.PostgresDSN != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := store.Connect(connectCtx, cfg.Store.PostgresDSN)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to connect to postgres", slog.String("error", err.Error()))
			return nil, closeFn, apperrors.NewStorageError("failed to connect to postgres", err)
		}
		closeFn = pool.Close
		sinks = append(sinks, store.NewPostgresSink(pool, cfg.Store.Table, runInfo, logger))
	}

	return sinks, closeFn, nil
}
