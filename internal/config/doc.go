// Package config provides configuration management for the outlier sampler.
// It loads configuration from multiple sources, validates it, and resolves the
// directories and file names used by a run.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Command-line flags (applied by the caller after Load)
//	2. Environment variables, optionally seeded from a dotenv file (LoadEnvFile)
//	3. YAML configuration file
//	4. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern TICKOUTLIER_<SECTION>_<FIELD>:
//
//	TICKOUTLIER_SAMPLING_WINDOW_SIZE=30
//	TICKOUTLIER_SAMPLING_SEED=42
//	TICKOUTLIER_DETECTION_THRESHOLD_SIGMA=2
//	TICKOUTLIER_PATHS_INPUT_DIR=inputs
//	TICKOUTLIER_LOGGING_LEVEL=debug
//	TICKOUTLIER_STORE_POSTGRES_DSN=postgres://...
//
// # Validation
//
// Struct tags are checked with go-playground/validator. Failures are returned
// as CONFIG errors that name the offending YAML field.
//
// # Path Management
//
//	paths, err := config.NewPaths(cfg.Paths, "")
//	report := paths.GetOutlierPath("NYSE", "AAPL") // output/NYSE_AAPL_outliers.csv
package config
