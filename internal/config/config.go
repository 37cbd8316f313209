package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "tickoutlier/internal/errors"
)

// EnvPrefix namespaces every environment variable read by Load
const EnvPrefix = "TICKOUTLIER"

// Config represents the complete application configuration
type Config struct {
	Sampling  SamplingConfig  `yaml:"sampling" envconfig:"SAMPLING"`
	Detection DetectionConfig `yaml:"detection" envconfig:"DETECTION"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
}

// SamplingConfig controls how tick files are selected and windowed
type SamplingConfig struct {
	FileCount  int    `yaml:"file_count" envconfig:"FILE_COUNT" validate:"oneof=1 2"`
	WindowSize int    `yaml:"window_size" envconfig:"WINDOW_SIZE" validate:"min=2"`
	Extension  string `yaml:"extension" envconfig:"EXTENSION" validate:"required,fileext"`
	// Seed of the window-start random source. Zero seeds from the clock.
	Seed uint64 `yaml:"seed" envconfig:"SEED"`
}

// DetectionConfig controls outlier scoring and report outputs
type DetectionConfig struct {
	ThresholdSigma  float64 `yaml:"threshold_sigma" envconfig:"THRESHOLD_SIGMA" validate:"gt=0"`
	SummaryWorkbook bool    `yaml:"summary_workbook" envconfig:"SUMMARY_WORKBOOK"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	InputDir  string `yaml:"input_dir" envconfig:"INPUT_DIR" validate:"required"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error critical"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// TelemetryConfig contains tracing and metrics configuration
type TelemetryConfig struct {
	Environment   string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout"`
	TraceFile     string  `yaml:"trace_file" envconfig:"TRACE_FILE"`
	SampleRatio   float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
	MetricsFile   string  `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// StoreConfig configures the optional Postgres outlier sink
type StoreConfig struct {
	PostgresDSN string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	Table       string `yaml:"table" envconfig:"TABLE" validate:"required,sqlident"`
}

// Load builds the configuration from defaults, an optional YAML file,
// TICKOUTLIER_* environment variables and the given overrides, in increasing
// order of precedence. An empty path skips the file. The result is validated
// once, after every override has been applied.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config from file", err).
				WithContext("path", path)
		}
	}

	// Only variables that are set override; there are no envconfig defaults.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnvFile exports the variables of a dotenv file into the process
// environment. Variables that are already set keep their value.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return apperrors.NewConfigError("failed to load env file", err).WithContext("path", path)
	}
	return nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks every field against its validate tag
func (c *Config) Validate() error {
	v, err := newValidator(customRules)
	if err != nil {
		return apperrors.NewConfigError("failed to set up config validator", err)
	}
	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return apperrors.NewConfigError("config validation failed", errors.New(strings.Join(msgs, "; ")))
		}
		return apperrors.NewConfigError("config validation failed", err)
	}
	return nil
}

// rule is a custom validate tag
type rule struct {
	tag string
	fn  validator.Func
}

var customRules = []rule{
	{tag: "fileext", fn: isFileExtension},
	{tag: "sqlident", fn: isSQLIdentifier},
}

// newValidator returns a validator with the given custom rules registered
func newValidator(rules []rule) (*validator.Validate, error) {
	v := validator.New()
	for _, r := range rules {
		if err := v.RegisterValidation(r.tag, r.fn); err != nil {
			return nil, fmt.Errorf("failed to register %q rule: %w", r.tag, err)
		}
	}

	// Report YAML names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v, nil
}

// isFileExtension accepts values like ".csv"
func isFileExtension(fl validator.FieldLevel) bool {
	ext := fl.Field().String()
	return len(ext) > 1 && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, `/\ `)
}

// isSQLIdentifier accepts plain or schema-qualified lowercase identifiers
func isSQLIdentifier(fl validator.FieldLevel) bool {
	for _, part := range strings.Split(fl.Field().String(), ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r >= 'a' && r <= 'z', r == '_':
			case r >= '0' && r <= '9' && i > 0:
			default:
				return false
			}
		}
	}
	return true
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Sampling: SamplingConfig{
			FileCount:  1,
			WindowSize: DefaultWindowSize,
			Extension:  DefaultTickFileExtension,
		},
		Detection: DetectionConfig{
			ThresholdSigma: DefaultThresholdSigma,
		},
		Paths: PathsConfig{
			InputDir:  DefaultInputDir,
			OutputDir: DefaultOutputDir,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "console",
			FilePath: "logs/outliers.log",
		},
		Telemetry: TelemetryConfig{
			Environment:   "development",
			TraceExporter: "none",
			SampleRatio:   1.0,
		},
		Store: StoreConfig{
			Table: DefaultOutlierTable,
		},
	}
}
