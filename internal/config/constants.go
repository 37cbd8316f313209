package config

// Application constants
const (
	AppName    = "tickoutlier"
	AppVersion = "1.0.0"

	// Sampling
	DefaultWindowSize        = 30
	DefaultTickFileExtension = ".csv"

	// Detection
	DefaultThresholdSigma = 2.0

	// File paths (relative to the working directory)
	DefaultInputDir  = "inputs"
	DefaultOutputDir = "output"

	// Output naming
	OutlierFileSuffix   = "_outliers"
	OutputFileExtension = ".csv"
	SummaryWorkbookName = "outliers_summary.xlsx"

	// Storage
	DefaultOutlierTable = "tick_outliers"
)
