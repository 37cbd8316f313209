// Package errors defines the error taxonomy shared by the sampler, the
// outlier detector and the command line.
//
// Every failure is an *AppError tagged with an ErrorType:
//
//	STRUCTURAL    stray file or exchange without tick files; logged, exchange skipped
//	DATA_QUALITY  empty tick file or fewer rows than the window; aborts the run
//	PARSING       malformed row or unparseable price; aborts the run
//	DETECTION     failure while scoring or writing a window; aborts remaining detection
//	STORAGE       listing or sink failure; aborts the run
//	CONFIG        invalid configuration
//	USAGE         invalid command-line input
//
// Import it under an alias to avoid shadowing the standard library:
//
//	import apperrors "tickoutlier/internal/errors"
//
//	if errors.Is(err, apperrors.ErrInsufficientData) { ... }
package errors
