// Package dataprocessing reads tick files.
//
// A tick file is a headerless CSV with three columns: symbol ID, timestamp
// and price. ID and timestamp are kept as raw text; price must parse as a
// finite float.
//
// # Usage
//
//	file, err := dataprocessing.ReadTickFile("inputs/NYSE/AAPL.csv", "NYSE")
//	if err != nil {
//	    return err
//	}
//
// # Error Handling
//
// Errors are *apperrors.AppError values:
//
//   - a file without rows is DATA_QUALITY wrapping ErrEmptyFile
//   - a row with the wrong field count or a bad price is PARSING wrapping
//     ErrMalformedRow, with the line number in the message
//
// Both abort the run.
package dataprocessing
