// Package shared holds code used across the outlier sampler that belongs to
// no single domain package.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - BufferedSlogHandler, which captures slog records for assertions
//   - tick file fixtures (TickRows, WriteTickFile) laid out as
//     <root>/<exchange>/<file>.csv
//
// Example usage:
//
//	func TestSample(t *testing.T) {
//	    logger, handler := testutil.NewTestLogger(t)
//	    root := t.TempDir()
//	    testutil.WriteTickFile(t, root, "NYSE", "AAPL.csv",
//	        testutil.TickRows("AAPL", 30, testutil.LinearPrice(100)))
//	    ...
//	    testutil.AssertLogContains(t, handler, slog.LevelWarn, "skipping")
//	}
package shared
