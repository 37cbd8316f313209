// Package files provides file system operations for a run.
//
// Discovery lists the input tree: the entries of the input root, the
// exchange directories and the tick files of an exchange, all in listing
// order. Manager writes outputs under the output directory, replacing each
// file atomically.
//
// Example usage:
//
//	discovery := files.NewDiscovery(paths.InputDir)
//	entries, err := discovery.ListEntries(".")
//	ticks, err := discovery.FindTickFiles("NYSE", ".csv")
//	selected := files.FirstN(ticks, 2)
//
//	manager := files.NewManager(paths, logger)
//	err = manager.WriteFile("NYSE_AAPL_outliers.csv", data)
package files
