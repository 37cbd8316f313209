package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// TickRows builds n tick rows for symbol with prices from price(i).
// Timestamps are one minute apart.
func TickRows(symbol string, n int, price func(i int) float64) []string {
	rows := make([]string, n)
	for i := 0; i < n; i++ {
		ts := fmt.Sprintf("01-09-2023 %02d:%02d:00", 9+i/60, i%60)
		rows[i] = symbol + "," + ts + "," + strconv.FormatFloat(price(i), 'f', -1, 64)
	}
	return rows
}

// ConstantPrice returns a price function that always yields p
func ConstantPrice(p float64) func(int) float64 {
	return func(int) float64 { return p }
}

// LinearPrice returns a price function yielding base + i
func LinearPrice(base float64) func(int) float64 {
	return func(i int) float64 { return base + float64(i) }
}

// WriteTickFile writes rows to <root>/<exchange>/<name> and returns the path
func WriteTickFile(t *testing.T, root, exchange, name string, rows []string) string {
	t.Helper()

	dir := filepath.Join(root, exchange)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create exchange dir: %v", err)
	}

	content := strings.Join(rows, "\n")
	if len(rows) > 0 {
		content += "\n"
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write tick file: %v", err)
	}
	return path
}
