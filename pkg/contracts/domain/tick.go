package domain

// Tick is a single (ID, Timestamp, Price) observation read from a tick file.
// ID and Timestamp are kept as the raw text found in the file.
type Tick struct {
	ID        string  `json:"id" db:"symbol"`
	Timestamp string  `json:"timestamp" db:"tick_timestamp"`
	Price     float64 `json:"price" db:"price"`
}

// TickFile is the full, ordered content of one tick file
type TickFile struct {
	Exchange string `json:"exchange"`
	Path     string `json:"path"`
	Ticks    []Tick `json:"ticks"`
}

// Len returns the number of ticks loaded from the file
func (f *TickFile) Len() int {
	return len(f.Ticks)
}

// Prices returns the price column in file order
func Prices(ticks []Tick) []float64 {
	prices := make([]float64, len(ticks))
	for i, t := range ticks {
		prices[i] = t.Price
	}
	return prices
}
