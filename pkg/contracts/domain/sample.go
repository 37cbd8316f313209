package domain

// SampleWindow is a contiguous slice of a tick file starting at Start.
type SampleWindow struct {
	Exchange   string `json:"exchange"`
	SourceFile string `json:"source_file"`
	Start      int    `json:"start"`
	Ticks      []Tick `json:"ticks"`
}

// Tag returns the symbol tag used to name outputs: the ID of the first tick.
// No uniqueness check is made across the window.
func (w SampleWindow) Tag() string {
	if len(w.Ticks) == 0 {
		return ""
	}
	return w.Ticks[0].ID
}

// Len returns the number of ticks in the window
func (w SampleWindow) Len() int {
	return len(w.Ticks)
}

// SampleSet maps exchange names to their sampled windows. Exchanges are kept
// in the order they were discovered and an exchange is never present with an
// empty window list.
type SampleSet struct {
	order   []string
	windows map[string][]SampleWindow
}

// NewSampleSet creates an empty sample set
func NewSampleSet() *SampleSet {
	return &SampleSet{windows: make(map[string][]SampleWindow)}
}

// Add records the windows drawn for an exchange. Empty lists are ignored.
func (s *SampleSet) Add(exchange string, windows []SampleWindow) {
	if len(windows) == 0 {
		return
	}
	if _, exists := s.windows[exchange]; !exists {
		s.order = append(s.order, exchange)
	}
	s.windows[exchange] = append(s.windows[exchange], windows...)
}

// Exchanges returns the exchange names in discovery order
func (s *SampleSet) Exchanges() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Windows returns the windows for an exchange in file-selection order
func (s *SampleSet) Windows(exchange string) ([]SampleWindow, bool) {
	w, ok := s.windows[exchange]
	return w, ok
}

// Len returns the number of exchanges in the set
func (s *SampleSet) Len() int {
	return len(s.order)
}

// WindowCount returns the total number of windows across all exchanges
func (s *SampleSet) WindowCount() int {
	n := 0
	for _, w := range s.windows {
		n += len(w)
	}
	return n
}
