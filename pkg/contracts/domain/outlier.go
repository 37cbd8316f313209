package domain

import "math"

// OutlierRow is a window tick annotated with its deviation from the window mean.
// PercentDeviation is NaN when the window mean is zero.
type OutlierRow struct {
	Tick
	Mean             float64 `json:"mean"`
	Deviation        float64 `json:"deviation"`
	PercentDeviation float64 `json:"percent_deviation"`
}

// HasPercentDeviation reports whether the percent deviation is defined
func (r OutlierRow) HasPercentDeviation() bool {
	return !math.IsNaN(r.PercentDeviation) && !math.IsInf(r.PercentDeviation, 0)
}

// OutlierReport holds the outliers found in one SampleWindow
type OutlierReport struct {
	Exchange   string       `json:"exchange"`
	Tag        string       `json:"tag"`
	SourceFile string       `json:"source_file"`
	Start      int          `json:"start"`
	Mean       float64      `json:"mean"`
	StdDev     float64      `json:"std_dev"`
	Threshold  float64      `json:"threshold"`
	Rows       []OutlierRow `json:"rows"`
}

// Empty reports whether no outliers were found
func (r OutlierReport) Empty() bool {
	return len(r.Rows) == 0
}
