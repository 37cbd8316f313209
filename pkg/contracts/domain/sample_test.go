package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleWindow_Tag(t *testing.T) {
	tests := []struct {
		name   string
		window SampleWindow
		want   string
	}{
		{
			name:   "first tick wins",
			window: SampleWindow{Ticks: []Tick{{ID: "AAPL"}, {ID: "MSFT"}}},
			want:   "AAPL",
		},
		{
			name:   "empty window",
			window: SampleWindow{},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.window.Tag())
		})
	}
}

func TestSampleSet(t *testing.T) {
	set := NewSampleSet()
	set.Add("NYSE", []SampleWindow{{Exchange: "NYSE"}})
	set.Add("LSE", nil)
	set.Add("NASDAQ", []SampleWindow{{Exchange: "NASDAQ"}, {Exchange: "NASDAQ"}})
	set.Add("NYSE", []SampleWindow{{Exchange: "NYSE"}})

	assert.Equal(t, []string{"NYSE", "NASDAQ"}, set.Exchanges())
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 4, set.WindowCount())

	_, ok := set.Windows("LSE")
	assert.False(t, ok, "empty exchanges must not be present")

	nyse, ok := set.Windows("NYSE")
	assert.True(t, ok)
	assert.Len(t, nyse, 2)
}

func TestOutlierRow_HasPercentDeviation(t *testing.T) {
	assert.True(t, OutlierRow{PercentDeviation: 12.5}.HasPercentDeviation())
	assert.False(t, OutlierRow{PercentDeviation: math.NaN()}.HasPercentDeviation())
	assert.False(t, OutlierRow{PercentDeviation: math.Inf(1)}.HasPercentDeviation())
}

func TestPrices(t *testing.T) {
	ticks := []Tick{{Price: 1.5}, {Price: 2}, {Price: 3.25}}
	assert.Equal(t, []float64{1.5, 2, 3.25}, Prices(ticks))
}
