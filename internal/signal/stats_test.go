package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileRank(t *testing.T) {
	window := []float64{10, 20, 30, 40, 50}

	tests := []struct {
		name   string
		latest float64
		want   float64
	}{
		{"below all", 5, 0},
		{"equal to minimum", 10, 0},
		{"mid", 35, 0.6},
		{"equal values not counted", 30, 0.4},
		{"above all", 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := percentileRank(window, tt.latest)
			require.True(t, got.Valid)
			assert.InDelta(t, tt.want, got.Float, 1e-9)
		})
	}

	assert.False(t, percentileRank(nil, 1).Valid)
}

func TestPercentileRankMonotone(t *testing.T) {
	window := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	prev := -1.0
	for v := -2.0; v <= 12.0; v += 0.5 {
		rank := percentileRank(window, v)
		require.True(t, rank.Valid)
		assert.GreaterOrEqual(t, rank.Float, prev, "rank must not decrease as the value rises")
		prev = rank.Float
	}
}

func TestMedianAbs(t *testing.T) {
	tests := []struct {
		name   string
		window []float64
		want   float64
		valid  bool
	}{
		{"odd count", []float64{-3, 1, 2}, 2, true},
		{"even count", []float64{-4, 1, 2, 3}, 2.5, true},
		{"all negative", []float64{-10, -20, -30}, 20, true},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := medianAbs(tt.window)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.InDelta(t, tt.want, got.Float, 1e-9)
			}
		})
	}
}

func TestQuantile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		name string
		q    float64
		want float64
	}{
		{"minimum", 0, 1},
		{"median", 0.5, 5.5},
		{"maximum", 1, 10},
		{"interpolated", 0.25, 3.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := quantile(values, tt.q)
			require.True(t, got.Valid)
			assert.InDelta(t, tt.want, got.Float, 1e-9)
		})
	}

	assert.False(t, quantile(nil, 0.5).Valid)
	assert.False(t, quantile(values, 1.5).Valid)
}

func TestMeanTail(t *testing.T) {
	series := []float64{100, 0, 200, -5, 300}

	ma, ok := meanTail(series, 3)
	require.True(t, ok)
	assert.InDelta(t, 200, ma, 1e-9, "non-positive values are skipped, not averaged")

	_, ok = meanTail(series, 4)
	assert.False(t, ok)
	_, ok = meanTail(series, 0)
	assert.False(t, ok)
}

func TestValueJSON(t *testing.T) {
	data, err := Avail(1.5).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "1.5", string(data))

	data, err = Unavailable.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var v Value
	require.NoError(t, v.UnmarshalJSON([]byte("2.25")))
	assert.Equal(t, Avail(2.25), v)
	require.NoError(t, v.UnmarshalJSON([]byte("null")))
	assert.False(t, v.Valid)
}

func TestSeriesChangePct(t *testing.T) {
	s := Series{
		{Close: 100},
		{Close: 102},
	}
	got := s.ChangePct()
	require.True(t, got.Valid)
	assert.InDelta(t, 2.0, got.Float, 1e-9)

	assert.False(t, Series{{Close: 100}}.ChangePct().Valid)
	assert.False(t, Series{{Close: 0}, {Close: 100}}.ChangePct().Valid)
}
