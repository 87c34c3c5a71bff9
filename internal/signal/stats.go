package signal

import (
	"math"
	"sort"
)

// percentileRank returns the fraction of window values strictly less than
// latest. Monotone in latest: raising the latest value never lowers the
// rank.
func percentileRank(window []float64, latest float64) Value {
	if len(window) == 0 {
		return Unavailable
	}
	below := 0
	for _, v := range window {
		if v < latest {
			below++
		}
	}
	return Avail(float64(below) / float64(len(window)))
}

// medianAbs returns the median of the absolute values of the window.
func medianAbs(window []float64) Value {
	if len(window) == 0 {
		return Unavailable
	}
	abs := make([]float64, len(window))
	for i, v := range window {
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)
	mid := len(abs) / 2
	if len(abs)%2 == 1 {
		return Avail(abs[mid])
	}
	return Avail((abs[mid-1] + abs[mid]) / 2)
}

// quantile returns the q-quantile of values using linear interpolation
// between order statistics.
func quantile(values []float64, q float64) Value {
	if len(values) == 0 || q < 0 || q > 1 {
		return Unavailable
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return Avail(sorted[lo])
	}
	frac := pos - float64(lo)
	return Avail(sorted[lo]*(1-frac) + sorted[hi]*frac)
}

// meanTail returns the mean of the last n positive values of series.
// Unavailable when fewer than n positive values exist.
func meanTail(series []float64, n int) (float64, bool) {
	if n <= 0 {
		return 0, false
	}
	count := 0
	sum := 0.0
	for i := len(series) - 1; i >= 0 && count < n; i-- {
		if series[i] > 0 {
			sum += series[i]
			count++
		}
	}
	if count < n {
		return 0, false
	}
	return sum / float64(n), true
}

// tail returns the last n elements of series, or all of them when the
// series is shorter.
func tail(series []float64, n int) []float64 {
	if len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}
