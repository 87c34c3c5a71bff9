package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jpxsignal/internal/config"
	"jpxsignal/internal/history"
)

// testEngine shrinks the windows so fixtures stay readable.
func testEngine() config.EngineConfig {
	cfg := config.DefaultEngine()
	cfg.ArbWindowPrimary = 20
	cfg.ArbWindowFallback = 10
	cfg.VolumeMAWindow = 5
	cfg.IndexMinPoints = 10
	cfg.IndexMA = 5
	cfg.BasisLag = 2
	cfg.EmergencyMinPoints = 5
	return cfg
}

var testToday = history.NewDate(2026, time.June, 1)

// seedStore fills the store with n consecutive daily records ending at
// testToday. Value functions may be nil to leave a field unknown.
func seedStore(n int, net func(i int) float64, volume func(i int) float64) *history.Store {
	s := history.NewStore(nil)
	for i := 0; i < n; i++ {
		rec := history.Record{Date: history.DateOf(testToday.AddDate(0, 0, i-n+1))}
		if net != nil {
			v := net(i)
			half := v / 2
			rec.ArbBuy = history.Float(v + half)
			rec.ArbSell = history.Float(half)
		}
		if volume != nil {
			rec.PrimeVolume = history.Float(volume(i))
		}
		s.Upsert(rec)
	}
	return s
}

// flatSeries builds a constant-close daily series of n points ending at
// testToday.
func flatSeries(n int, close float64) Series {
	var s Series
	for i := 0; i < n; i++ {
		s = append(s, Point{
			Date:  history.DateOf(testToday.AddDate(0, 0, i-n+1)),
			Close: close,
		})
	}
	return s
}

func TestComputeDeltas(t *testing.T) {
	// Net balance rises by 10 each day: every lagged delta is lag*10.
	store := seedStore(30, func(i int) float64 { return float64(i) * 10 }, nil)
	c := NewComputer(testEngine(), nil)

	m := c.Compute(context.Background(), store, ExternalSeries{}, testToday)

	require.True(t, m.Delta3.Valid)
	assert.InDelta(t, 30, m.Delta3.Float, 1e-9)
	require.True(t, m.Delta5.Valid)
	assert.InDelta(t, 50, m.Delta5.Float, 1e-9)
	require.True(t, m.Delta25.Valid)
	assert.InDelta(t, 250, m.Delta25.Float, 1e-9)
	assert.True(t, m.ArbObservedToday)
}

func TestComputeDeltasUnavailableOnShortHistory(t *testing.T) {
	store := seedStore(5, func(i int) float64 { return float64(i) }, nil)
	c := NewComputer(testEngine(), nil)

	m := c.Compute(context.Background(), store, ExternalSeries{}, testToday)

	assert.True(t, m.Delta3.Valid)
	assert.False(t, m.Delta5.Valid, "five points support lag 4 at most")
	assert.False(t, m.Delta25.Valid)
}

func TestComputeArbWindowFallback(t *testing.T) {
	c := NewComputer(testEngine(), nil)

	// Below the fallback window: no percentile statistics at all.
	short := seedStore(9, func(i int) float64 { return float64(i) }, nil)
	m := c.Compute(context.Background(), short, ExternalSeries{}, testToday)
	assert.False(t, m.ArbPercentile.Valid)
	assert.False(t, m.Margin5.Valid)

	// Between fallback and primary: statistics exist.
	mid := seedStore(12, func(i int) float64 { return float64(i) }, nil)
	m = c.Compute(context.Background(), mid, ExternalSeries{}, testToday)
	assert.True(t, m.ArbPercentile.Valid)
	assert.True(t, m.Margin5.Valid)
	assert.True(t, m.Margin25.Valid)
}

func TestComputeMarginFloor(t *testing.T) {
	// Alternating large balances with a near-zero latest: the dispersion
	// floor keeps the margin well away from zero.
	store := seedStore(20, func(i int) float64 {
		if i == 19 {
			return 1
		}
		if i%2 == 0 {
			return 100
		}
		return -100
	}, nil)
	c := NewComputer(testEngine(), nil)

	m := c.Compute(context.Background(), store, ExternalSeries{}, testToday)

	require.True(t, m.ArbMedianAbs.Valid)
	assert.InDelta(t, 100, m.ArbMedianAbs.Float, 1)
	require.True(t, m.Margin5.Valid)
	assert.InDelta(t, m.ArbMedianAbs.Float*0.05, m.Margin5.Float, 1e-9)
	require.True(t, m.Margin25.Valid)
	assert.InDelta(t, m.ArbMedianAbs.Float*0.10, m.Margin25.Float, 1e-9)
}

func TestComputeArbHigh(t *testing.T) {
	// Monotonically rising balance: the latest is above every other point.
	store := seedStore(25, func(i int) float64 { return float64(i) * 10 }, nil)
	c := NewComputer(testEngine(), nil)

	m := c.Compute(context.Background(), store, ExternalSeries{}, testToday)

	require.True(t, m.ArbPercentile.Valid)
	assert.Greater(t, m.ArbPercentile.Float, 0.9)
	assert.True(t, m.ArbHigh)
}

func TestComputeVolumeRatio(t *testing.T) {
	// Five prior days at 100, today at 200: ratio 2.0 against the prior MA.
	store := seedStore(6, nil, func(i int) float64 {
		if i == 5 {
			return 200
		}
		return 100
	})
	ext := ExternalSeries{Primary: Series{{Close: 100}, {Close: 103}}}
	c := NewComputer(testEngine(), nil)

	m := c.Compute(context.Background(), store, ext, testToday)

	assert.True(t, m.VolumeObservedToday)
	require.True(t, m.VolumeRatio.Valid)
	assert.InDelta(t, 2.0, m.VolumeRatio.Float, 1e-9)
	require.True(t, m.PriceMovePct.Valid)
	assert.InDelta(t, 3.0, m.PriceMovePct.Float, 1e-9)
	// Normal volume with a spike-sized move is a mismatch.
	assert.True(t, m.LiquidityMismatch)
}

func TestComputeVolumeRatioNeedsFullWindow(t *testing.T) {
	// Today plus only four prior volumes: no baseline, no ratio.
	store := seedStore(5, nil, func(i int) float64 { return 100 })
	c := NewComputer(testEngine(), nil)

	m := c.Compute(context.Background(), store, ExternalSeries{}, testToday)

	assert.True(t, m.VolumeObservedToday)
	assert.False(t, m.VolumeRatio.Valid)
	assert.False(t, m.LiquidityMismatch)
}

func TestComputeThinVolumeMismatch(t *testing.T) {
	// Thin volume (ratio 0.5) with a 1.2% move trips the mismatch.
	store := seedStore(6, nil, func(i int) float64 {
		if i == 5 {
			return 50
		}
		return 100
	})
	ext := ExternalSeries{Primary: Series{{Close: 100}, {Close: 101.2}}}
	c := NewComputer(testEngine(), nil)

	m := c.Compute(context.Background(), store, ext, testToday)

	require.True(t, m.VolumeRatio.Valid)
	assert.InDelta(t, 0.5, m.VolumeRatio.Float, 1e-9)
	assert.True(t, m.LiquidityMismatch)
}

func TestComputePriceMoveFallsBackToSecondary(t *testing.T) {
	store := seedStore(6, nil, func(i int) float64 { return 100 })
	ext := ExternalSeries{
		Primary:   Series{{Close: 100}}, // one point, unusable
		Secondary: Series{{Close: 200}, {Close: 197}},
	}
	c := NewComputer(testEngine(), nil)

	m := c.Compute(context.Background(), store, ext, testToday)

	require.True(t, m.PriceMovePct.Valid)
	assert.InDelta(t, 1.5, m.PriceMovePct.Float, 1e-9, "move is absolute")
}

func TestComputeIndexPosition(t *testing.T) {
	var rising Series
	for i := 1; i <= 10; i++ {
		rising = append(rising, Point{Close: float64(i) * 10})
	}
	c := NewComputer(testEngine(), nil)

	m := c.Compute(context.Background(), history.NewStore(nil), ExternalSeries{Index3Y: rising}, testToday)

	require.True(t, m.IndexPercentile.Valid)
	assert.InDelta(t, 0.9, m.IndexPercentile.Float, 1e-9)
	require.True(t, m.IndexDev200.Valid)
	assert.InDelta(t, 0.25, m.IndexDev200.Float, 1e-9)
	assert.True(t, m.IndexHighZone)
	assert.False(t, m.IndexLowZone)
}

func TestComputeIndexPositionNeedsMinPoints(t *testing.T) {
	c := NewComputer(testEngine(), nil)
	m := c.Compute(context.Background(), history.NewStore(nil),
		ExternalSeries{Index3Y: flatSeries(9, 100)}, testToday)

	assert.False(t, m.IndexPercentile.Valid)
	assert.False(t, m.IndexDev200.Valid)
	assert.False(t, m.IndexHighZone)
}

func TestComputeBasisStress(t *testing.T) {
	mkSeries := func(closes ...float64) Series {
		var s Series
		for i, v := range closes {
			s = append(s, Point{
				Date:  history.DateOf(testToday.AddDate(0, 0, i-len(closes)+1)),
				Close: v,
			})
		}
		return s
	}

	ext := ExternalSeries{
		Futures: mkSeries(990, 988, 985),
		Spot:    mkSeries(1000, 1000, 1000),
	}
	c := NewComputer(testEngine(), nil)

	m := c.Compute(context.Background(), history.NewStore(nil), ext, testToday)

	require.True(t, m.BasisToday.Valid)
	assert.InDelta(t, -15, m.BasisToday.Float, 1e-9)
	require.True(t, m.BasisPrior.Valid)
	assert.InDelta(t, -10, m.BasisPrior.Float, 1e-9)
	assert.True(t, m.BasisStuck)
	assert.True(t, m.BasisStressDown, "negative basis widening is stress down")
}

func TestComputeBasisAlignmentSkipsUnmatchedDates(t *testing.T) {
	// The spot series misses the middle date; with lag 2 only two aligned
	// points remain, so the basis statistics stay unavailable.
	futures := Series{
		{Date: history.NewDate(2026, time.May, 28), Close: 990},
		{Date: history.NewDate(2026, time.May, 29), Close: 988},
		{Date: history.NewDate(2026, time.June, 1), Close: 985},
	}
	spot := Series{
		{Date: history.NewDate(2026, time.May, 28), Close: 1000},
		{Date: history.NewDate(2026, time.June, 1), Close: 1000},
	}
	c := NewComputer(testEngine(), nil)

	m := c.Compute(context.Background(), history.NewStore(nil),
		ExternalSeries{Futures: futures, Spot: spot}, testToday)

	assert.False(t, m.BasisToday.Valid)
	assert.False(t, m.BasisStressDown)
}

func TestComputeEmergencyFloor(t *testing.T) {
	// A quiet index (0.1% daily moves) cannot shrink the threshold below
	// the floor.
	var quiet Series
	px := 1000.0
	for i := 0; i < 30; i++ {
		quiet = append(quiet, Point{Close: px})
		px *= 1.001
	}
	cfg := testEngine()
	c := NewComputer(cfg, nil)

	m := c.Compute(context.Background(), history.NewStore(nil),
		ExternalSeries{Index3Y: quiet}, testToday)

	require.True(t, m.EmergencyThreshold.Valid)
	assert.InDelta(t, cfg.EmergencyFloorPct, m.EmergencyThreshold.Float, 1e-9)
}

func TestComputeEmergencyMove(t *testing.T) {
	var quiet Series
	px := 1000.0
	for i := 0; i < 30; i++ {
		quiet = append(quiet, Point{Close: px})
		px *= 1.001
	}
	store := seedStore(6, nil, func(i int) float64 { return 100 })
	ext := ExternalSeries{
		Index3Y: quiet,
		Primary: Series{{Close: 100}, {Close: 96}}, // 4% crash
	}
	c := NewComputer(testEngine(), nil)

	m := c.Compute(context.Background(), store, ext, testToday)

	require.True(t, m.EmergencyThreshold.Valid)
	require.True(t, m.PriceMovePct.Valid)
	assert.True(t, m.EmergencyMove)
}

func TestComputeSettlement(t *testing.T) {
	c := NewComputer(testEngine(), nil)

	// 2026-06-12 is the second Friday of June.
	m := c.Compute(context.Background(), history.NewStore(nil), ExternalSeries{},
		history.NewDate(2026, time.June, 8))
	assert.Equal(t, 4, m.DaysToSettlement)
	assert.True(t, m.SettlementNear)
	assert.True(t, m.MajorSettlementMonth)

	m = c.Compute(context.Background(), history.NewStore(nil), ExternalSeries{},
		history.NewDate(2026, time.June, 1))
	assert.Equal(t, 11, m.DaysToSettlement)
	assert.False(t, m.SettlementNear)
}
