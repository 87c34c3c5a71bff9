package signal

import (
	"context"
	"log/slog"
	"math"

	"jpxsignal/internal/calendar"
	"jpxsignal/internal/config"
	"jpxsignal/internal/history"
)

// Computer derives all intermediate statistics from a history snapshot
// and the freshly fetched external series.
type Computer struct {
	cfg    config.EngineConfig
	logger *slog.Logger
}

// NewComputer creates a signal computer with the given thresholds.
func NewComputer(cfg config.EngineConfig, logger *slog.Logger) *Computer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Computer{cfg: cfg, logger: logger}
}

// Compute derives the full metric set for the evaluation date. The store
// snapshot is read-only; every statistic degrades to unavailable rather
// than erroring when its inputs are missing or degenerate.
func (c *Computer) Compute(ctx context.Context, store *history.Store, ext ExternalSeries, today history.Date) Metrics {
	var m Metrics

	rec, hasToday := store.At(today)
	m.ArbObservedToday = hasToday && rec.ArbBuy != nil && rec.ArbSell != nil
	m.VolumeObservedToday = hasToday && rec.PrimeVolume != nil
	if m.ArbObservedToday {
		m.ArbNet = Avail(*rec.ArbNet)
	}

	c.computeArbStats(&m, store)
	c.computeLiquidity(&m, store, rec, hasToday, ext)
	c.computeIndexPosition(&m, ext.Index3Y)
	c.computeBasisStress(&m, ext.Futures, ext.Spot)
	c.computeEmergency(&m, ext.Index3Y)

	m.DaysToSettlement = calendar.DaysToNextSettlement(today.Time)
	m.SettlementNear = m.DaysToSettlement <= c.cfg.SettlementNearDays
	m.MajorSettlementMonth = calendar.IsMajorSettlementMonth(today.Time)

	c.logger.DebugContext(ctx, "signal computation complete",
		"date", today.String(),
		"arb_observed", m.ArbObservedToday,
		"volume_observed", m.VolumeObservedToday,
		"days_to_settlement", m.DaysToSettlement,
	)
	return m
}

// computeArbStats fills the deltas, percentile rank, median absolute
// balance and the adaptive margins of the arbitrage net series.
func (c *Computer) computeArbStats(m *Metrics, store *history.Store) {
	series := store.Series(history.ArbNetField)

	if d, ok := history.LaggedDelta(series, 3); ok {
		m.Delta3 = Avail(d)
	}
	if d, ok := history.LaggedDelta(series, 5); ok {
		m.Delta5 = Avail(d)
	}
	if d, ok := history.LaggedDelta(series, 25); ok {
		m.Delta25 = Avail(d)
	}

	window := c.arbWindow(series)
	if window == nil {
		return
	}
	latest := series[len(series)-1]

	m.ArbPercentile = percentileRank(window, latest)
	m.ArbMedianAbs = medianAbs(window)
	if !m.ArbPercentile.Valid || !m.ArbMedianAbs.Valid {
		return
	}

	// The margin scales with both the current balance's own magnitude and
	// the historical dispersion, so a near-zero balance never collapses
	// the "stuck" threshold to zero.
	abs := math.Abs(latest)
	med := m.ArbMedianAbs.Float
	m.Margin5 = Avail(math.Max(abs*c.cfg.Margin5Ratio, med*c.cfg.Margin5Floor))
	m.Margin25 = Avail(math.Max(abs*c.cfg.Margin25Ratio, med*c.cfg.Margin25Floor))
	m.ArbHigh = m.ArbPercentile.Float >= c.cfg.ArbHighPercentile
}

// arbWindow selects the trailing window for the percentile statistics:
// the primary window when enough points exist, the fallback window with
// at least that many points, otherwise nil.
func (c *Computer) arbWindow(series []float64) []float64 {
	switch {
	case len(series) >= c.cfg.ArbWindowPrimary:
		return tail(series, c.cfg.ArbWindowPrimary)
	case len(series) >= c.cfg.ArbWindowFallback:
		return tail(series, c.cfg.ArbWindowFallback)
	default:
		return nil
	}
}

// computeLiquidity fills the volume-to-moving-average ratio, the absolute
// day-over-day index move and the mismatch condition.
func (c *Computer) computeLiquidity(m *Metrics, store *history.Store, today history.Record, hasToday bool, ext ExternalSeries) {
	volumes := store.Series(history.PrimeVolumeField)

	// The moving average covers the observations before today so the
	// ratio compares today's turnover against its own recent baseline.
	prior := volumes
	if hasToday && today.PrimeVolume != nil && len(volumes) > 0 {
		prior = volumes[:len(volumes)-1]
	}
	if hasToday && today.PrimeVolume != nil && *today.PrimeVolume > 0 {
		if ma, ok := meanTail(prior, c.cfg.VolumeMAWindow); ok && ma > 0 {
			m.VolumeRatio = Avail(*today.PrimeVolume / ma)
		}
	}

	// Prefer the primary index for the day-over-day move, falling back to
	// the secondary when the primary has fewer than two usable points.
	move := ext.Primary.ChangePct()
	if !move.Valid {
		move = ext.Secondary.ChangePct()
	}
	if move.Valid {
		m.PriceMovePct = Avail(math.Abs(move.Float))
	}

	if !m.VolumeRatio.Valid || !m.PriceMovePct.Valid {
		return
	}
	ratio, mv := m.VolumeRatio.Float, m.PriceMovePct.Float
	thinButMoves := ratio <= c.cfg.VolumeRatioThin && mv >= c.cfg.MoveThresholdPct
	normalButJumps := ratio > c.cfg.VolumeRatioThin && mv >= c.cfg.SpikeThresholdPct
	m.LiquidityMismatch = thinButMoves || normalButJumps
}

// computeIndexPosition fills the 3-year percentile rank of the latest
// close and its deviation from the long moving average. The high zone is
// a joint condition; either statistic alone is insufficient signal.
func (c *Computer) computeIndexPosition(m *Metrics, index Series) {
	closes := index.Closes()
	if len(closes) < c.cfg.IndexMinPoints {
		return
	}
	latest := closes[len(closes)-1]

	m.IndexPercentile = percentileRank(closes, latest)

	ma, ok := meanTail(closes, c.cfg.IndexMA)
	if !ok || ma <= 0 {
		return
	}
	m.IndexDev200 = Avail(latest/ma - 1)

	if m.IndexPercentile.Valid {
		pctl, dev := m.IndexPercentile.Float, m.IndexDev200.Float
		m.IndexHighZone = pctl >= c.cfg.IndexPctlHigh && dev >= c.cfg.IndexDev200High
		m.IndexLowZone = pctl <= c.cfg.IndexPctlLow && dev <= c.cfg.IndexDev200Low
	}
}

// computeBasisStress compares the futures-minus-spot basis today against
// the basis a fixed number of sessions ago over date-aligned series.
func (c *Computer) computeBasisStress(m *Metrics, futures, spot Series) {
	basis := alignBasis(futures, spot)
	if len(basis) < c.cfg.BasisLag+1 {
		return
	}
	today := basis[len(basis)-1]
	prior := basis[len(basis)-1-c.cfg.BasisLag]

	m.BasisToday = Avail(today)
	m.BasisPrior = Avail(prior)
	// Stuck: the spread has not narrowed. Stress-down: additionally the
	// basis is negative and no less negative than before.
	m.BasisStuck = math.Abs(today) >= math.Abs(prior)
	m.BasisStressDown = today < 0 && today <= prior
}

// alignBasis intersects the futures and spot series by date and returns
// the date-ordered futures-minus-spot differences.
func alignBasis(futures, spot Series) []float64 {
	spotByDate := make(map[string]float64, len(spot))
	for _, p := range spot {
		spotByDate[p.Date.String()] = p.Close
	}
	var basis []float64
	for _, p := range futures {
		if s, ok := spotByDate[p.Date.String()]; ok {
			basis = append(basis, p.Close-s)
		}
	}
	return basis
}

// computeEmergency estimates the adaptive "emergency move" threshold from
// the trailing distribution of absolute daily moves, floored at a fixed
// percentage so a quiet year cannot shrink it arbitrarily.
func (c *Computer) computeEmergency(m *Metrics, index Series) {
	closes := index.Closes()
	var moves []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 {
			moves = append(moves, math.Abs((closes[i]/closes[i-1]-1)*100))
		}
	}
	moves = tail(moves, c.cfg.ArbWindowPrimary)
	if len(moves) < c.cfg.EmergencyMinPoints {
		return
	}
	q := quantile(moves, c.cfg.EmergencyQuantile)
	if !q.Valid {
		return
	}
	m.EmergencyThreshold = Avail(math.Max(q.Float, c.cfg.EmergencyFloorPct))
	if m.PriceMovePct.Valid {
		m.EmergencyMove = m.PriceMovePct.Float >= m.EmergencyThreshold.Float
	}
}
