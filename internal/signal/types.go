// Package signal derives the intermediate statistics feeding the risk
// classifier: lagged deltas, percentile ranks, adaptive margins,
// moving-average ratios and basis stress. All computations are pure
// functions of a history snapshot plus freshly fetched external series;
// none mutate the store.
package signal

import (
	"encoding/json"
	"math"

	"jpxsignal/internal/history"
)

// Value is a derived statistic that may be unavailable. Unavailability is
// a first-class state distinct from zero: a missing balance must never be
// silently coerced to a zero balance. It serializes as a JSON number, or
// null when unavailable.
type Value struct {
	Float float64
	Valid bool
}

// Avail wraps an available value.
func Avail(v float64) Value {
	return Value{Float: v, Valid: true}
}

// Unavailable is the zero Value, named for readability at call sites.
var Unavailable = Value{}

// MarshalJSON serializes available values as numbers and unavailable ones
// as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid || math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

// UnmarshalJSON parses a number or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Unavailable
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Avail(f)
	return nil
}

// Point is a single (date, close) observation of an external series.
type Point struct {
	Date  history.Date `json:"date"`
	Close float64      `json:"close"`
}

// Series is a date-ordered price series supplied fresh each run; it is
// never persisted.
type Series []Point

// Closes returns the close prices in date order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Close
	}
	return out
}

// Last returns the most recent close.
func (s Series) Last() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].Close, true
}

// ChangePct returns the most recent day-over-day percentage move.
// Unavailable with fewer than two points or a non-positive previous close.
func (s Series) ChangePct() Value {
	if len(s) < 2 {
		return Unavailable
	}
	prev := s[len(s)-2].Close
	if prev <= 0 {
		return Unavailable
	}
	return Avail((s[len(s)-1].Close/prev - 1) * 100)
}

// ExternalSeries bundles the freshly fetched price series for one
// evaluation.
type ExternalSeries struct {
	// Index3Y is the primary index over the 3-year position lookback.
	Index3Y Series
	// Primary and Secondary are short-horizon series for the
	// day-over-day move; Secondary backs up Primary when it is too short.
	Primary   Series
	Secondary Series
	// Futures and Spot feed the basis-stress detector.
	Futures Series
	Spot    Series
}

// Metrics holds every derived statistic for one evaluation date. Each
// statistic is independently unavailable; the classifier's sufficiency
// gate decides which absences halt the evaluation.
type Metrics struct {
	ArbNet  Value `json:"arb_net"`
	Delta3  Value `json:"delta3"`
	Delta5  Value `json:"delta5"`
	Delta25 Value `json:"delta25"`

	ArbPercentile Value `json:"arb_percentile"`
	ArbMedianAbs  Value `json:"arb_median_abs"`
	Margin5       Value `json:"margin5"`
	Margin25      Value `json:"margin25"`
	ArbHigh       bool  `json:"arb_high"`

	VolumeRatio       Value `json:"volume_ratio"`
	PriceMovePct      Value `json:"price_move_pct"`
	LiquidityMismatch bool  `json:"liquidity_mismatch"`

	IndexPercentile Value `json:"index_percentile"`
	IndexDev200     Value `json:"index_dev200"`
	IndexHighZone   bool  `json:"index_high_zone"`
	IndexLowZone    bool  `json:"index_low_zone"`

	BasisToday      Value `json:"basis_today"`
	BasisPrior      Value `json:"basis_prior"`
	BasisStuck      bool  `json:"basis_stuck"`
	BasisStressDown bool  `json:"basis_stress_down"`

	EmergencyThreshold Value `json:"emergency_threshold"`
	EmergencyMove      bool  `json:"emergency_move"`

	DaysToSettlement     int  `json:"days_to_settlement"`
	SettlementNear       bool `json:"settlement_near"`
	MajorSettlementMonth bool `json:"major_settlement_month"`

	// ArbObservedToday reports whether both arbitrage sides are known for
	// the evaluation date itself, a sufficiency-gate input.
	ArbObservedToday bool `json:"arb_observed_today"`
	// VolumeObservedToday reports whether turnover is known for the
	// evaluation date.
	VolumeObservedToday bool `json:"volume_observed_today"`
}
