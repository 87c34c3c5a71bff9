// Package classify folds the computed metrics and condition booleans into
// a categorical risk level, with an explicit insufficient-data state.
package classify

import (
	"encoding/json"
	"fmt"
	"time"

	"jpxsignal/internal/config"
	"jpxsignal/internal/history"
	"jpxsignal/internal/signal"
)

// Level is the categorical risk reading. Warning > Caution > Normal;
// Insufficient is a separate non-comparable terminal state, distinct from
// a calm market reading because treating missing data as benign would
// understate risk.
type Level int

const (
	Insufficient Level = iota
	Normal
	Caution
	Warning
)

// String returns the canonical level name.
func (l Level) String() string {
	switch l {
	case Insufficient:
		return "INSUFFICIENT"
	case Normal:
		return "NORMAL"
	case Caution:
		return "CAUTION"
	case Warning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes the level by name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON parses a level name.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "INSUFFICIENT":
		*l = Insufficient
	case "NORMAL":
		*l = Normal
	case "CAUTION":
		*l = Caution
	case "WARNING":
		*l = Warning
	default:
		return fmt.Errorf("unknown risk level %q", s)
	}
	return nil
}

// Conditions is the boolean condition set the decision rules consume.
type Conditions struct {
	WeakStuck            bool `json:"weak_stuck"`
	StrongStuck          bool `json:"strong_stuck"`
	LiquidityMismatch    bool `json:"liquidity_mismatch"`
	IndexHighZone        bool `json:"index_high_zone"`
	BasisStressDown      bool `json:"basis_stress_down"`
	EmergencyMove        bool `json:"emergency_move"`
	SettlementNear       bool `json:"settlement_near"`
	MajorSettlementMonth bool `json:"major_settlement_month"`
}

// Result is the classifier's output for one evaluation date. It is
// created once per invocation and immutable once produced; the latest
// Result is retained for reporting but never feeds later computations.
type Result struct {
	Date        history.Date   `json:"date"`
	Level       Level          `json:"level"`
	Conditions  Conditions     `json:"conditions"`
	Metrics     signal.Metrics `json:"metrics"`
	Triggered   []string       `json:"triggered"`
	RunID       string         `json:"run_id,omitempty"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}

// Classifier turns one evaluation's metrics into a Result.
type Classifier struct {
	cfg config.EngineConfig
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg config.EngineConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// sufficient checks every required input of the decision rules. Any
// absence is a hard stop; settlement proximity is never part of this
// gate, it only corroborates. The 3-lag delta is informational only and
// never gates sufficiency.
func sufficient(m signal.Metrics) bool {
	return m.ArbObservedToday &&
		m.Delta5.Valid &&
		m.Delta25.Valid &&
		m.ArbPercentile.Valid &&
		m.ArbMedianAbs.Valid &&
		m.Margin5.Valid &&
		m.Margin25.Valid &&
		m.VolumeObservedToday &&
		m.VolumeRatio.Valid &&
		m.PriceMovePct.Valid &&
		m.EmergencyThreshold.Valid
}

// Classify applies the decision rules in order: sufficiency gate, the
// warning disjunction, the caution rule, and the settlement boost.
func (c *Classifier) Classify(date history.Date, m signal.Metrics) Result {
	res := Result{
		Date:        date,
		Metrics:     m,
		EvaluatedAt: time.Now().UTC(),
	}

	if !sufficient(m) {
		res.Level = Insufficient
		return res
	}

	cond := Conditions{
		LiquidityMismatch:    m.LiquidityMismatch,
		IndexHighZone:        m.IndexHighZone,
		BasisStressDown:      m.BasisStressDown,
		EmergencyMove:        m.EmergencyMove,
		SettlementNear:       m.SettlementNear,
		MajorSettlementMonth: m.MajorSettlementMonth,
	}

	// Weak: the balance has not meaningfully unwound over five sessions.
	// Strong: sustained non-reduction at a historically elevated level.
	cond.WeakStuck = m.Delta5.Float >= -m.Margin5.Float
	cond.StrongStuck = cond.WeakStuck &&
		m.Delta25.Float >= -m.Margin25.Float &&
		m.ArbHigh

	res.Conditions = cond
	res.Level = decide(cond)
	res.Triggered = triggered(cond)
	return res
}

// decide evaluates the rule set over the condition booleans.
func decide(c Conditions) Level {
	priceCorroborated := c.IndexHighZone || c.BasisStressDown

	// An extreme price shock substitutes for the price-position or basis
	// corroboration normally required for a warning.
	if (c.StrongStuck && c.LiquidityMismatch && priceCorroborated) ||
		(c.WeakStuck && c.LiquidityMismatch && c.EmergencyMove) {
		return Warning
	}

	if c.WeakStuck && c.LiquidityMismatch &&
		(c.SettlementNear || priceCorroborated || c.EmergencyMove) {
		// Boost: caution in the final days before a quarterly settlement
		// is upgraded.
		if c.SettlementNear && c.MajorSettlementMonth {
			return Warning
		}
		return Caution
	}

	return Normal
}

// triggered lists the names of the satisfied conditions for reporting.
func triggered(c Conditions) []string {
	var names []string
	add := func(ok bool, name string) {
		if ok {
			names = append(names, name)
		}
	}
	add(c.WeakStuck, "ARB_STUCK_WEAK")
	add(c.StrongStuck, "ARB_STUCK_STRONG")
	add(c.LiquidityMismatch, "LIQ_MISMATCH")
	add(c.IndexHighZone, "IDX_HIGH_ZONE")
	add(c.BasisStressDown, "BASIS_STRESS_DOWN")
	add(c.EmergencyMove, "EMERGENCY_MOVE")
	add(c.SettlementNear, "SQ_NEAR")
	add(c.MajorSettlementMonth, "MAJOR_SQ_MONTH")
	return names
}
