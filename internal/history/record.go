// Package history implements the durable ordered collection of per-date
// market observation records and the windowed statistics computed over it.
package history

import (
	"fmt"
	"strings"
	"time"
)

// dateLayout is the wire format for calendar dates in the state document.
const dateLayout = "2006-01-02"

// Date is a calendar date (no time-of-day component), serialized as
// YYYY-MM-DD. It is the unique key of a Record within the store.
type Date struct {
	time.Time
}

// NewDate creates a Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

// String returns the YYYY-MM-DD representation.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON serializes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON parses a YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date literal: %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Record is one entry per calendar date. Fields are pointers because a
// record may be partially populated: a nil field means "not yet known",
// which is materially different from zero for balances and volumes.
type Record struct {
	Date        Date     `json:"date"`
	ArbBuy      *float64 `json:"arb_buy,omitempty"`
	ArbSell     *float64 `json:"arb_sell,omitempty"`
	ArbNet      *float64 `json:"arb_net,omitempty"`
	PrimeVolume *float64 `json:"prime_volume,omitempty"`

	// Source is provenance metadata only; it never affects logic.
	Source string `json:"source,omitempty"`
}

// merge folds the non-nil fields of incoming over r. A known field is
// never overwritten with nil. ArbNet is recomputed whenever both sides
// are known after the merge. Returns whether r actually changed.
func (r *Record) merge(incoming Record) bool {
	changed := false
	changed = mergeField(&r.ArbBuy, incoming.ArbBuy) || changed
	changed = mergeField(&r.ArbSell, incoming.ArbSell) || changed
	changed = mergeField(&r.PrimeVolume, incoming.PrimeVolume) || changed

	if r.ArbBuy != nil && r.ArbSell != nil {
		net := *r.ArbBuy - *r.ArbSell
		if r.ArbNet == nil || *r.ArbNet != net {
			r.ArbNet = &net
			changed = true
		}
	} else if incoming.ArbNet != nil {
		// Older records may carry a net without its sides; keep it.
		changed = mergeField(&r.ArbNet, incoming.ArbNet) || changed
	}

	if incoming.Source != "" && !hasSource(r.Source, incoming.Source) {
		if r.Source == "" {
			r.Source = incoming.Source
		} else {
			r.Source += "," + incoming.Source
		}
		changed = true
	}
	return changed
}

// hasSource reports whether the comma-separated provenance list already
// names src, keeping repeated same-day fetches idempotent.
func hasSource(list, src string) bool {
	for len(list) > 0 {
		i := strings.IndexByte(list, ',')
		if i < 0 {
			return list == src
		}
		if list[:i] == src {
			return true
		}
		list = list[i+1:]
	}
	return false
}

// mergeField sets dst from src when src is non-nil and differs.
func mergeField(dst **float64, src *float64) bool {
	if src == nil {
		return false
	}
	if *dst != nil && **dst == *src {
		return false
	}
	v := *src
	*dst = &v
	return true
}

// Float is a convenience constructor for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}
