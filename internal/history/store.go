package history

import (
	"sort"
)

// Field projects an optional numeric value out of a Record.
type Field func(Record) *float64

// Field projections used by the signal computer.
var (
	ArbNetField      Field = func(r Record) *float64 { return r.ArbNet }
	PrimeVolumeField Field = func(r Record) *float64 { return r.PrimeVolume }
)

// Store is a date-ordered sequence of records, at most one per date.
// It is owned exclusively by the engine process; no concurrent writers
// are assumed.
type Store struct {
	records []Record
}

// NewStore creates a store from existing records, re-sorting by date and
// collapsing duplicate dates through merge. Insertion order is irrelevant.
func NewStore(records []Record) *Store {
	s := &Store{}
	for _, r := range records {
		s.Upsert(r)
	}
	return s
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Records returns a copy of the records in date order.
func (s *Store) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Last returns the most recent record, if any.
func (s *Store) Last() (Record, bool) {
	if len(s.records) == 0 {
		return Record{}, false
	}
	return s.records[len(s.records)-1], true
}

// At returns the record for the given date, if present.
func (s *Store) At(d Date) (Record, bool) {
	i := s.search(d)
	if i < len(s.records) && s.records[i].Date.Equal(d.Time) {
		return s.records[i], true
	}
	return Record{}, false
}

// Upsert inserts the record or merges it field-by-field into the existing
// entry for the same date. Returns whether stored content actually
// changed, so resubmitting identical observations is a no-op and callers
// can skip re-persisting.
func (s *Store) Upsert(rec Record) bool {
	i := s.search(rec.Date)
	if i < len(s.records) && s.records[i].Date.Equal(rec.Date.Time) {
		return s.records[i].merge(rec)
	}

	fresh := Record{Date: rec.Date}
	fresh.merge(rec)
	s.records = append(s.records, Record{})
	copy(s.records[i+1:], s.records[i:])
	s.records[i] = fresh
	return true
}

// Trim discards the oldest records beyond max. Returns whether anything
// was evicted.
func (s *Store) Trim(max int) bool {
	if max <= 0 || len(s.records) <= max {
		return false
	}
	s.records = append([]Record(nil), s.records[len(s.records)-max:]...)
	return true
}

// Series returns the date-ordered non-nil values of the field.
func (s *Store) Series(f Field) []float64 {
	var out []float64
	for _, r := range s.records {
		if v := f(r); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// MovingAverage returns the arithmetic mean of the most recent window
// non-nil positive values of the field. The second return is false when
// fewer than window qualifying values exist; an unavailable average is
// not zero and not an error.
func (s *Store) MovingAverage(f Field, window int) (float64, bool) {
	if window <= 0 {
		return 0, false
	}
	var qualifying []float64
	for i := len(s.records) - 1; i >= 0 && len(qualifying) < window; i-- {
		if v := f(s.records[i]); v != nil && *v > 0 {
			qualifying = append(qualifying, *v)
		}
	}
	if len(qualifying) < window {
		return 0, false
	}
	sum := 0.0
	for _, v := range qualifying {
		sum += v
	}
	return sum / float64(window), true
}

// LaggedDelta returns series[last] - series[last-lag] over a date-ordered
// numeric series. Unavailable when the series is shorter than lag+1.
func LaggedDelta(series []float64, lag int) (float64, bool) {
	if lag <= 0 || len(series) < lag+1 {
		return 0, false
	}
	return series[len(series)-1] - series[len(series)-1-lag], true
}

// search returns the insertion index for date d.
func (s *Store) search(d Date) int {
	return sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Date.Before(d.Time)
	})
}
