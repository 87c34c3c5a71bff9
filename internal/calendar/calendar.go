// Package calendar provides date arithmetic for the futures/options
// settlement (SQ) schedule and market-holiday closure of the Tokyo market.
package calendar

import "time"

// HolidayProvider reports national holidays. Implementations are external
// collaborators; the calendar only consults them.
type HolidayProvider interface {
	IsHoliday(d time.Time) bool
}

// Major settlement months are the quarterly contract months.
var majorSettlementMonths = map[time.Month]bool{
	time.March:     true,
	time.June:      true,
	time.September: true,
	time.December:  true,
}

// SecondFriday returns the second Friday of the given month.
func SecondFriday(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+7)
}

// NextSettlement returns the settlement day on or after d: the second
// Friday of d's month if not yet passed, else of the following month.
func NextSettlement(d time.Time) time.Time {
	d = truncate(d)
	sq := SecondFriday(d.Year(), d.Month())
	if d.After(sq) {
		next := time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		sq = SecondFriday(next.Year(), next.Month())
	}
	return sq
}

// DaysToNextSettlement returns the non-negative count of calendar days
// from d to the next settlement day.
func DaysToNextSettlement(d time.Time) int {
	d = truncate(d)
	return int(NextSettlement(d).Sub(d).Hours() / 24)
}

// IsMajorSettlementMonth reports whether the next settlement day falls in
// one of the quarterly contract months (March, June, September, December).
func IsMajorSettlementMonth(d time.Time) bool {
	return majorSettlementMonths[NextSettlement(d).Month()]
}

// IsMarketClosed reports whether the Tokyo market is closed on d:
// weekends, the year-end blackout (Dec 31 through Jan 3), and national
// holidays. A closed day halts the whole evaluation for that date.
func IsMarketClosed(d time.Time, hp HolidayProvider) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	if isYearEndBlackout(d) {
		return true
	}
	return hp != nil && hp.IsHoliday(d)
}

// isYearEndBlackout covers the fixed Dec 31 - Jan 3 exchange closure.
func isYearEndBlackout(d time.Time) bool {
	switch d.Month() {
	case time.December:
		return d.Day() == 31
	case time.January:
		return d.Day() <= 3
	}
	return false
}

func truncate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
