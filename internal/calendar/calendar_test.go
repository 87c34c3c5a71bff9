package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSecondFriday(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		want  time.Time
	}{
		{"month starting on friday", 2026, time.May, date(2026, time.May, 8)},
		{"month starting on monday", 2026, time.June, date(2026, time.June, 12)},
		{"month starting on sunday", 2026, time.March, date(2026, time.March, 13)},
		{"month starting on saturday", 2026, time.August, date(2026, time.August, 14)},
		{"december quarterly", 2025, time.December, date(2025, time.December, 12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SecondFriday(tt.year, tt.month)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, time.Friday, got.Weekday())
		})
	}
}

func TestNextSettlement(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
		want time.Time
	}{
		{"before this month's", date(2026, time.June, 1), date(2026, time.June, 12)},
		{"on the settlement day itself", date(2026, time.June, 12), date(2026, time.June, 12)},
		{"after this month's rolls to next", date(2026, time.June, 13), date(2026, time.July, 10)},
		{"december rolls into january", date(2025, time.December, 20), date(2026, time.January, 9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextSettlement(tt.day))
		})
	}
}

func TestDaysToNextSettlement(t *testing.T) {
	assert.Equal(t, 0, DaysToNextSettlement(date(2026, time.June, 12)))
	assert.Equal(t, 11, DaysToNextSettlement(date(2026, time.June, 1)))
	// A timestamp with a time-of-day component counts the same as midnight.
	noon := time.Date(2026, time.June, 1, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, 11, DaysToNextSettlement(noon))
}

func TestIsMajorSettlementMonth(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"early june targets june", date(2026, time.June, 1), true},
		{"late june targets july", date(2026, time.June, 20), false},
		{"late february targets march", date(2026, time.February, 20), true},
		{"early april targets april", date(2026, time.April, 1), false},
		{"late november targets december", date(2026, time.November, 20), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMajorSettlementMonth(tt.day))
		})
	}
}

type holidaySet map[string]bool

func (h holidaySet) IsHoliday(d time.Time) bool {
	return h[d.Format("2006-01-02")]
}

func TestIsMarketClosed(t *testing.T) {
	holidays := holidaySet{"2026-05-04": true}

	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"ordinary weekday", date(2026, time.May, 7), false},
		{"saturday", date(2026, time.May, 9), true},
		{"sunday", date(2026, time.May, 10), true},
		{"national holiday", date(2026, time.May, 4), true},
		{"december 31", date(2026, time.December, 31), true},
		{"january 2", date(2026, time.January, 2), true},
		{"january 4 reopens", date(2027, time.January, 4), false},
		{"december 30 open", date(2026, time.December, 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMarketClosed(tt.day, holidays))
		})
	}
}

func TestIsMarketClosedNilProvider(t *testing.T) {
	assert.False(t, IsMarketClosed(date(2026, time.May, 7), nil))
	assert.True(t, IsMarketClosed(date(2026, time.May, 9), nil))
}
