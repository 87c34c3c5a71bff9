package datasources

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// holidayFile is the YAML layout of the national-holiday calendar.
type holidayFile struct {
	Holidays []string `yaml:"holidays"`
}

// HolidayCalendar is a file-backed set of national holidays. The zero
// value treats every day as a business day.
type HolidayCalendar struct {
	dates map[string]bool
}

// LoadHolidayCalendar reads the holiday calendar from a YAML file. A
// missing or empty path yields an empty calendar: holiday coverage is an
// enrichment, not a prerequisite.
func LoadHolidayCalendar(path string, logger *slog.Logger) *HolidayCalendar {
	if logger == nil {
		logger = slog.Default()
	}
	cal := &HolidayCalendar{dates: map[string]bool{}}
	if path == "" {
		return cal
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("holiday calendar not loaded, weekends and year-end only",
			"path", path, "error", err)
		return cal
	}

	var file holidayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		logger.Warn("holiday calendar not parseable, weekends and year-end only",
			"path", path, "error", err)
		return cal
	}

	for _, s := range file.Holidays {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			logger.Warn("skipping malformed holiday entry", "entry", s)
			continue
		}
		cal.dates[d.Format("2006-01-02")] = true
	}
	logger.Info("holiday calendar loaded", "path", path, "holidays", len(cal.dates))
	return cal
}

// NewHolidayCalendar builds a calendar from explicit dates. Tests only.
func NewHolidayCalendar(dates ...time.Time) *HolidayCalendar {
	cal := &HolidayCalendar{dates: map[string]bool{}}
	for _, d := range dates {
		cal.dates[d.Format("2006-01-02")] = true
	}
	return cal
}

// IsHoliday reports whether d is a listed national holiday.
func (c *HolidayCalendar) IsHoliday(d time.Time) bool {
	if c == nil || len(c.dates) == 0 {
		return false
	}
	return c.dates[d.Format("2006-01-02")]
}

// String describes the calendar for logs.
func (c *HolidayCalendar) String() string {
	return fmt.Sprintf("HolidayCalendar(%d dates)", len(c.dates))
}
