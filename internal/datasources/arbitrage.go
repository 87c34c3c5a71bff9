package datasources

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"jpxsignal/internal/config"
	"jpxsignal/internal/history"
	"jpxsignal/internal/pipeline"
)

// sharesAnchorID marks the arbitrage-balance section of the page; the
// balance table is the first table after it.
const sharesAnchorID = "c_Shares"

// ArbitrageScraper fetches the latest arbitrage long/short balances from
// the published balance table.
type ArbitrageScraper struct {
	client *Client
	url    string
	logger *slog.Logger
	now    func() time.Time
}

// NewArbitrageScraper creates the arbitrage-balance fetcher.
func NewArbitrageScraper(client *Client, cfg config.SourcesConfig, logger *slog.Logger) *ArbitrageScraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArbitrageScraper{
		client: client,
		url:    cfg.ArbitrageURL,
		logger: logger.With(slog.String("source", "irbank")),
		now:    time.Now,
	}
}

// WithClock overrides the scraper clock. Tests only.
func (s *ArbitrageScraper) WithClock(now func() time.Time) *ArbitrageScraper {
	s.now = now
	return s
}

// FetchArbitrage returns the most recent balance row, or nil when the
// page carries no usable row.
func (s *ArbitrageScraper) FetchArbitrage(ctx context.Context) (*pipeline.ArbObservation, error) {
	body, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}

	obs, err := s.parse(body)
	if err != nil {
		s.logger.WarnContext(ctx, "arbitrage page not parseable", "error", err)
		return nil, nil
	}
	if obs == nil {
		s.logger.InfoContext(ctx, "no arbitrage balance published")
	}
	return obs, nil
}

// parse scans the balance table for the newest row with both sides
// populated. Rows carry month/day only; year-header rows (class "occ")
// establish the year, and a date that lands in the future belongs to the
// previous year.
func (s *ArbitrageScraper) parse(body []byte) (*pipeline.ArbObservation, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	nodes := flatten(doc)
	anchor := indexOfID(nodes, sharesAnchorID)
	if anchor < 0 {
		return nil, fmt.Errorf("anchor %q not found", sharesAnchorID)
	}
	table := nextElementAfter(nodes, anchor, "table")
	if table == nil {
		return nil, fmt.Errorf("balance table not found")
	}

	today := history.DateOf(s.now())
	year := today.Year()

	for _, row := range descendants(table, "tr") {
		if hasClass(row, "occ") {
			if y, ok := rowYear(row); ok {
				year = y
			}
			continue
		}

		obs, ok := s.parseRow(row, year, today)
		if ok {
			return obs, nil
		}
	}
	return nil, nil
}

// parseRow extracts one balance observation from a data row.
func (s *ArbitrageScraper) parseRow(row *html.Node, year int, today history.Date) (*pipeline.ArbObservation, bool) {
	var dateCell *html.Node
	var valueCells []*html.Node
	for _, td := range descendants(row, "td") {
		switch {
		case hasClass(td, "lf"):
			if dateCell == nil {
				dateCell = td
			}
		case hasClass(td, "rt"):
			valueCells = append(valueCells, td)
		}
	}
	if dateCell == nil || len(valueCells) < 3 {
		return nil, false
	}

	date, ok := parseMonthDay(nodeText(dateCell), year, today)
	if !ok {
		return nil, false
	}

	buy, err := ParseJapaneseNumber(nodeText(valueCells[0]))
	if err != nil {
		return nil, false
	}
	sell, err := ParseJapaneseNumber(nodeText(valueCells[2]))
	if err != nil {
		return nil, false
	}
	if buy == 0 && sell == 0 {
		return nil, false
	}

	return &pipeline.ArbObservation{Date: date, Buy: buy, Sell: sell}, true
}

// rowYear extracts the year from a year-header row.
func rowYear(row *html.Node) (int, bool) {
	tds := descendants(row, "td")
	if len(tds) == 0 {
		return 0, false
	}
	y, err := strconv.Atoi(nodeText(tds[0]))
	if err != nil || y < 1990 || y > 2100 {
		return 0, false
	}
	return y, true
}

// parseMonthDay resolves an "M/D" cell against the running year. A date
// more than a week in the future is read as last year's.
func parseMonthDay(text string, year int, today history.Date) (history.Date, bool) {
	parts := strings.Split(strings.TrimSpace(text), "/")
	if len(parts) != 2 {
		return history.Date{}, false
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return history.Date{}, false
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil || day < 1 || day > 31 {
		return history.Date{}, false
	}

	date := history.NewDate(year, time.Month(month), day)
	if date.After(today.AddDate(0, 0, 7)) {
		date = history.NewDate(year-1, time.Month(month), day)
	}
	return date, true
}
