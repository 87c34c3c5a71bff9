package datasources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jpxsignal/internal/config"
	"jpxsignal/internal/history"
	"jpxsignal/internal/pipeline"
)

// turnoverHeader is the row label of the prime-market share turnover in
// the published market summary tables.
const turnoverHeader = "売買高"

// TurnoverScraper fetches the prime-market turnover from the market
// summary page.
type TurnoverScraper struct {
	client *Client
	url    string
	logger *slog.Logger
	now    func() time.Time
}

// NewTurnoverScraper creates the turnover fetcher.
func NewTurnoverScraper(client *Client, cfg config.SourcesConfig, logger *slog.Logger) *TurnoverScraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnoverScraper{
		client: client,
		url:    cfg.TurnoverURL,
		logger: logger.With(slog.String("source", "nikkei")),
		now:    time.Now,
	}
}

// WithClock overrides the scraper clock. Tests only.
func (s *TurnoverScraper) WithClock(now func() time.Time) *TurnoverScraper {
	s.now = now
	return s
}

// FetchTurnover returns today's turnover observation, or nil when no
// positive turnover figure is published.
func (s *TurnoverScraper) FetchTurnover(ctx context.Context) (*pipeline.TurnoverObservation, error) {
	body, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}

	volume, err := s.parse(body)
	if err != nil {
		s.logger.WarnContext(ctx, "turnover page not parseable", "error", err)
		return nil, nil
	}
	if volume <= 0 {
		s.logger.InfoContext(ctx, "no turnover published")
		return nil, nil
	}

	return &pipeline.TurnoverObservation{
		Date:   history.DateOf(s.now()),
		Volume: volume,
	}, nil
}

// parse scans the summary tables for the turnover row and returns the
// first positive figure next to it.
func (s *TurnoverScraper) parse(body []byte) (float64, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return 0, fmt.Errorf("parse html: %w", err)
	}

	for _, row := range descendants(doc, "tr") {
		headers := descendants(row, "th")
		if len(headers) == 0 || !strings.Contains(nodeText(headers[0]), turnoverHeader) {
			continue
		}
		for _, td := range descendants(row, "td") {
			v, err := ParseJapaneseNumber(nodeText(td))
			if err == nil && v > 0 {
				return v, nil
			}
		}
	}
	return 0, fmt.Errorf("turnover row not found")
}
