package datasources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"jpxsignal/internal/config"
	"jpxsignal/internal/history"
	"jpxsignal/internal/signal"
)

// ChartClient fetches daily closing-price series from a chart API
// speaking the Yahoo Finance v8 response layout.
type ChartClient struct {
	client  *Client
	baseURL string
	spot    string
	futures string
	logger  *slog.Logger
}

// NewChartClient creates the price-series fetcher.
func NewChartClient(client *Client, cfg config.SourcesConfig, logger *slog.Logger) *ChartClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChartClient{
		client:  client,
		baseURL: cfg.ChartBaseURL,
		spot:    cfg.SecondaryTicker,
		futures: cfg.FuturesTicker,
		logger:  logger.With(slog.String("source", "chart")),
	}
}

// chartResponse is the subset of the chart API payload the engine needs.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchIndexSeries returns the daily close series for the ticker over the
// lookback range, gaps (null closes) skipped.
func (c *ChartClient) FetchIndexSeries(ctx context.Context, ticker, lookback string) (signal.Series, error) {
	endpoint := fmt.Sprintf("%s/%s?range=%s&interval=1d",
		c.baseURL, url.PathEscape(ticker), url.QueryEscape(lookback))

	body, err := c.client.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chart response for %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %s (%s)",
			ticker, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart response for %s has no result", ticker)
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart response for %s has no quote data", ticker)
	}
	closes := result.Indicators.Quote[0].Close

	var series signal.Series
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		series = append(series, signal.Point{
			Date:  history.DateOf(time.Unix(ts, 0).UTC()),
			Close: *closes[i],
		})
	}

	c.logger.DebugContext(ctx, "fetched price series",
		"ticker", ticker, "lookback", lookback, "points", len(series))
	return series, nil
}

// FetchFuturesSpotSeries returns the date-aligned inputs of the basis
// computation: the futures series and the spot index series over the
// lookback range.
func (c *ChartClient) FetchFuturesSpotSeries(ctx context.Context, lookback string) (futures, spot signal.Series, err error) {
	futures, err = c.FetchIndexSeries(ctx, c.futures, lookback)
	if err != nil {
		return nil, nil, err
	}
	spot, err = c.FetchIndexSeries(ctx, c.spot, lookback)
	if err != nil {
		return nil, nil, err
	}
	return futures, spot, nil
}
