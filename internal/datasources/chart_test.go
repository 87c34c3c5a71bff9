package datasources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func epoch(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

func serveChart(t *testing.T, payload string, gotPath *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotPath != nil {
			*gotPath = r.URL.RequestURI()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChartClientFetchIndexSeries(t *testing.T) {
	payload := fmt.Sprintf(
		`{"chart":{"result":[{"timestamp":[%d,%d,%d],"indicators":{"quote":[{"close":[2650.5,null,2672.25]}]}}],"error":null}}`,
		epoch(2026, time.May, 28), epoch(2026, time.May, 29), epoch(2026, time.June, 1))

	var gotPath string
	srv := serveChart(t, payload, &gotPath)
	cfg := testSources(srv.URL)
	client := NewChartClient(NewClient(cfg, nil), cfg, nil)

	series, err := client.FetchIndexSeries(context.Background(), "^TOPX", "3y")
	require.NoError(t, err)

	assert.True(t, strings.Contains(gotPath, "range=3y"))
	assert.True(t, strings.Contains(gotPath, "interval=1d"))

	// The null close is skipped, not zero-filled.
	require.Len(t, series, 2)
	assert.Equal(t, "2026-05-28", series[0].Date.String())
	assert.Equal(t, 2650.5, series[0].Close)
	assert.Equal(t, "2026-06-01", series[1].Date.String())
	assert.Equal(t, 2672.25, series[1].Close)
}

func TestChartClientAPIError(t *testing.T) {
	payload := `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`
	srv := serveChart(t, payload, nil)
	cfg := testSources(srv.URL)
	client := NewChartClient(NewClient(cfg, nil), cfg, nil)

	_, err := client.FetchIndexSeries(context.Background(), "BOGUS", "5d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not Found")
}

func TestChartClientEmptyResult(t *testing.T) {
	srv := serveChart(t, `{"chart":{"result":[],"error":null}}`, nil)
	cfg := testSources(srv.URL)
	client := NewChartClient(NewClient(cfg, nil), cfg, nil)

	_, err := client.FetchIndexSeries(context.Background(), "^TOPX", "5d")
	assert.Error(t, err)
}

func TestChartClientMalformedJSON(t *testing.T) {
	srv := serveChart(t, `<html>rate limited</html>`, nil)
	cfg := testSources(srv.URL)
	client := NewChartClient(NewClient(cfg, nil), cfg, nil)

	_, err := client.FetchIndexSeries(context.Background(), "^TOPX", "5d")
	assert.Error(t, err)
}

func TestChartClientFetchFuturesSpotSeries(t *testing.T) {
	payload := fmt.Sprintf(
		`{"chart":{"result":[{"timestamp":[%d],"indicators":{"quote":[{"close":[100.0]}]}}],"error":null}}`,
		epoch(2026, time.June, 1))
	srv := serveChart(t, payload, nil)

	cfg := testSources(srv.URL)
	cfg.FuturesTicker = "NK=F"
	cfg.SecondaryTicker = "^N225"
	client := NewChartClient(NewClient(cfg, nil), cfg, nil)

	futures, spot, err := client.FetchFuturesSpotSeries(context.Background(), "1mo")
	require.NoError(t, err)
	assert.Len(t, futures, 1)
	assert.Len(t, spot, 1)
}
