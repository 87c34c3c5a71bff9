package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jpxsignal/internal/classify"
	"jpxsignal/internal/config"
	"jpxsignal/internal/history"
	"jpxsignal/internal/signal"
	"jpxsignal/internal/state"
)

// stubSources implements every collaborator contract with canned data.
// Fetches run concurrently, so the call counter is atomic.
type stubSources struct {
	arb        *ArbObservation
	arbErr     error
	turnover   *TurnoverObservation
	series     map[string]signal.Series
	futures    signal.Series
	spot       signal.Series
	fetchCount atomic.Int64
}

func (s *stubSources) FetchArbitrage(ctx context.Context) (*ArbObservation, error) {
	s.fetchCount.Add(1)
	return s.arb, s.arbErr
}

func (s *stubSources) FetchTurnover(ctx context.Context) (*TurnoverObservation, error) {
	s.fetchCount.Add(1)
	return s.turnover, nil
}

func (s *stubSources) FetchIndexSeries(ctx context.Context, ticker, lookback string) (signal.Series, error) {
	s.fetchCount.Add(1)
	return s.series[ticker+"/"+lookback], nil
}

func (s *stubSources) FetchFuturesSpotSeries(ctx context.Context, lookback string) (futures, spot signal.Series, err error) {
	s.fetchCount.Add(1)
	return s.futures, s.spot, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.StateFile = filepath.Join(t.TempDir(), "state.json")
	return cfg
}

func mondayClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, time.June, 1, 16, 0, 0, 0, time.UTC)
	}
}

func newTestRunner(cfg *config.Config, src *stubSources) *Runner {
	return NewRunner(cfg, nil, nil, src, src, src, nil).WithClock(mondayClock())
}

func TestRunSkipsClosedMarket(t *testing.T) {
	cfg := testConfig(t)
	src := &stubSources{}
	runner := newTestRunner(cfg, src).WithClock(func() time.Time {
		return time.Date(2026, time.June, 6, 16, 0, 0, 0, time.UTC) // Saturday
	})

	outcome, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Nil(t, outcome.Result)
	assert.Zero(t, src.fetchCount.Load(), "a closed day must not touch collaborators")
	_, statErr := os.Stat(cfg.Paths.StateFile)
	assert.True(t, os.IsNotExist(statErr), "a closed day must not touch persisted state")
}

func TestRunEvaluatesAndPersists(t *testing.T) {
	cfg := testConfig(t)
	today := history.NewDate(2026, time.June, 1)
	src := &stubSources{
		arb:      &ArbObservation{Date: today, Buy: 9e8, Sell: 3e8},
		turnover: &TurnoverObservation{Date: today, Volume: 1.5e9},
	}
	runner := newTestRunner(cfg, src)

	outcome, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusEvaluated, outcome.Status)
	require.NotNil(t, outcome.Result)
	// A nearly empty history cannot satisfy the sufficiency gate.
	assert.Equal(t, classify.Insufficient, outcome.Result.Level)
	assert.True(t, outcome.Result.Metrics.ArbObservedToday)
	assert.True(t, outcome.Result.Metrics.VolumeObservedToday)
	assert.NotEmpty(t, outcome.Result.RunID)
	assert.True(t, outcome.StateChanged)

	doc := state.Load(cfg.Paths.StateFile, nil)
	require.Len(t, doc.History, 1)
	assert.Equal(t, 6e8, *doc.History[0].ArbNet)
	assert.Equal(t, 1.5e9, *doc.History[0].PrimeVolume)
	require.NotNil(t, doc.Latest)
	assert.Equal(t, outcome.Result.RunID, doc.Latest.RunID)
}

func TestRunIdempotentRerun(t *testing.T) {
	cfg := testConfig(t)
	today := history.NewDate(2026, time.June, 1)
	src := &stubSources{
		arb:      &ArbObservation{Date: today, Buy: 9e8, Sell: 3e8},
		turnover: &TurnoverObservation{Date: today, Volume: 1.5e9},
	}

	first, err := newTestRunner(cfg, src).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, first.StateChanged)

	second, err := newTestRunner(cfg, src).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, second.StateChanged, "identical observations must not mutate state")

	doc := state.Load(cfg.Paths.StateFile, nil)
	assert.Len(t, doc.History, 1)
}

func TestRunFetchFailureDegradesToAbsence(t *testing.T) {
	cfg := testConfig(t)
	src := &stubSources{
		arbErr:   errors.New("upstream down"),
		turnover: &TurnoverObservation{Date: history.NewDate(2026, time.June, 1), Volume: 1.5e9},
	}

	outcome, err := newTestRunner(cfg, src).Run(context.Background())
	require.NoError(t, err, "a collaborator malfunction must not abort the evaluation")

	assert.Equal(t, StatusEvaluated, outcome.Status)
	assert.Equal(t, classify.Insufficient, outcome.Result.Level)
	assert.False(t, outcome.Result.Metrics.ArbObservedToday)
	assert.True(t, outcome.Result.Metrics.VolumeObservedToday)
}

func TestRunIgnoresFutureDatedObservation(t *testing.T) {
	cfg := testConfig(t)
	src := &stubSources{
		arb: &ArbObservation{Date: history.NewDate(2026, time.June, 5), Buy: 9e8, Sell: 3e8},
	}

	outcome, err := newTestRunner(cfg, src).Run(context.Background())
	require.NoError(t, err)

	doc := state.Load(cfg.Paths.StateFile, nil)
	assert.Empty(t, doc.History, "future-dated rows never enter the store")
	assert.False(t, outcome.Result.Metrics.ArbObservedToday)
}

func TestRunBackfillsEarlierDate(t *testing.T) {
	// The published balance often lags by a day; the observation lands on
	// its own date, not on the evaluation date.
	cfg := testConfig(t)
	src := &stubSources{
		arb: &ArbObservation{Date: history.NewDate(2026, time.May, 29), Buy: 9e8, Sell: 3e8},
	}

	outcome, err := newTestRunner(cfg, src).Run(context.Background())
	require.NoError(t, err)

	doc := state.Load(cfg.Paths.StateFile, nil)
	require.Len(t, doc.History, 1)
	assert.Equal(t, "2026-05-29", doc.History[0].Date.String())
	assert.False(t, outcome.Result.Metrics.ArbObservedToday,
		"yesterday's balance does not count as today's observation")
}

func TestRunAppliesRetention(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.MaxHistoryRecords = 100

	// Pre-seed an over-long history.
	doc := state.Empty()
	for i := 0; i < 150; i++ {
		doc.History = append(doc.History, history.Record{
			Date:   history.DateOf(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)),
			ArbNet: history.Float(float64(i)),
		})
	}
	require.NoError(t, state.Save(cfg.Paths.StateFile, doc))

	src := &stubSources{}
	_, err := newTestRunner(cfg, src).Run(context.Background())
	require.NoError(t, err)

	saved := state.Load(cfg.Paths.StateFile, nil)
	assert.Len(t, saved.History, 100)
}
