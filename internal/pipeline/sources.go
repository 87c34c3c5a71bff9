// Package pipeline orchestrates one evaluation: closed-market check,
// collaborator fetches, history upsert, signal computation, risk
// classification and state persistence.
package pipeline

import (
	"context"

	"jpxsignal/internal/history"
	"jpxsignal/internal/signal"
)

// ArbObservation is one day's arbitrage long/short balance observation,
// in shares.
type ArbObservation struct {
	Date history.Date
	Buy  float64
	Sell float64
}

// TurnoverObservation is one day's prime-market turnover observation.
type TurnoverObservation struct {
	Date   history.Date
	Volume float64
}

// Collaborator contracts. A nil observation with a nil error is benign
// absence (non-business day, nothing published yet); a non-nil error is a
// collaborator malfunction. Both degrade to "unavailable" at the
// sufficiency gate, but malfunctions are logged and counted.

// ArbitrageSource supplies the latest arbitrage balance observation.
type ArbitrageSource interface {
	FetchArbitrage(ctx context.Context) (*ArbObservation, error)
}

// TurnoverSource supplies the latest prime-market turnover observation.
type TurnoverSource interface {
	FetchTurnover(ctx context.Context) (*TurnoverObservation, error)
}

// SeriesSource supplies date-ordered closing-price series.
type SeriesSource interface {
	FetchIndexSeries(ctx context.Context, ticker, lookback string) (signal.Series, error)
	FetchFuturesSpotSeries(ctx context.Context, lookback string) (futures, spot signal.Series, err error)
}
