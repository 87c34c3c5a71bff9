package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jpxsignal/internal/calendar"
	"jpxsignal/internal/classify"
	"jpxsignal/internal/config"
	"jpxsignal/internal/history"
	"jpxsignal/internal/infrastructure"
	"jpxsignal/internal/signal"
	"jpxsignal/internal/state"
)

// Status is the outcome kind of one invocation.
type Status string

const (
	// StatusSkipped means the market was closed and nothing ran: no
	// fetch, no state mutation, no classification.
	StatusSkipped Status = "skipped"
	// StatusEvaluated means a classification was produced.
	StatusEvaluated Status = "evaluated"
)

// Outcome is the result of one pipeline invocation.
type Outcome struct {
	Status       Status
	Reason       string
	Result       *classify.Result
	StateChanged bool
	// History is the post-upsert observation history, for reporting.
	History []history.Record
}

// Runner wires the collaborators and the engine core for one evaluation
// per invocation. The history store is loaded once and saved once; no
// other locking is required.
type Runner struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *infrastructure.EngineMetrics
	arb        ArbitrageSource
	turnover   TurnoverSource
	series     SeriesSource
	holidays   calendar.HolidayProvider
	computer   *signal.Computer
	classifier *classify.Classifier
	now        func() time.Time
}

// NewRunner creates a pipeline runner. metrics may be nil for one-shot
// invocations without a metrics pipeline.
func NewRunner(
	cfg *config.Config,
	logger *slog.Logger,
	metrics *infrastructure.EngineMetrics,
	arb ArbitrageSource,
	turnover TurnoverSource,
	series SeriesSource,
	holidays calendar.HolidayProvider,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		arb:        arb,
		turnover:   turnover,
		series:     series,
		holidays:   holidays,
		computer:   signal.NewComputer(cfg.Engine, logger),
		classifier: classify.NewClassifier(cfg.Engine),
		now:        time.Now,
	}
}

// WithClock overrides the evaluation clock. Tests only.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// fetched collects everything the collaborators supplied for one run.
type fetched struct {
	arb      *ArbObservation
	turnover *TurnoverObservation
	ext      signal.ExternalSeries
}

// Run performs one evaluation. Reruns on the same date are idempotent:
// resubmitting identical observations neither alters stored values nor
// duplicates records.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	runID := uuid.NewString()
	ctx = infrastructure.WithRunID(ctx, runID)
	start := r.now()
	today := history.DateOf(start)

	if calendar.IsMarketClosed(today.Time, r.holidays) {
		r.logger.InfoContext(ctx, "market closed, skipping evaluation", "date", today.String())
		return &Outcome{Status: StatusSkipped, Reason: "market closed"}, nil
	}

	doc := state.Load(r.cfg.Paths.StateFile, r.logger)
	store := history.NewStore(doc.History)

	f := r.fetchAll(ctx)
	changed := r.updateStore(ctx, store, today, f)

	m := r.computer.Compute(ctx, store, f.ext, today)
	result := r.classifier.Classify(today, m)
	result.RunID = runID

	r.logger.InfoContext(ctx, "evaluation complete",
		"date", today.String(),
		"level", result.Level.String(),
		"triggered", result.Triggered,
		"state_changed", changed,
	)
	r.metrics.RecordEvaluation(ctx, result.Level.String(), time.Since(start))

	doc.History = store.Records()
	doc.Latest = &result
	if err := state.Save(r.cfg.Paths.StateFile, doc); err != nil {
		// Fail soft: the classification for this run stands even when it
		// cannot be persisted.
		r.logger.ErrorContext(ctx, "failed to persist state, continuing with in-memory result",
			"path", r.cfg.Paths.StateFile, "error", err)
		r.metrics.RecordStateSaveFailure(ctx)
	}

	return &Outcome{
		Status:       StatusEvaluated,
		Result:       &result,
		StateChanged: changed,
		History:      doc.History,
	}, nil
}

// fetchAll runs the collaborator fetches in parallel. Parallelism is a
// pure optimization; no ordering or correctness property depends on it.
// Fetch failures are logged and counted, then treated as absence.
func (r *Runner) fetchAll(ctx context.Context) *fetched {
	var f fetched
	src := r.cfg.Sources

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		obs, err := r.arb.FetchArbitrage(gctx)
		if err != nil {
			r.fetchFailed(gctx, "arbitrage", err)
			return nil
		}
		f.arb = obs
		return nil
	})
	g.Go(func() error {
		obs, err := r.turnover.FetchTurnover(gctx)
		if err != nil {
			r.fetchFailed(gctx, "turnover", err)
			return nil
		}
		f.turnover = obs
		return nil
	})
	g.Go(func() error {
		s, err := r.series.FetchIndexSeries(gctx, src.PrimaryTicker, src.PositionLookback)
		if err != nil {
			r.fetchFailed(gctx, "index_position", err)
			return nil
		}
		f.ext.Index3Y = s
		return nil
	})
	g.Go(func() error {
		s, err := r.series.FetchIndexSeries(gctx, src.PrimaryTicker, src.MoveLookback)
		if err != nil {
			r.fetchFailed(gctx, "index_move_primary", err)
			return nil
		}
		f.ext.Primary = s
		return nil
	})
	g.Go(func() error {
		s, err := r.series.FetchIndexSeries(gctx, src.SecondaryTicker, src.MoveLookback)
		if err != nil {
			r.fetchFailed(gctx, "index_move_secondary", err)
			return nil
		}
		f.ext.Secondary = s
		return nil
	})
	g.Go(func() error {
		fut, spot, err := r.series.FetchFuturesSpotSeries(gctx, src.BasisLookback)
		if err != nil {
			r.fetchFailed(gctx, "futures_spot", err)
			return nil
		}
		f.ext.Futures = fut
		f.ext.Spot = spot
		return nil
	})

	g.Wait()
	return &f
}

// fetchFailed logs and counts one collaborator malfunction.
func (r *Runner) fetchFailed(ctx context.Context, source string, err error) {
	r.logger.WarnContext(ctx, "upstream fetch failed", "source", source, "error", err)
	r.metrics.RecordFetchFailure(ctx, source)
}

// updateStore upserts the fresh observations and applies retention.
// Returns whether stored content actually changed.
func (r *Runner) updateStore(ctx context.Context, store *history.Store, today history.Date, f *fetched) bool {
	changed := false

	if f.arb != nil {
		if f.arb.Date.After(today.Time) {
			r.logger.WarnContext(ctx, "ignoring arbitrage observation dated in the future",
				"date", f.arb.Date.String())
		} else {
			changed = store.Upsert(history.Record{
				Date:    f.arb.Date,
				ArbBuy:  history.Float(f.arb.Buy),
				ArbSell: history.Float(f.arb.Sell),
				Source:  "irbank",
			}) || changed
		}
	}

	if f.turnover != nil {
		if f.turnover.Date.After(today.Time) {
			r.logger.WarnContext(ctx, "ignoring turnover observation dated in the future",
				"date", f.turnover.Date.String())
		} else {
			changed = store.Upsert(history.Record{
				Date:        f.turnover.Date,
				PrimeVolume: history.Float(f.turnover.Volume),
				Source:      "nikkei",
			}) || changed
		}
	}

	changed = store.Trim(r.cfg.Engine.MaxHistoryRecords) || changed
	return changed
}
