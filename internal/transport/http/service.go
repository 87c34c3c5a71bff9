// Package http exposes the latest evaluation result and the observation
// history over a small JSON API.
package http

import (
	"context"
	"log/slog"

	"jpxsignal/internal/classify"
	"jpxsignal/internal/history"
	"jpxsignal/internal/pipeline"
	"jpxsignal/internal/state"
)

// StateReader supplies the persisted evaluation state to the handlers.
type StateReader interface {
	Latest(ctx context.Context) *classify.Result
	History(ctx context.Context) []history.Record
}

// Evaluator triggers one on-demand pipeline run.
type Evaluator interface {
	Run(ctx context.Context) (*pipeline.Outcome, error)
}

// stateService reads the state document fresh on every request; the
// document is small and the file is replaced atomically, so a reread is
// always consistent.
type stateService struct {
	path   string
	logger *slog.Logger
}

// NewStateService creates a StateReader over the state file at path.
func NewStateService(path string, logger *slog.Logger) StateReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &stateService{path: path, logger: logger}
}

func (s *stateService) Latest(ctx context.Context) *classify.Result {
	return state.Load(s.path, s.logger).Latest
}

func (s *stateService) History(ctx context.Context) []history.Record {
	return state.Load(s.path, s.logger).History
}
