package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "jpxsignal/internal/errors"
	"jpxsignal/internal/history"
	"jpxsignal/internal/pipeline"
)

// ResultHandler serves the evaluation results API.
type ResultHandler struct {
	state     StateReader
	evaluator Evaluator
	logger    *slog.Logger
}

// NewResultHandler creates the results handler. evaluator may be nil,
// in which case on-demand evaluation is not exposed.
func NewResultHandler(state StateReader, evaluator Evaluator, logger *slog.Logger) *ResultHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultHandler{
		state:     state,
		evaluator: evaluator,
		logger:    logger.With(slog.String("component", "result_handler")),
	}
}

// GetLatest handles GET /api/v1/result/latest.
func (h *ResultHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	res := h.state.Latest(r.Context())
	if res == nil {
		render.Render(w, r, apierrors.ErrNoResult)
		return
	}
	render.JSON(w, r, res)
}

// historyResponse is the GET /api/v1/history payload.
type historyResponse struct {
	Count   int              `json:"count"`
	Records []history.Record `json:"records"`
}

// GetHistory handles GET /api/v1/history.
func (h *ResultHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	records := h.state.History(r.Context())
	render.JSON(w, r, historyResponse{Count: len(records), Records: records})
}

// evaluateResponse is the POST /api/v1/evaluate payload.
type evaluateResponse struct {
	Status       pipeline.Status `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	StateChanged bool            `json:"state_changed"`
	Result       interface{}     `json:"result,omitempty"`
}

// Evaluate handles POST /api/v1/evaluate: one synchronous pipeline run.
func (h *ResultHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	if h.evaluator == nil {
		render.Render(w, r, apierrors.ErrNotFound)
		return
	}

	outcome, err := h.evaluator.Run(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "on-demand evaluation failed", "error", err)
		render.Render(w, r, apierrors.InternalError(err))
		return
	}

	resp := evaluateResponse{
		Status:       outcome.Status,
		Reason:       outcome.Reason,
		StateChanged: outcome.StateChanged,
	}
	if outcome.Result != nil {
		resp.Result = outcome.Result
	}
	render.JSON(w, r, resp)
}
