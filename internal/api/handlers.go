package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ignite/fundraise-dialer/internal/pkg/distlock"
	"github.com/ignite/fundraise-dialer/internal/pkg/httputil"
	"github.com/ignite/fundraise-dialer/internal/service/dialer"
	"github.com/ignite/fundraise-dialer/internal/service/reconciler"
	"github.com/ignite/fundraise-dialer/internal/worker"
)

// DialerTicker runs one dialer tick.
type DialerTicker interface {
	Tick(ctx context.Context, now time.Time) (*dialer.TickResult, error)
}

// ReconcilerTicker runs one reconciler tick.
type ReconcilerTicker interface {
	Tick(ctx context.Context, now time.Time, opts reconciler.Options) (*reconciler.TickResult, error)
}

// Handlers serves the tick triggers.
type Handlers struct {
	runner     *worker.Runner
	dialer     DialerTicker
	reconciler ReconcilerTicker

	// reconcilerDefaults apply when the request body omits a field.
	reconcilerDefaults reconciler.Options
}

// NewHandlers creates trigger handlers. Ticks run through runner so they
// share the lock and observers with the interval scheduler.
func NewHandlers(runner *worker.Runner, d DialerTicker, r ReconcilerTicker, defaults reconciler.Options) *Handlers {
	return &Handlers{runner: runner, dialer: d, reconciler: r, reconcilerDefaults: defaults}
}

// reconcilerTickRequest is the optional body of POST /reconciler/tick.
type reconcilerTickRequest struct {
	LookbackHours *int `json:"lookbackHours"`
	BatchLimit    *int `json:"batchLimit"`
}

// DialerTick runs one dialer tick.
//
//	POST /dialer/tick
func (h *Handlers) DialerTick(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.Run(r.Context(), worker.JobDialer, func(ctx context.Context, now time.Time) (any, error) {
		return h.dialer.Tick(ctx, now)
	})
	respondTick(w, res, err)
}

// ReconcilerTick runs one reconciler tick with optional per-request
// lookback and batch size.
//
//	POST /reconciler/tick
func (h *Handlers) ReconcilerTick(w http.ResponseWriter, r *http.Request) {
	var req reconcilerTickRequest
	if !httputil.DecodeOptional(w, r, &req) {
		return
	}

	opts := h.reconcilerDefaults
	if req.LookbackHours != nil {
		if *req.LookbackHours < 0 {
			httputil.BadRequest(w, "lookbackHours must not be negative")
			return
		}
		opts.LookbackHours = *req.LookbackHours
	}
	if req.BatchLimit != nil {
		if *req.BatchLimit < 0 {
			httputil.BadRequest(w, "batchLimit must not be negative")
			return
		}
		opts.BatchLimit = *req.BatchLimit
	}

	res, err := h.runner.Run(r.Context(), worker.JobReconciler, func(ctx context.Context, now time.Time) (any, error) {
		return h.reconciler.Tick(ctx, now, opts)
	})
	respondTick(w, res, err)
}

func respondTick(w http.ResponseWriter, res any, err error) {
	switch {
	case errors.Is(err, distlock.ErrLockHeld):
		httputil.Error(w, http.StatusConflict, "tick already running")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, res)
	}
}
