package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"fulfillment-pipeline/internal/core/clock"
	"fulfillment-pipeline/internal/core/logger"
	acceptancedomain "fulfillment-pipeline/internal/features/acceptance/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrCycleRunning signals that a pipeline cycle is already in flight.
var ErrCycleRunning = errors.New("a pipeline cycle is already running")

// AcceptanceReconciler is the acceptance phase as the orchestrator sees it.
type AcceptanceReconciler interface {
	Reconcile(ctx context.Context) (acceptancedomain.Outcome, error)
}

// ShippingManager is the shipping phase as the orchestrator sees it.
type ShippingManager interface {
	ProcessPending(ctx context.Context) error
	Reprocess(ctx context.Context, orderID string) error
}

// TrackingSynchronizer is the tracking phase as the orchestrator sees it.
type TrackingSynchronizer interface {
	Run(ctx context.Context) error
}

// PhaseReport is the outcome of one pipeline phase within a cycle.
type PhaseReport struct {
	// Outcome is the phase result, e.g. SUCCESS or NEW_ORDERS_FOUND.
	Outcome string `json:"outcome"`
	// Error holds the failure description when the phase aborted.
	Error string `json:"error,omitempty"`
	// Attempts is how many passes the phase ran.
	Attempts int `json:"attempts,omitempty"`
}

// CycleReport is the retained snapshot of the last pipeline cycle.
type CycleReport struct {
	// CycleID uniquely identifies the cycle across logs and the ops API.
	CycleID string `json:"cycle_id"`
	// StartedAt is when the cycle began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the cycle completed.
	FinishedAt time.Time `json:"finished_at"`
	// Acceptance is the acceptance phase outcome.
	Acceptance PhaseReport `json:"acceptance"`
	// Shipping is the shipping phase outcome.
	Shipping PhaseReport `json:"shipping"`
	// Tracking is the tracking phase outcome.
	Tracking PhaseReport `json:"tracking"`
}

// Orchestrator drives the three pipeline phases in order. Cycles are
// strictly single-flight: a manual trigger while a scheduled cycle runs
// is rejected, never queued.
type Orchestrator struct {
	acceptance AcceptanceReconciler
	shipping   ShippingManager
	tracking   TrackingSynchronizer
	clk        clock.Clock

	// retries bounds acceptance passes per cycle.
	retries int
	// interval is the pause between scheduled cycles.
	interval time.Duration

	runMu    sync.Mutex
	reportMu sync.RWMutex
	last     *CycleReport
}

// NewOrchestrator creates a new pipeline Orchestrator.
func NewOrchestrator(acceptance AcceptanceReconciler, shipping ShippingManager, tracking TrackingSynchronizer, clk clock.Clock, retries int, interval time.Duration) *Orchestrator {
	if retries < 1 {
		retries = 1
	}
	return &Orchestrator{
		acceptance: acceptance,
		shipping:   shipping,
		tracking:   tracking,
		clk:        clk,
		retries:    retries,
		interval:   interval,
	}
}

// Run executes cycles on the configured interval until the context is
// cancelled. The first cycle starts immediately.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if _, err := o.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleRunning) {
			logger.Get().Error("Pipeline cycle failed", zap.Error(err))
		}

		if err := o.clk.Sleep(ctx, o.interval); err != nil {
			return err
		}
	}
}

// RunCycle executes one full acceptance, shipping, tracking cycle and
// retains the report. Phase failures are recorded in the report, not
// returned; the only error is ErrCycleRunning or a cancelled context.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !o.runMu.TryLock() {
		return nil, ErrCycleRunning
	}
	defer o.runMu.Unlock()

	return o.runCycleLocked(ctx)
}

// TriggerCycle starts a cycle in the background, for the ops API. The
// cycle runs under ctx, which must outlive the triggering request;
// callers pass the application context so shutdown cancels in-flight
// cycles.
func (o *Orchestrator) TriggerCycle(ctx context.Context) error {
	if !o.runMu.TryLock() {
		return ErrCycleRunning
	}

	go func() {
		defer o.runMu.Unlock()
		if _, err := o.runCycleLocked(ctx); err != nil {
			logger.Get().Error("Triggered pipeline cycle failed", zap.Error(err))
		}
	}()
	return nil
}

// Reprocess voids and reissues an order's shipping label outside the
// regular cycle.
func (o *Orchestrator) Reprocess(ctx context.Context, orderID string) error {
	return o.shipping.Reprocess(ctx, orderID)
}

// LastReport returns the most recent cycle report, or nil before the
// first cycle completes.
func (o *Orchestrator) LastReport() *CycleReport {
	o.reportMu.RLock()
	defer o.reportMu.RUnlock()
	if o.last == nil {
		return nil
	}
	report := *o.last
	return &report
}

func (o *Orchestrator) runCycleLocked(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: o.clk.Now(),
	}
	log := logger.Get().With(zap.String("cycle_id", report.CycleID))
	log.Info("Pipeline cycle starting")

	report.Acceptance = o.runAcceptance(ctx, log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.Shipping = runPhase(ctx, log, "shipping", o.shipping.ProcessPending)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.Tracking = runPhase(ctx, log, "tracking", o.tracking.Run)

	report.FinishedAt = o.clk.Now()
	log.Info("Pipeline cycle finished",
		zap.String("acceptance", report.Acceptance.Outcome),
		zap.String("shipping", report.Shipping.Outcome),
		zap.String("tracking", report.Tracking.Outcome),
	)

	o.reportMu.Lock()
	o.last = report
	o.reportMu.Unlock()

	return report, ctx.Err()
}

// runAcceptance drives the reconcile passes. Only NEW_ORDERS_FOUND is
// worth another pass; everything else is terminal for the cycle.
func (o *Orchestrator) runAcceptance(ctx context.Context, log *zap.Logger) PhaseReport {
	report := PhaseReport{}
	for attempt := 1; attempt <= o.retries; attempt++ {
		report.Attempts = attempt

		outcome, err := o.acceptance.Reconcile(ctx)
		if err != nil {
			report.Error = err.Error()
			report.Outcome = "FAILED"
			log.Error("Acceptance phase aborted",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return report
		}

		report.Outcome = string(outcome)
		log.Info("Acceptance pass finished",
			zap.Int("attempt", attempt),
			zap.String("outcome", string(outcome)),
		)
		if !outcome.Retryable() {
			return report
		}
	}
	return report
}

// runPhase wraps a phase call into a report.
func runPhase(ctx context.Context, log *zap.Logger, name string, fn func(context.Context) error) PhaseReport {
	if err := fn(ctx); err != nil {
		log.Error("Phase aborted",
			zap.String("phase", name),
			zap.Error(err),
		)
		return PhaseReport{Outcome: "FAILED", Error: err.Error(), Attempts: 1}
	}
	return PhaseReport{Outcome: "SUCCESS", Attempts: 1}
}
