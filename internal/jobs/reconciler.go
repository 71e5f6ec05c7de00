// Package jobs runs background maintenance on a cron schedule.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"finledger/internal/logger"
	"finledger/internal/metrics"
	"finledger/internal/services"
)

// Report is the outcome of one reconciliation sweep.
type Report struct {
	StartedAt           time.Time               `json:"started_at"`
	Duration            time.Duration           `json:"duration_ns"`
	AccountDrifts       []services.BalanceDrift `json:"account_drifts"`
	FinancingsCorrected int                     `json:"financings_corrected"`
}

// Reconciler recomputes derived balances from their sources of truth:
// account balances from transactions and financing outstanding balances
// from payments. Account drift is reported only; financing balances are
// corrected in place.
type Reconciler struct {
	accounts   services.AccountServicer
	financings services.FinancingServicer

	mu   sync.Mutex
	cron *cron.Cron
}

// NewReconciler creates a Reconciler over the given services.
func NewReconciler(accounts services.AccountServicer, financings services.FinancingServicer) *Reconciler {
	return &Reconciler{accounts: accounts, financings: financings}
}

// Run performs one sweep. Sweeps never overlap.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := logger.For("reconciler")
	report := &Report{StartedAt: time.Now(), AccountDrifts: []services.BalanceDrift{}}

	corrected, err := r.financings.SyncOutstandingBalances()
	if err != nil {
		metrics.ReconciliationRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	report.FinancingsCorrected = corrected

	if err := ctx.Err(); err != nil {
		metrics.ReconciliationRuns.WithLabelValues("canceled").Inc()
		return nil, err
	}

	drifts, err := r.accounts.VerifyBalances()
	if err != nil {
		metrics.ReconciliationRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	for _, d := range drifts {
		metrics.ReconciliationDrift.WithLabelValues("account").Inc()
		log.Errorw("account balance invariant violated",
			"kind", "InvariantViolation",
			"account_id", d.AccountID,
			"stored", d.Stored.String(),
			"computed", d.Computed.String(),
		)
	}
	report.AccountDrifts = append(report.AccountDrifts, drifts...)
	report.Duration = time.Since(report.StartedAt)

	metrics.ReconciliationRuns.WithLabelValues("ok").Inc()
	log.Infow("reconciliation finished",
		"financings_corrected", corrected,
		"account_drifts", len(drifts),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// Start schedules Run on expr, a standard five-field cron expression or a
// descriptor such as "@daily".
func (r *Reconciler) Start(expr string) error {
	c := cron.New()
	if _, err := c.AddFunc(expr, func() {
		if _, err := r.Run(context.Background()); err != nil {
			logger.For("reconciler").Errorw("scheduled reconciliation failed", "error", err)
		}
	}); err != nil {
		return err
	}
	c.Start()
	r.cron = c
	logger.For("reconciler").Infow("reconciliation scheduled", "expr", expr)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
