// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"finledger/internal/money"
)

var (
	LedgerDeltas = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finledger_ledger_deltas_total",
		Help: "Balance deltas applied to accounts, by direction.",
	}, []string{"direction"})

	InvestmentOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finledger_investment_operations_total",
		Help: "Investment operations recorded, by type.",
	}, []string{"type"})

	FinancingPayments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finledger_financing_payments_total",
		Help: "Financing payments registered.",
	})

	ReconciliationDrift = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finledger_reconciliation_drift_total",
		Help: "Stored derived values found to differ from their recomputation, by resource.",
	}, []string{"resource"})

	ReconciliationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finledger_reconciliation_runs_total",
		Help: "Reconciliation sweeps executed, by result.",
	}, []string{"result"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finledger_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveDelta counts a ledger delta under its direction label.
func ObserveDelta(delta money.Money) {
	direction := "zero"
	switch {
	case delta.IsPositive():
		direction = "credit"
	case delta.IsNegative():
		direction = "debit"
	}
	LedgerDeltas.WithLabelValues(direction).Inc()
}

// Middleware records request latency by matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
