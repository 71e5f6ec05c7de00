package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"finledger/internal/jobs"
)

// ReconcileRunner runs one reconciliation sweep.
type ReconcileRunner interface {
	Run(ctx context.Context) (*jobs.Report, error)
}

// AdminHandler exposes operator-only maintenance endpoints.
type AdminHandler struct {
	reconciler ReconcileRunner
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reconciler ReconcileRunner) *AdminHandler {
	return &AdminHandler{reconciler: reconciler}
}

// RunReconciliation triggers a reconciliation sweep outside the cron schedule
// @Summary     Run reconciliation
// @Description Recompute financing outstanding balances from payments and verify every account balance against its transactions
// @Tags        admin
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} jobs.Report "Sweep report"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /admin/reconcile [post]
func (h *AdminHandler) RunReconciliation(c *gin.Context) {
	report, err := h.reconciler.Run(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}
