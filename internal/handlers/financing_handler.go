package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"finledger/internal/amortization"
	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/money"
	"finledger/internal/pagination"
	"finledger/internal/services"
)

// FinancingHandler handles financing contracts and their payments.
type FinancingHandler struct {
	financingService services.FinancingServicer
	auditService     services.AuditServicer
}

// NewFinancingHandler creates a new FinancingHandler.
func NewFinancingHandler(financingService services.FinancingServicer, auditService services.AuditServicer) *FinancingHandler {
	return &FinancingHandler{financingService: financingService, auditService: auditService}
}

// FinancingTermsRequest holds the terms shared by contract creation and
// simulation. InterestRate is read according to RateBasis; RateInPercent
// means 1.5 stands for 1.5%.
type FinancingTermsRequest struct {
	Principal     money.Money     `json:"principal" binding:"required,gt=0" swaggertype:"string"`
	InterestRate  decimal.Decimal `json:"interest_rate" swaggertype:"string"`
	RateBasis     string          `json:"rate_basis" binding:"omitempty,rate_basis"`
	RateInPercent bool            `json:"rate_in_percent"`
	TermMonths    int             `json:"term_months" binding:"required,min=1,max=600"`
	Method        string          `json:"amortization_method" binding:"required,amortization_method"`
	StartDate     *string         `json:"start_date"`
}

// CreateFinancingRequest represents the request payload for a new contract.
type CreateFinancingRequest struct {
	FinancingTermsRequest
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Creditor string `json:"creditor" binding:"max=100"`
}

// RegisterPaymentRequest represents a payment. When both portions are
// omitted the split is derived from the outstanding balance.
type RegisterPaymentRequest struct {
	AccountID         string       `json:"account_id" binding:"required,uuid"`
	InstallmentNumber int          `json:"installment_number" binding:"omitempty,min=1"`
	Amount            money.Money  `json:"payment_amount" binding:"required,gt=0" swaggertype:"string"`
	PrincipalPortion  *money.Money `json:"principal_portion" swaggertype:"string"`
	InterestPortion   *money.Money `json:"interest_portion" swaggertype:"string"`
	PaymentDate       *string      `json:"payment_date"`
	Notes             string       `json:"notes" binding:"max=500"`
}

// params converts the request into amortization parameters with a monthly rate.
func (r FinancingTermsRequest) params() (amortization.Params, error) {
	method, err := amortization.ParseMethod(r.Method)
	if err != nil {
		return amortization.Params{}, err
	}
	start, err := optionalTime(r.StartDate)
	if err != nil {
		return amortization.Params{}, err
	}
	return amortization.Params{
		Principal:  r.Principal,
		Rate:       periodicRate(r.InterestRate, r.RateBasis, r.RateInPercent),
		TermMonths: r.TermMonths,
		Method:     method,
		StartDate:  start,
	}, nil
}

func periodicRate(rate decimal.Decimal, basis string, inPercent bool) decimal.Decimal {
	if inPercent {
		rate = money.Percent(rate)
	}
	switch basis {
	case "nominal_annual":
		return money.NominalMonthlyRate(rate)
	case "effective_annual":
		return money.EffectiveMonthlyRate(rate)
	}
	return rate
}

// CreateFinancing handles the creation of a financing contract
// @Summary     Create a financing contract
// @Description Register a loan or financing. The outstanding balance starts at the principal.
// @Tags        financings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateFinancingRequest true "Contract terms"
// @Success     201 {object} models.FinancingContract "Contract created"
// @Failure     400 {object} ErrorResponse "Invalid input or unsupported method"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /financings [post]
func (h *FinancingHandler) CreateFinancing(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateFinancingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	params, err := req.params()
	if err != nil {
		respondWithError(c, err)
		return
	}

	contract, err := h.financingService.CreateFinancing(userID, services.FinancingInput{
		Name:         req.Name,
		Creditor:     req.Creditor,
		Principal:    params.Principal,
		PeriodicRate: params.Rate,
		TermMonths:   params.TermMonths,
		Method:       params.Method,
		StartDate:    params.StartDate,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_FINANCING", models.AuditResourceFinancing, contract.ID, c.ClientIP(),
		map[string]interface{}{
			"principal": contract.Principal.String(),
			"rate":      contract.PeriodicRate.String(),
			"term":      contract.TermMonths,
			"method":    contract.Method,
		})

	c.JSON(http.StatusCreated, gin.H{"financing": contract})
}

// ListFinancings lists the user's contracts
// @Summary     List financing contracts
// @Tags        financings
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.FinancingContract] "Paginated contracts"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /financings [get]
func (h *FinancingHandler) ListFinancings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.financingService.ListFinancings(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetFinancing returns one contract
// @Summary     Get financing contract
// @Tags        financings
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Financing ID"
// @Success     200 {object} models.FinancingContract "Contract"
// @Failure     400 {object} ErrorResponse "Invalid financing ID"
// @Failure     404 {object} ErrorResponse "Financing not found"
// @Router      /financings/{id} [get]
func (h *FinancingHandler) GetFinancing(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	financingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	contract, err := h.financingService.GetFinancing(userID, financingID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"financing": contract})
}

// GetSchedule returns the theoretical schedule of a contract
// @Summary     Amortization schedule
// @Description Generate the SAC or Price schedule of a contract with due dates
// @Tags        financings
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Financing ID"
// @Success     200 {object} amortization.Schedule "Schedule"
// @Failure     404 {object} ErrorResponse "Financing not found"
// @Router      /financings/{id}/schedule [get]
func (h *FinancingHandler) GetSchedule(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	financingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	schedule, err := h.financingService.GetSchedule(userID, financingID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, schedule)
}

// SimulateSchedule generates a schedule without storing anything
// @Summary     Simulate a schedule
// @Tags        financings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body FinancingTermsRequest true "Terms"
// @Success     200 {object} amortization.Schedule "Schedule"
// @Failure     400 {object} ErrorResponse "Invalid input or unsupported method"
// @Router      /financings/simulate [post]
func (h *FinancingHandler) SimulateSchedule(c *gin.Context) {
	var req FinancingTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	params, err := req.params()
	if err != nil {
		respondWithError(c, err)
		return
	}

	schedule, err := h.financingService.SimulateSchedule(params)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, schedule)
}

// RegisterPayment records a payment against a contract
// @Summary     Register a payment
// @Description Record a payment. The expense transaction on the paying account and the balance reduction commit together. Only the principal portion reduces the outstanding balance.
// @Tags        financings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                 true "Financing ID"
// @Param       request body RegisterPaymentRequest true "Payment details"
// @Success     201 {object} services.PaymentResult "Payment registered"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Financing or account not found"
// @Failure     422 {object} ErrorResponse "Payment exceeds the outstanding balance"
// @Router      /financings/{id}/payments [post]
func (h *FinancingHandler) RegisterPayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	financingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	paymentDate, err := optionalTime(req.PaymentDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.financingService.RegisterPayment(userID, financingID, services.PaymentInput{
		AccountID:         req.AccountID,
		InstallmentNumber: req.InstallmentNumber,
		Amount:            req.Amount,
		PrincipalPortion:  req.PrincipalPortion,
		InterestPortion:   req.InterestPortion,
		PaymentDate:       paymentDate,
		Notes:             req.Notes,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REGISTER_PAYMENT", models.AuditResourceFinancingPayment, result.Payment.ID, c.ClientIP(),
		map[string]interface{}{
			"financing_id": financingID,
			"amount":       result.Payment.Amount.String(),
			"principal":    result.Payment.PrincipalPortion.String(),
			"interest":     result.Payment.InterestPortion.String(),
		})

	c.JSON(http.StatusCreated, result)
}

// GetPayments lists the payments of a contract
// @Summary     List payments
// @Tags        financings
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Financing ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.FinancingPayment] "Paginated payments"
// @Failure     404 {object} ErrorResponse "Financing not found"
// @Router      /financings/{id}/payments [get]
func (h *FinancingHandler) GetPayments(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	financingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.financingService.GetPayments(userID, financingID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// DeletePayment removes a payment and reverses its transaction
// @Summary     Delete a payment
// @Tags        financings
// @Produce     json
// @Security    BearerAuth
// @Param       id         path string true "Financing ID"
// @Param       payment_id path string true "Payment ID"
// @Success     200 {object} MessageResponse "Payment deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     404 {object} ErrorResponse "Financing or payment not found"
// @Router      /financings/{id}/payments/{payment_id} [delete]
func (h *FinancingHandler) DeletePayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	financingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	paymentID, err := parsePathID(c, "payment_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.financingService.DeletePayment(userID, financingID, paymentID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_PAYMENT", models.AuditResourceFinancingPayment, paymentID, c.ClientIP(),
		map[string]interface{}{"financing_id": financingID})

	c.JSON(http.StatusOK, gin.H{"message": "Payment deleted successfully"})
}

// Reconcile compares real payments with the schedule
// @Summary     Reconcile a contract
// @Description Recompute the outstanding balance from payments and compare it with the balance the schedule expects by as_of
// @Tags        financings
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true  "Financing ID"
// @Param       as_of query string false "Reference date (RFC3339 or YYYY-MM-DD, default now)"
// @Success     200 {object} amortization.Progress "Reconciliation"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Financing not found"
// @Router      /financings/{id}/reconciliation [get]
func (h *FinancingHandler) Reconcile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	financingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	asOf := time.Now()
	if v := c.Query("as_of"); v != "" {
		if asOf, err = parseFlexibleTime(v); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	progress, err := h.financingService.Reconcile(userID, financingID, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}
