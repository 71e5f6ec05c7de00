package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/money"
	"finledger/internal/pagination"
	"finledger/internal/services"
)

// InvestmentHandler handles investment operations and positions.
type InvestmentHandler struct {
	investmentService services.InvestmentServicer
	auditService      services.AuditServicer
}

// NewInvestmentHandler creates a new InvestmentHandler.
func NewInvestmentHandler(investmentService services.InvestmentServicer, auditService services.AuditServicer) *InvestmentHandler {
	return &InvestmentHandler{investmentService: investmentService, auditService: auditService}
}

// RecordOperationRequest represents a buy or sell.
type RecordOperationRequest struct {
	AccountID     string               `json:"account_id" binding:"required,uuid"`
	AssetName     string               `json:"asset_name" binding:"required,max=50"`
	OperationType models.OperationType `json:"operation_type" binding:"required,operation_type"`
	Quantity      money.Quantity       `json:"quantity" binding:"required,gt=0" swaggertype:"string"`
	UnitPrice     money.Money          `json:"unit_price" binding:"required,gt=0" swaggertype:"string"`
	Broker        string               `json:"broker" binding:"max=100"`
	Notes         string               `json:"notes" binding:"max=500"`
	ExecutedAt    *string              `json:"executed_at"`
}

// RecordOperation handles a buy or sell of an asset
// @Summary     Record investment operation
// @Description Record a buy or sell. The paired account transaction and the position update commit together.
// @Tags        investments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body RecordOperationRequest true "Operation details"
// @Success     201 {object} services.OperationResult "Operation recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account or position not found"
// @Failure     422 {object} ErrorResponse "Insufficient quantity"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /investments/operations [post]
func (h *InvestmentHandler) RecordOperation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RecordOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	executedAt, err := optionalTime(req.ExecutedAt)
	if err != nil {
		respondWithError(c, err)
		return
	}

	input := services.OperationInput{
		AccountID:  req.AccountID,
		AssetName:  req.AssetName,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		Broker:     req.Broker,
		Notes:      req.Notes,
		ExecutedAt: executedAt,
	}

	var result *services.OperationResult
	if req.OperationType == models.OperationTypeSell {
		result, err = h.investmentService.Sell(userID, input)
	} else {
		result, err = h.investmentService.Buy(userID, input)
	}
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "INVESTMENT_"+strings.ToUpper(string(result.Operation.Type)), models.AuditResourceInvestmentOperation, result.Operation.ID, c.ClientIP(),
		map[string]interface{}{
			"asset":      result.Operation.AssetName,
			"quantity":   req.Quantity.String(),
			"unit_price": req.UnitPrice.String(),
		})

	c.JSON(http.StatusCreated, result)
}

// ListOperations lists investment operations
// @Summary     List investment operations
// @Description Get a paginated list of operations, newest first, optionally for one asset
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       asset     query string false "Asset name"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.InvestmentOperation] "Paginated operations"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /investments/operations [get]
func (h *InvestmentHandler) ListOperations(c *gin.Context) {
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

	result, err := h.investmentService.ListOperations(userID, c.Query("asset"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOperation returns a single operation
// @Summary     Get investment operation
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Operation ID"
// @Success     200 {object} models.InvestmentOperation "Operation"
// @Failure     400 {object} ErrorResponse "Invalid operation ID"
// @Failure     404 {object} ErrorResponse "Operation not found"
// @Router      /investments/operations/{id} [get]
func (h *InvestmentHandler) GetOperation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	operationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	operation, err := h.investmentService.GetOperation(userID, operationID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"operation": operation})
}

// DeleteOperation removes an operation and its account transaction
// @Summary     Delete investment operation
// @Description Delete an operation, reverse its account transaction and refold the position. Fails if the remaining history would sell more than it holds.
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Operation ID"
// @Success     200 {object} MessageResponse "Operation deleted"
// @Failure     400 {object} ErrorResponse "Invalid operation ID"
// @Failure     404 {object} ErrorResponse "Operation not found"
// @Failure     422 {object} ErrorResponse "Remaining history oversells"
// @Router      /investments/operations/{id} [delete]
func (h *InvestmentHandler) DeleteOperation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	operationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.investmentService.DeleteOperation(userID, operationID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_INVESTMENT_OPERATION", models.AuditResourceInvestmentOperation, operationID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Operation deleted successfully"})
}

// ListPositions lists the user's positions
// @Summary     List positions
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       include_closed query bool false "Include positions with zero quantity"
// @Success     200 {array}  models.InvestmentPosition "Positions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /investments/positions [get]
func (h *InvestmentHandler) ListPositions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	includeClosed := false
	if v := c.Query("include_closed"); v != "" {
		includeClosed, err = strconv.ParseBool(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid include_closed"))
			return
		}
	}

	positions, err := h.investmentService.ListPositions(userID, includeClosed)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

// GetPosition returns the position for one asset
// @Summary     Get position
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       asset path string true "Asset name"
// @Success     200 {object} models.InvestmentPosition "Position"
// @Failure     404 {object} ErrorResponse "Position not found"
// @Router      /investments/positions/{asset} [get]
func (h *InvestmentHandler) GetPosition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	pos, err := h.investmentService.GetPosition(userID, c.Param("asset"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"position": pos})
}

// RebuildPosition refolds a position from its operation history
// @Summary     Rebuild position
// @Description Recompute quantity and average cost from the full operation history and persist the result
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       asset path string true "Asset name"
// @Success     200 {object} models.InvestmentPosition "Rebuilt position"
// @Failure     404 {object} ErrorResponse "Position not found"
// @Router      /investments/positions/{asset}/rebuild [post]
func (h *InvestmentHandler) RebuildPosition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	pos, err := h.investmentService.RebuildPosition(userID, c.Param("asset"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REBUILD_POSITION", models.AuditResourceInvestmentPosition, pos.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"position": pos})
}

// GetMarketValue values a position at a given price
// @Summary     Position market value
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       asset path  string true "Asset name"
// @Param       price query string true "Market price per unit (decimal)"
// @Success     200 {object} services.PositionValuation "Valuation"
// @Failure     400 {object} ErrorResponse "Invalid price"
// @Failure     404 {object} ErrorResponse "Position not found"
// @Router      /investments/positions/{asset}/value [get]
func (h *InvestmentHandler) GetMarketValue(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	price, err := queryMoney(c, "price")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if price == nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "price is required"))
		return
	}

	valuation, err := h.investmentService.MarketValue(userID, c.Param("asset"), *price)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, valuation)
}
