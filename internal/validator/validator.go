// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"finledger/internal/amortization"
	"finledger/internal/models"
	"finledger/internal/money"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("iso4217", validateISO4217)
		_ = v.RegisterValidation("transaction_type", validateTransactionType)
		_ = v.RegisterValidation("account_type", validateAccountType)
		_ = v.RegisterValidation("operation_type", validateOperationType)
		_ = v.RegisterValidation("amortization_method", validateAmortizationMethod)
		_ = v.RegisterValidation("rate_basis", validateRateBasis)
	}
}

func validateISO4217(fl validator.FieldLevel) bool {
	return money.IsCurrency(fl.Field().String())
}

func validateTransactionType(fl validator.FieldLevel) bool {
	return models.IsValidTransactionType(models.TransactionType(fl.Field().String()))
}

func validateAccountType(fl validator.FieldLevel) bool {
	return models.IsValidAccountType(models.AccountType(fl.Field().String()))
}

func validateOperationType(fl validator.FieldLevel) bool {
	switch models.OperationType(fl.Field().String()) {
	case models.OperationTypeBuy, models.OperationTypeSell:
		return true
	}
	return false
}

func validateAmortizationMethod(fl validator.FieldLevel) bool {
	_, err := amortization.ParseMethod(fl.Field().String())
	return err == nil
}

func validateRateBasis(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "periodic", "nominal_annual", "effective_annual":
		return true
	}
	return false
}
