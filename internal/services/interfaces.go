package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finledger/internal/amortization"
	"finledger/internal/models"
	"finledger/internal/money"
	"finledger/internal/pagination"
	"finledger/internal/position"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	RecordLogin(userID string) error
}

// LedgerWriter is the only component allowed to mutate account balances.
// ApplyDelta must run inside the caller's unit of work.
type LedgerWriter interface {
	ApplyDelta(tx *gorm.DB, accountID string, delta money.Money) error
}

// AccountInput holds the fields for creating an account.
type AccountInput struct {
	Name           string
	Type           models.AccountType
	Description    string
	Currency       string
	Broker         string
	AccountNumber  string
	InitialBalance money.Money
}

// AccountUpdateFields holds the optional fields for updating an account.
// Balance is deliberately absent.
type AccountUpdateFields struct {
	Name          *string
	Description   *string
	Broker        *string
	AccountNumber *string
}

// BalanceDrift reports an account whose stored balance differs from the
// sum of its transactions.
type BalanceDrift struct {
	AccountID string      `json:"account_id"`
	Stored    money.Money `json:"stored"`
	Computed  money.Money `json:"computed"`
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	LedgerWriter
	CreateAccount(userID string, input AccountInput) (*models.Account, error)
	GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(userID, accountID string) (*models.Account, error)
	UpdateAccount(userID, accountID string, fields AccountUpdateFields) (*models.Account, error)
	LockAccount(tx *gorm.DB, userID, accountID string) (*models.Account, error)
	RecomputeBalance(userID, accountID string) (money.Money, error)
	VerifyBalances() ([]BalanceDrift, error)
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate  *time.Time
	ToDate    *time.Time
	Type      *models.TransactionType
	MinAmount *money.Money
	MaxAmount *money.Money
	AccountID *string
}

// TransactionUpdateFields holds the optional fields for updating a
// transaction. Any combination may change, including the account.
type TransactionUpdateFields struct {
	AccountID   *string
	Type        *models.TransactionType
	Amount      *money.Money
	Description *string
	Date        *time.Time
}

// TransactionServicer defines the contract for the transaction lifecycle.
// Every create, update and delete applies the matching ledger deltas in the
// same unit of work.
type TransactionServicer interface {
	CreateTransaction(userID, accountID string, transactionType models.TransactionType, amount money.Money, description string, date time.Time) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID string, fields TransactionUpdateFields) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)

	// CreateInTx and DeleteInTx run inside a unit of work owned by another
	// service, for transactions that are a leg of a larger operation.
	CreateInTx(tx *gorm.DB, transaction *models.Transaction) error
	DeleteInTx(tx *gorm.DB, transaction *models.Transaction) error
}

// OperationInput holds the fields of a buy or sell.
type OperationInput struct {
	AccountID  string
	AssetName  string
	Quantity   money.Quantity
	UnitPrice  money.Money
	Broker     string
	Notes      string
	ExecutedAt time.Time
}

// OperationResult is everything a buy or sell wrote.
type OperationResult struct {
	Operation   *models.InvestmentOperation `json:"operation"`
	Transaction *models.Transaction         `json:"transaction"`
	Position    *models.InvestmentPosition  `json:"position"`
}

// PositionValuation values a position at an external market price.
type PositionValuation struct {
	Position *models.InvestmentPosition `json:"position"`
	position.MarketValue
}

// InvestmentServicer defines the contract for the investment position engine.
type InvestmentServicer interface {
	Buy(userID string, input OperationInput) (*OperationResult, error)
	Sell(userID string, input OperationInput) (*OperationResult, error)
	GetPosition(userID, assetName string) (*models.InvestmentPosition, error)
	ListPositions(userID string, includeClosed bool) ([]models.InvestmentPosition, error)
	RebuildPosition(userID, assetName string) (*models.InvestmentPosition, error)
	GetOperation(userID, operationID string) (*models.InvestmentOperation, error)
	ListOperations(userID, assetName string, page pagination.PageRequest) (*pagination.PageResponse[models.InvestmentOperation], error)
	DeleteOperation(userID, operationID string) error
	MarketValue(userID, assetName string, price money.Money) (*PositionValuation, error)
}

// FinancingInput holds the terms of a new financing contract.
type FinancingInput struct {
	Name         string
	Creditor     string
	Principal    money.Money
	PeriodicRate decimal.Decimal
	TermMonths   int
	Method       amortization.Method
	StartDate    time.Time
}

// PaymentInput holds a payment to register. When both portions are nil the
// interest portion is derived from the outstanding balance and the rate.
type PaymentInput struct {
	AccountID         string
	InstallmentNumber int
	Amount            money.Money
	PrincipalPortion  *money.Money
	InterestPortion   *money.Money
	PaymentDate       time.Time
	Notes             string
}

// PaymentResult is everything a payment registration wrote.
type PaymentResult struct {
	Payment     *models.FinancingPayment  `json:"payment"`
	Transaction *models.Transaction       `json:"transaction"`
	Financing   *models.FinancingContract `json:"financing"`
}

// FinancingServicer defines the contract for financing contracts.
type FinancingServicer interface {
	CreateFinancing(userID string, input FinancingInput) (*models.FinancingContract, error)
	GetFinancing(userID, financingID string) (*models.FinancingContract, error)
	ListFinancings(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.FinancingContract], error)
	GetSchedule(userID, financingID string) (*amortization.Schedule, error)
	SimulateSchedule(params amortization.Params) (*amortization.Schedule, error)
	RegisterPayment(userID, financingID string, input PaymentInput) (*PaymentResult, error)
	DeletePayment(userID, financingID, paymentID string) error
	GetPayments(userID, financingID string, page pagination.PageRequest) (*pagination.PageResponse[models.FinancingPayment], error)
	Reconcile(userID, financingID string, asOf time.Time) (*amortization.Progress, error)
	SyncOutstandingBalances() (int, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action string, resource models.AuditResource, resourceID, ipAddress string, changes map[string]any)
}
