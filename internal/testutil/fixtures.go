package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"finledger/internal/amortization"
	"finledger/internal/models"
	"finledger/internal/money"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCashAccount creates a cash account with zero balance.
func CreateTestCashAccount(t *testing.T, db *gorm.DB, userID string) *models.Account {
	t.Helper()
	return CreateTestAccount(t, db, userID, models.AccountTypeCash)
}

// CreateTestAccount creates an empty account of the given type.
func CreateTestAccount(t *testing.T, db *gorm.DB, userID string, accountType models.AccountType) *models.Account {
	t.Helper()

	account := &models.Account{
		UserID:   userID,
		Name:     fmt.Sprintf("Test Account %d", nextID()),
		Type:     accountType,
		Currency: "BRL",
		IsActive: true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestCashAccountWithBalance creates a cash account funded by a single
// income transaction, so its balance agrees with its transactions.
func CreateTestCashAccountWithBalance(t *testing.T, db *gorm.DB, userID string, balance money.Money) *models.Account {
	t.Helper()

	account := CreateTestCashAccount(t, db, userID)
	if balance.IsZero() {
		return account
	}
	CreateTestTransaction(t, db, userID, account.ID, models.TransactionTypeIncome, balance)
	if err := db.Model(account).UpdateColumn("balance", balance.Cents()).Error; err != nil {
		t.Fatalf("failed to fund test account: %v", err)
	}
	account.Balance = balance
	return account
}

// CreateTestTransaction inserts a transaction row without touching the
// account balance.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, accountID string, txType models.TransactionType, amount money.Money) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:    userID,
		AccountID: accountID,
		Type:      txType,
		Amount:    amount,
		Date:      time.Now(),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestFinancing creates a SAC contract of 12000.00 at 1% a month over
// 12 months starting on 2024-01-15.
func CreateTestFinancing(t *testing.T, db *gorm.DB, userID string) *models.FinancingContract {
	t.Helper()

	principal := money.MustParse("12000.00")
	contract := &models.FinancingContract{
		UserID:         userID,
		Name:           fmt.Sprintf("Test Financing %d", nextID()),
		Principal:      principal,
		PeriodicRate:   decimal.RequireFromString("0.01"),
		TermMonths:     12,
		Method:         amortization.MethodSAC,
		StartDate:      time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		CurrentBalance: principal,
	}
	if err := db.Create(contract).Error; err != nil {
		t.Fatalf("failed to create test financing: %v", err)
	}
	return contract
}

// AccountBalance reloads the stored balance of an account.
func AccountBalance(t *testing.T, db *gorm.DB, accountID string) money.Money {
	t.Helper()

	var account models.Account
	if err := db.Where("id = ?", accountID).First(&account).Error; err != nil {
		t.Fatalf("failed to reload account %s: %v", accountID, err)
	}
	return account.Balance
}

// LedgerBalance sums the signed amounts of the live transactions of an account.
func LedgerBalance(t *testing.T, db *gorm.DB, accountID string) money.Money {
	t.Helper()

	var txs []models.Transaction
	if err := db.Where("account_id = ?", accountID).Find(&txs).Error; err != nil {
		t.Fatalf("failed to load transactions of %s: %v", accountID, err)
	}
	var sum money.Money
	for i := range txs {
		sum += txs[i].SignedAmount()
	}
	return sum
}

// AssertBalanceInvariant checks that the stored balance of an account equals
// the sum of its transactions.
func AssertBalanceInvariant(t *testing.T, db *gorm.DB, accountID string) {
	t.Helper()

	stored := AccountBalance(t, db, accountID)
	ledger := LedgerBalance(t, db, accountID)
	if stored != ledger {
		t.Errorf("account %s: stored balance %s != ledger balance %s", accountID, stored, ledger)
	}
}
