package jobs

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"finledger/internal/logger"
	"finledger/internal/models"
	"finledger/internal/money"
	"finledger/internal/services"
	"finledger/internal/testutil"
)

func TestReconcilerRun(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	acctSvc := services.NewAccountService(db, "BRL")
	txSvc := services.NewTransactionService(db, acctSvc)
	finSvc := services.NewFinancingService(db, acctSvc, txSvc)
	r := NewReconciler(acctSvc, finSvc)

	user := testutil.CreateTestUser(t, db)
	account := testutil.CreateTestCashAccountWithBalance(t, db, user.ID, money.MustParse("5000.00"))
	contract := testutil.CreateTestFinancing(t, db, user.ID)

	_, err := finSvc.RegisterPayment(user.ID, contract.ID, services.PaymentInput{
		AccountID:   account.ID,
		Amount:      money.MustParse("1120.00"),
		PaymentDate: time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC),
	})
	testutil.AssertNoError(t, err)

	t.Run("clean", func(t *testing.T) {
		report, err := r.Run(context.Background())
		testutil.AssertNoError(t, err)
		if report.FinancingsCorrected != 0 || len(report.AccountDrifts) != 0 {
			t.Errorf("expected a clean sweep, got %+v", report)
		}
	})

	t.Run("drift", func(t *testing.T) {
		db.Model(&models.FinancingContract{}).Where("id = ?", contract.ID).UpdateColumn("current_balance", 0)
		db.Model(&models.Account{}).Where("id = ?", account.ID).UpdateColumn("balance", 0)

		core, logs := observer.New(zapcore.ErrorLevel)
		restore := logger.Replace(zap.New(core).Sugar())
		defer restore()

		report, err := r.Run(context.Background())
		testutil.AssertNoError(t, err)
		if report.FinancingsCorrected != 1 {
			t.Errorf("expected 1 financing corrected, got %d", report.FinancingsCorrected)
		}
		if len(report.AccountDrifts) != 1 || report.AccountDrifts[0].AccountID != account.ID {
			t.Fatalf("expected drift on %s, got %+v", account.ID, report.AccountDrifts)
		}
		testutil.AssertMoney(t, report.AccountDrifts[0].Computed, "3880.00")

		violations := logs.FilterMessage("account balance invariant violated").All()
		if len(violations) != 1 {
			t.Fatalf("expected 1 invariant violation logged, got %d", len(violations))
		}
		if f := violations[0].ContextMap(); f["kind"] != "InvariantViolation" || f["account_id"] != account.ID {
			t.Errorf("unexpected log fields: %v", f)
		}

		stored, err := finSvc.GetFinancing(user.ID, contract.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertMoney(t, stored.CurrentBalance, "11000.00")
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := r.Run(ctx); err == nil {
			t.Error("expected canceled context to abort the sweep")
		}
	})
}

func TestReconcilerStart(t *testing.T) {
	r := NewReconciler(nil, nil)

	if err := r.Start("not a cron expression"); err == nil {
		t.Error("expected invalid expression to be rejected")
	}
	if err := r.Start("@every 1h"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Stop()
}
