package models

import (
	"testing"
)

func TestBaseBeforeCreate(t *testing.T) {
	var fresh Base
	if err := fresh.BeforeCreate(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fresh.ID) != 36 {
		t.Errorf("expected a generated UUID, got %q", fresh.ID)
	}

	preset := Base{ID: "0190F1B2-3C4D-7E5F-8A9B-0C1D2E3F4A5B"}
	if err := preset.BeforeCreate(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if preset.ID != "0190f1b2-3c4d-7e5f-8a9b-0c1d2e3f4a5b" {
		t.Errorf("expected normalized id, got %s", preset.ID)
	}

	bad := Base{ID: "account-1"}
	if err := bad.BeforeCreate(nil); err == nil {
		t.Error("expected malformed id to be rejected")
	}
}

func TestTransactionSignedAmount(t *testing.T) {
	income := Transaction{Type: TransactionTypeIncome, Amount: 1050}
	expense := Transaction{Type: TransactionTypeExpense, Amount: 1050}
	if income.SignedAmount() != 1050 || expense.SignedAmount() != -1050 {
		t.Errorf("unexpected signed amounts: %d %d", income.SignedAmount(), expense.SignedAmount())
	}

	opID := "0190f1b2-3c4d-7e5f-8a9b-0c1d2e3f4a5b"
	linked := Transaction{InvestmentOperationID: &opID}
	if !linked.IsLinked() || income.IsLinked() {
		t.Error("IsLinked should follow the owning operation or payment")
	}
}
