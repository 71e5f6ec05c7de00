package services

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"finledger/internal/testutil"
)

func TestCreateUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewUserService(db)

	t.Run("normalizes_and_hashes", func(t *testing.T) {
		user, err := svc.CreateUser(" Alice@EXAMPLE.COM", "password123", "Alice", "Smith")
		testutil.AssertNoError(t, err)

		if user.ID == "" || !user.IsActive {
			t.Fatalf("expected an active user with an id, got %+v", user)
		}
		if user.Email != "alice@example.com" {
			t.Errorf("expected lowercased email, got %s", user.Email)
		}
		if user.Password == "password123" {
			t.Fatal("password stored in plaintext")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")); err != nil {
			t.Errorf("stored hash does not match: %v", err)
		}
	})

	t.Run("duplicate_email_ignores_case", func(t *testing.T) {
		_, err := svc.CreateUser("ALICE@example.com", "password456", "", "")
		testutil.AssertAppError(t, err, "DUPLICATE_EMAIL")
	})

	invalid := []struct {
		name, email, password string
	}{
		{"empty_email", "", "password123"},
		{"empty_password", "bob@example.com", ""},
		{"not_an_address", "bob", "password123"},
		{"display_name", "Bob <bob@example.com>", "password123"},
		{"short_password", "bob@example.com", "short"},
		{"long_password", "bob@example.com", strings.Repeat("p", maxPasswordLength+1)},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(tt.email, tt.password, "", "")
			testutil.AssertAppError(t, err, "INVALID_INPUT")
		})
	}

	t.Run("password_at_bcrypt_limit", func(t *testing.T) {
		_, err := svc.CreateUser("carol@example.com", strings.Repeat("p", maxPasswordLength), "", "")
		testutil.AssertNoError(t, err)
	})
}

func TestUserLookups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewUserService(db)

	active := testutil.CreateTestUserWithEmail(t, db, "found@example.com")
	inactive := testutil.CreateTestUserWithEmail(t, db, "inactive@example.com")
	db.Model(inactive).Update("is_active", false)

	t.Run("by_email", func(t *testing.T) {
		user, err := svc.GetUserByEmail("found@example.com")
		testutil.AssertNoError(t, err)
		if user.ID != active.ID {
			t.Errorf("expected user %s, got %s", active.ID, user.ID)
		}
	})

	t.Run("by_id", func(t *testing.T) {
		user, err := svc.GetUserByID(active.ID)
		testutil.AssertNoError(t, err)
		if user.Email != active.Email {
			t.Errorf("expected email %s, got %s", active.Email, user.Email)
		}
	})

	notFound := map[string]func() error{
		"unknown_email": func() error { _, err := svc.GetUserByEmail("nobody@example.com"); return err },
		"inactive_user": func() error { _, err := svc.GetUserByEmail("inactive@example.com"); return err },
		"unknown_id":    func() error { _, err := svc.GetUserByID("0190f1b2-3c4d-7e5f-8a9b-0c1d2e3f4a5b"); return err },
	}
	for name, lookup := range notFound {
		t.Run(name, func(t *testing.T) {
			testutil.AssertAppError(t, lookup(), "USER_NOT_FOUND")
		})
	}
}

func TestVerifyPassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewUserService(db)

	// CreateTestUser hashes "password123" at bcrypt.MinCost.
	user := testutil.CreateTestUser(t, db)
	if !svc.VerifyPassword(user, "password123") {
		t.Error("expected the fixture password to verify")
	}
	if svc.VerifyPassword(user, "wrongpassword") {
		t.Error("expected a wrong password to fail")
	}
}

func TestRecordLogin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewUserService(db)

	user := testutil.CreateTestUser(t, db)
	before := time.Now().Add(-time.Second)
	testutil.AssertNoError(t, svc.RecordLogin(user.ID))

	reloaded, err := svc.GetUserByID(user.ID)
	testutil.AssertNoError(t, err)
	if reloaded.LastLoginAt == nil {
		t.Fatal("expected LastLoginAt to be set")
	}
	if reloaded.LastLoginAt.Before(before) {
		t.Errorf("expected recent LastLoginAt, got %s", reloaded.LastLoginAt)
	}
}
