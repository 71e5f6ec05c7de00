package handlers

import (
	"net/http"
	"testing"
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

const (
	testFinancingID = "0190f1b2-3c4d-7e5f-8a9b-0c1d2e3f4a90"
	testPaymentID   = "0190f1b2-3c4d-7e5f-8a9b-0c1d2e3f4a91"
)

// --- mock financing service ---

type mockFinancingService struct {
	createFinancingFn func(userID string, input services.FinancingInput) (*models.FinancingContract, error)
	getFinancingFn    func(userID, financingID string) (*models.FinancingContract, error)
	getScheduleFn     func(userID, financingID string) (*amortization.Schedule, error)
	registerPaymentFn func(userID, financingID string, input services.PaymentInput) (*services.PaymentResult, error)
	deletePaymentFn   func(userID, financingID, paymentID string) error
	reconcileFn       func(userID, financingID string, asOf time.Time) (*amortization.Progress, error)
	syncOutstandingFn func() (int, error)
}

func (m *mockFinancingService) CreateFinancing(userID string, input services.FinancingInput) (*models.FinancingContract, error) {
	if m.createFinancingFn != nil {
		return m.createFinancingFn(userID, input)
	}
	return &models.FinancingContract{}, nil
}

func (m *mockFinancingService) GetFinancing(userID, financingID string) (*models.FinancingContract, error) {
	if m.getFinancingFn != nil {
		return m.getFinancingFn(userID, financingID)
	}
	return &models.FinancingContract{}, nil
}

func (m *mockFinancingService) ListFinancings(_ string, page pagination.PageRequest) (*pagination.PageResponse[models.FinancingContract], error) {
	page.Defaults()
	resp := pagination.NewPageResponse([]models.FinancingContract{}, page.Page, page.PageSize, 0)
	return &resp, nil
}

func (m *mockFinancingService) GetSchedule(userID, financingID string) (*amortization.Schedule, error) {
	if m.getScheduleFn != nil {
		return m.getScheduleFn(userID, financingID)
	}
	return &amortization.Schedule{}, nil
}

// SimulateSchedule runs the real generator so the handler output can be
// checked against known schedules.
func (m *mockFinancingService) SimulateSchedule(params amortization.Params) (*amortization.Schedule, error) {
	return amortization.Generate(params)
}

func (m *mockFinancingService) RegisterPayment(userID, financingID string, input services.PaymentInput) (*services.PaymentResult, error) {
	if m.registerPaymentFn != nil {
		return m.registerPaymentFn(userID, financingID, input)
	}
	return &services.PaymentResult{Payment: &models.FinancingPayment{}}, nil
}

func (m *mockFinancingService) DeletePayment(userID, financingID, paymentID string) error {
	if m.deletePaymentFn != nil {
		return m.deletePaymentFn(userID, financingID, paymentID)
	}
	return nil
}

func (m *mockFinancingService) GetPayments(_, _ string, page pagination.PageRequest) (*pagination.PageResponse[models.FinancingPayment], error) {
	page.Defaults()
	resp := pagination.NewPageResponse([]models.FinancingPayment{}, page.Page, page.PageSize, 0)
	return &resp, nil
}

func (m *mockFinancingService) Reconcile(userID, financingID string, asOf time.Time) (*amortization.Progress, error) {
	if m.reconcileFn != nil {
		return m.reconcileFn(userID, financingID, asOf)
	}
	return &amortization.Progress{}, nil
}

func (m *mockFinancingService) SyncOutstandingBalances() (int, error) {
	if m.syncOutstandingFn != nil {
		return m.syncOutstandingFn()
	}
	return 0, nil
}

// --- helpers ---

func setupFinancingRouter(handler *FinancingHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("/financings", injectUserID(testUserID))
	auth.POST("", handler.CreateFinancing)
	auth.GET("", handler.ListFinancings)
	auth.POST("/simulate", handler.SimulateSchedule)
	auth.GET("/:id", handler.GetFinancing)
	auth.GET("/:id/schedule", handler.GetSchedule)
	auth.GET("/:id/reconciliation", handler.Reconcile)
	auth.POST("/:id/payments", handler.RegisterPayment)
	auth.GET("/:id/payments", handler.GetPayments)
	auth.DELETE("/:id/payments/:payment_id", handler.DeletePayment)
	return r
}

func contractFrom(input services.FinancingInput) *models.FinancingContract {
	c := &models.FinancingContract{
		UserID:         testUserID,
		Name:           input.Name,
		Principal:      input.Principal,
		PeriodicRate:   input.PeriodicRate,
		TermMonths:     input.TermMonths,
		Method:         input.Method,
		StartDate:      input.StartDate,
		CurrentBalance: input.Principal,
	}
	c.ID = testFinancingID
	return c
}

// --- tests ---

func TestFinancingHandler_CreateFinancing(t *testing.T) {
	t.Run("returns 201 with periodic rate", func(t *testing.T) {
		var got services.FinancingInput
		svc := &mockFinancingService{
			createFinancingFn: func(_ string, input services.FinancingInput) (*models.FinancingContract, error) {
				got = input
				return contractFrom(input), nil
			},
		}
		audit := &mockAuditService{}
		r := setupFinancingRouter(NewFinancingHandler(svc, audit))

		rec := doRequest(r, "POST", "/financings",
			`{"name":"Car","principal":"12000","interest_rate":"0.01","term_months":12,"amortization_method":"SAC","start_date":"2024-01-15"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Method != amortization.MethodSAC {
			t.Errorf("expected method sac, got %q", got.Method)
		}
		if !got.PeriodicRate.Equal(decimal.RequireFromString("0.01")) {
			t.Errorf("expected rate 0.01, got %s", got.PeriodicRate)
		}
		if got.Principal != money.MustParse("12000") {
			t.Errorf("expected principal 12000.00, got %s", got.Principal)
		}
		if !got.StartDate.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected start date %v", got.StartDate)
		}
		financing := parseJSON(t, rec)["financing"].(map[string]interface{})
		if financing["current_outstanding_balance"] != "12000.00" {
			t.Errorf("unexpected outstanding balance: %v", financing["current_outstanding_balance"])
		}
		if got := audit.actions(); len(got) != 1 || got[0] != "CREATE_FINANCING" {
			t.Errorf("expected CREATE_FINANCING audit entry, got %v", got)
		}
	})

	t.Run("converts annual rates", func(t *testing.T) {
		var got services.FinancingInput
		svc := &mockFinancingService{
			createFinancingFn: func(_ string, input services.FinancingInput) (*models.FinancingContract, error) {
				got = input
				return contractFrom(input), nil
			},
		}
		r := setupFinancingRouter(NewFinancingHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/financings",
			`{"name":"House","principal":200000,"interest_rate":12,"rate_in_percent":true,"rate_basis":"nominal_annual","term_months":120,"amortization_method":"price"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.PeriodicRate.Equal(decimal.RequireFromString("0.01")) {
			t.Errorf("expected monthly rate 0.01, got %s", got.PeriodicRate)
		}
	})

	tests := map[string]string{
		"missing name":       `{"principal":"1000","interest_rate":"0.01","term_months":12,"amortization_method":"sac"}`,
		"zero principal":     `{"name":"x","principal":"0","interest_rate":"0.01","term_months":12,"amortization_method":"sac"}`,
		"zero term":          `{"name":"x","principal":"1000","interest_rate":"0.01","term_months":0,"amortization_method":"sac"}`,
		"unknown method":     `{"name":"x","principal":"1000","interest_rate":"0.01","term_months":12,"amortization_method":"german"}`,
		"unknown rate basis": `{"name":"x","principal":"1000","interest_rate":"0.01","term_months":12,"amortization_method":"sac","rate_basis":"weekly"}`,
	}
	for name, body := range tests {
		t.Run("returns 400 on "+name, func(t *testing.T) {
			r := setupFinancingRouter(NewFinancingHandler(&mockFinancingService{}, &mockAuditService{}))

			rec := doRequest(r, "POST", "/financings", body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
		})
	}

	t.Run("propagates negative rate rejection", func(t *testing.T) {
		svc := &mockFinancingService{
			createFinancingFn: func(_ string, input services.FinancingInput) (*models.FinancingContract, error) {
				return nil, contractFrom(input).Params().Validate()
			},
		}
		r := setupFinancingRouter(NewFinancingHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/financings",
			`{"name":"x","principal":"1000","interest_rate":"-0.01","term_months":12,"amortization_method":"sac"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestFinancingHandler_SimulateSchedule(t *testing.T) {
	r := setupFinancingRouter(NewFinancingHandler(&mockFinancingService{}, &mockAuditService{}))

	t.Run("sac", func(t *testing.T) {
		rec := doRequest(r, "POST", "/financings/simulate",
			`{"principal":"12000","interest_rate":"0.01","term_months":12,"amortization_method":"sac"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		rows := parseJSON(t, rec)["rows"].([]interface{})
		if len(rows) != 12 {
			t.Fatalf("expected 12 rows, got %d", len(rows))
		}
		first := rows[0].(map[string]interface{})
		if first["amortization"] != "1000.00" || first["interest"] != "120.00" || first["payment"] != "1120.00" {
			t.Errorf("unexpected first row: %v", first)
		}
		last := rows[11].(map[string]interface{})
		if last["remaining_balance"] != "0.00" {
			t.Errorf("expected schedule to close at zero, got %v", last["remaining_balance"])
		}
	})

	t.Run("price", func(t *testing.T) {
		rec := doRequest(r, "POST", "/financings/simulate",
			`{"principal":"100000","interest_rate":"0.01","term_months":12,"amortization_method":"price"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		first := parseJSON(t, rec)["rows"].([]interface{})[0].(map[string]interface{})
		if first["payment"] != "8884.88" || first["interest"] != "1000.00" {
			t.Errorf("unexpected first row: %v", first)
		}
	})

	t.Run("rejects unsupported method", func(t *testing.T) {
		rec := doRequest(r, "POST", "/financings/simulate",
			`{"principal":"1000","interest_rate":"0.01","term_months":12,"amortization_method":"bullet"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestFinancingHandler_GetFinancing(t *testing.T) {
	svc := &mockFinancingService{
		getFinancingFn: func(_, id string) (*models.FinancingContract, error) {
			if id != testFinancingID {
				return nil, apperrors.ErrFinancingNotFound
			}
			return contractFrom(services.FinancingInput{Name: "Car", Principal: money.MustParse("100")}), nil
		},
	}
	r := setupFinancingRouter(NewFinancingHandler(svc, &mockAuditService{}))

	t.Run("found", func(t *testing.T) {
		rec := doRequest(r, "GET", "/financings/"+testFinancingID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := doRequest(r, "GET", "/financings/"+testOtherID, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "FINANCING_NOT_FOUND")
	})

	t.Run("list", func(t *testing.T) {
		rec := doRequest(r, "GET", "/financings?page=1&page_size=10", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["page_size"] != float64(10) {
			t.Error("expected page_size 10")
		}
	})
}

func TestFinancingHandler_RegisterPayment(t *testing.T) {
	t.Run("derived split", func(t *testing.T) {
		var got services.PaymentInput
		svc := &mockFinancingService{
			registerPaymentFn: func(_, financingID string, input services.PaymentInput) (*services.PaymentResult, error) {
				if financingID != testFinancingID {
					t.Errorf("expected financing %s, got %s", testFinancingID, financingID)
				}
				got = input
				p := &models.FinancingPayment{
					FinancingID:      financingID,
					Amount:           input.Amount,
					InterestPortion:  money.MustParse("120"),
					PrincipalPortion: money.MustParse("1000"),
					BalanceAfter:     money.MustParse("11000"),
				}
				p.ID = testPaymentID
				return &services.PaymentResult{Payment: p}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupFinancingRouter(NewFinancingHandler(svc, audit))

		rec := doRequest(r, "POST", "/financings/"+testFinancingID+"/payments",
			`{"account_id":"`+testAccountID+`","installment_number":1,"payment_amount":"1120.00","payment_date":"2024-02-15"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.PrincipalPortion != nil || got.InterestPortion != nil {
			t.Error("omitted portions must stay nil so the service derives them")
		}
		if got.Amount != money.MustParse("1120") || got.InstallmentNumber != 1 {
			t.Errorf("unexpected input: %+v", got)
		}
		payment := parseJSON(t, rec)["payment"].(map[string]interface{})
		if payment["balance_after"] != "11000.00" {
			t.Errorf("unexpected balance_after: %v", payment["balance_after"])
		}
		if got := audit.actions(); len(got) != 1 || got[0] != "REGISTER_PAYMENT" {
			t.Errorf("expected REGISTER_PAYMENT audit entry, got %v", got)
		}
	})

	t.Run("explicit portions", func(t *testing.T) {
		var got services.PaymentInput
		svc := &mockFinancingService{
			registerPaymentFn: func(_, _ string, input services.PaymentInput) (*services.PaymentResult, error) {
				got = input
				return &services.PaymentResult{Payment: &models.FinancingPayment{}}, nil
			},
		}
		r := setupFinancingRouter(NewFinancingHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/financings/"+testFinancingID+"/payments",
			`{"account_id":"`+testAccountID+`","payment_amount":"1500","principal_portion":"1400","interest_portion":"100"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.PrincipalPortion == nil || *got.PrincipalPortion != money.MustParse("1400") {
			t.Errorf("expected principal portion 1400, got %v", got.PrincipalPortion)
		}
		if got.InterestPortion == nil || *got.InterestPortion != money.MustParse("100") {
			t.Errorf("expected interest portion 100, got %v", got.InterestPortion)
		}
	})

	t.Run("returns 422 on over payment", func(t *testing.T) {
		svc := &mockFinancingService{
			registerPaymentFn: func(string, string, services.PaymentInput) (*services.PaymentResult, error) {
				return nil, apperrors.ErrOverPayment
			},
		}
		audit := &mockAuditService{}
		r := setupFinancingRouter(NewFinancingHandler(svc, audit))

		rec := doRequest(r, "POST", "/financings/"+testFinancingID+"/payments",
			`{"account_id":"`+testAccountID+`","payment_amount":"12000.01"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "OVER_PAYMENT")
		if len(audit.actions()) != 0 {
			t.Error("rejected payment must not be audited")
		}
	})

	tests := map[string]string{
		"zero amount":     `{"account_id":"` + testAccountID + `","payment_amount":"0"}`,
		"missing account": `{"payment_amount":"10"}`,
		"bad date":        `{"account_id":"` + testAccountID + `","payment_amount":"10","payment_date":"tomorrow"}`,
	}
	for name, body := range tests {
		t.Run("returns 400 on "+name, func(t *testing.T) {
			r := setupFinancingRouter(NewFinancingHandler(&mockFinancingService{}, &mockAuditService{}))

			rec := doRequest(r, "POST", "/financings/"+testFinancingID+"/payments", body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestFinancingHandler_DeletePayment(t *testing.T) {
	var gotFinancing, gotPayment string
	svc := &mockFinancingService{
		deletePaymentFn: func(_, financingID, paymentID string) error {
			gotFinancing, gotPayment = financingID, paymentID
			return nil
		},
	}
	audit := &mockAuditService{}
	r := setupFinancingRouter(NewFinancingHandler(svc, audit))

	rec := doRequest(r, "DELETE", "/financings/"+testFinancingID+"/payments/"+testPaymentID, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotFinancing != testFinancingID || gotPayment != testPaymentID {
		t.Errorf("unexpected ids: %s %s", gotFinancing, gotPayment)
	}
	if got := audit.actions(); len(got) != 1 || got[0] != "DELETE_PAYMENT" {
		t.Errorf("expected DELETE_PAYMENT audit entry, got %v", got)
	}

	rec = doRequest(r, "DELETE", "/financings/"+testFinancingID+"/payments/nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on invalid payment id, got %d", rec.Code)
	}
}

func TestFinancingHandler_Reconcile(t *testing.T) {
	var gotAsOf time.Time
	svc := &mockFinancingService{
		reconcileFn: func(_, _ string, asOf time.Time) (*amortization.Progress, error) {
			gotAsOf = asOf
			return &amortization.Progress{
				Reconciliation: amortization.Reconciliation{
					CurrentBalance:   money.MustParse("10000"),
					PaidInstallments: 2,
				},
				InstallmentsDue:  3,
				ScheduledBalance: money.MustParse("9000"),
				Difference:       money.MustParse("1000"),
				Status:           amortization.StatusBehind,
			}, nil
		},
	}
	r := setupFinancingRouter(NewFinancingHandler(svc, &mockAuditService{}))

	rec := doRequest(r, "GET", "/financings/"+testFinancingID+"/reconciliation?as_of=2024-04-20", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !gotAsOf.Equal(time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected as_of %v", gotAsOf)
	}
	result := parseJSON(t, rec)
	if result["status"] != "behind" || result["current_balance"] != "10000.00" || result["difference"] != "1000.00" {
		t.Errorf("unexpected reconciliation: %v", result)
	}

	rec = doRequest(r, "GET", "/financings/"+testFinancingID+"/reconciliation?as_of=someday", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on bad as_of, got %d", rec.Code)
	}
}
