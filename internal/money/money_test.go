package money

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "finledger/internal/errors"
)

func assertInvalidInput(t *testing.T, err error) {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != "INVALID_INPUT" {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Money
	}{
		{"0", 0},
		{"12.34", 1234},
		{"12.345", 1235},
		{"12.344", 1234},
		{"-0.005", 0},
		{"500000", 50000000},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %d, want %d", c.in, got, c.want)
		}
	}

	if _, err := Parse("abc"); err == nil {
		t.Error("expected error for malformed amount")
	}
}

func TestRoundHalfUp(t *testing.T) {
	d := decimal.RequireFromString("2.675")
	if got := RoundHalfUp(d, 2).String(); got != "2.68" {
		t.Errorf("expected 2.68, got %s", got)
	}
	d = decimal.RequireFromString("-2.675")
	if got := RoundHalfUp(d, 2).String(); got != "-2.67" {
		t.Errorf("expected -2.67, got %s", got)
	}
}

func TestAllocate(t *testing.T) {
	total := MustParse("1000.00")
	part, last := total.Allocate(3)
	if part != MustParse("333.33") {
		t.Errorf("expected part 333.33, got %s", part)
	}
	if last != MustParse("333.34") {
		t.Errorf("expected last 333.34, got %s", last)
	}
	if part.MulInt(2)+last != total {
		t.Errorf("parts do not sum to total")
	}
}

func TestMulQuantity(t *testing.T) {
	price := MustParse("10.01")
	qty := MustParseQuantity("3.3333")
	// 10.01 * 3.3333 = 33.366333 -> 33.37
	if got := price.MulQuantity(qty); got != MustParse("33.37") {
		t.Errorf("expected 33.37, got %s", got)
	}
}

func TestMulRateDoesNotDrift(t *testing.T) {
	balance := MustParse("500000.00")
	rate := decimal.RequireFromString("0.01")
	var total Money
	for i := 0; i < 360; i++ {
		total += balance.MulRate(rate)
	}
	if total != MustParse("1800000.00") {
		t.Errorf("expected 1800000.00, got %s", total)
	}
}

func TestOutOfRange(t *testing.T) {
	amounts := []string{
		"100000000000000000000",
		"-100000000000000000000",
		"92233720368547758.08",
		"1e30",
	}
	for _, in := range amounts {
		t.Run("amount "+in, func(t *testing.T) {
			got, err := Parse(in)
			assertInvalidInput(t, err)
			if got != 0 {
				t.Errorf("expected zero value on error, got %s", got)
			}
		})
	}

	quantities := []string{"1000000000000000", "-922337203685477.5809"}
	for _, in := range quantities {
		t.Run("quantity "+in, func(t *testing.T) {
			_, err := ParseQuantity(in)
			assertInvalidInput(t, err)
		})
	}

	t.Run("limits still parse", func(t *testing.T) {
		if m := MustParse("92233720368547758.07"); m.Cents() != 1<<63-1 {
			t.Errorf("expected max int64 cents, got %d", m.Cents())
		}
		if q := MustParseQuantity("922337203685477.5807"); int64(q) != 1<<63-1 {
			t.Errorf("expected max int64 units, got %d", int64(q))
		}
	})

	t.Run("json", func(t *testing.T) {
		var m Money
		err := json.Unmarshal([]byte(`"100000000000000000000"`), &m)
		assertInvalidInput(t, err)
	})

	t.Run("checked products", func(t *testing.T) {
		price := MustParse("92233720368547758.07")
		if _, err := price.CheckedMulQuantity(Units(2)); err == nil {
			t.Error("expected price × quantity overflow to fail")
		}
		if _, err := price.CheckedMulRate(decimal.NewFromInt(3)); err == nil {
			t.Error("expected amount × rate overflow to fail")
		}
		if got, err := MustParse("10.00").CheckedMulRate(decimal.RequireFromString("0.015")); err != nil || got != MustParse("0.15") {
			t.Errorf("expected 0.15, got %s (%v)", got, err)
		}
	})

	t.Run("unchecked conversion panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected FromDecimal to panic instead of wrapping")
			}
		}()
		FromDecimal(decimal.RequireFromString("1e30"))
	})
}

func TestJSON(t *testing.T) {
	var payload struct {
		Amount   Money    `json:"amount"`
		Quantity Quantity `json:"quantity"`
	}
	if err := json.Unmarshal([]byte(`{"amount":"150.5","quantity":2.25}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Amount != 15050 {
		t.Errorf("expected 15050 cents, got %d", payload.Amount)
	}
	if payload.Quantity != MustParseQuantity("2.25") {
		t.Errorf("expected quantity 2.25, got %s", payload.Quantity)
	}

	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"amount":"150.50","quantity":"2.25"}` {
		t.Errorf("unexpected JSON %s", out)
	}
}

func TestFormat(t *testing.T) {
	if got := MustParse("1234.56").Format("USD"); got != "$1,234.56" {
		t.Errorf("expected $1,234.56, got %s", got)
	}
}

func TestIsCurrency(t *testing.T) {
	for code, want := range map[string]bool{"BRL": true, "usd": true, "EUR": true, "XXQ": false, "": false} {
		if got := IsCurrency(code); got != want {
			t.Errorf("IsCurrency(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestRates(t *testing.T) {
	annual := decimal.RequireFromString("0.12")
	if got := NominalMonthlyRate(annual); !got.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("expected 0.01, got %s", got)
	}
	effective := []struct{ annual, monthly string }{
		// (1.12)^(1/12) - 1 = 0.00948879293458...
		{"0.12", "0.0094887929"},
		// 1.02^12
		{"0.268241794562545318301696", "0.02"},
		{"0", "0"},
		{"-1", "-1"},
		{"-1.5", "-1"},
	}
	for _, tt := range effective {
		got := EffectiveMonthlyRate(decimal.RequireFromString(tt.annual))
		if !got.Equal(decimal.RequireFromString(tt.monthly)) {
			t.Errorf("EffectiveMonthlyRate(%s) = %s, want %s", tt.annual, got, tt.monthly)
		}
	}
	if got := Percent(decimal.RequireFromString("1.5")); !got.Equal(decimal.RequireFromString("0.015")) {
		t.Errorf("expected 0.015, got %s", got)
	}
}
