package commission

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/m3rciful/communitybot/internal/domain"
)

const eps = 1e-9

func TestFlatTenPercentUpTo100k(t *testing.T) {
	for _, p := range []float64{0.01, 1, 50_000, 99_999.99, 100_000} {
		percent, amount, err := Calculate(p)
		if err != nil {
			t.Fatalf("Calculate(%v): %v", p, err)
		}
		if percent != 10 {
			t.Fatalf("Calculate(%v) percent = %v, want 10", p, percent)
		}
		if math.Abs(amount-p/10) > eps {
			t.Fatalf("Calculate(%v) amount = %v", p, amount)
		}
	}
}

func TestRuleTable(t *testing.T) {
	tests := []struct {
		price float64
		want  float64
	}{
		{150_000, 9.85},
		{1_000_000, 7.3},
		{1_700_000, 5.2},
		{1_750_000, 5.2},
		{1_800_001, 5.1},
		{2_000_000, 5.0},
		{3_050_000, 5.0},
		{3_100_000, 4.98},
		{6_000_000, 3.82},
		{6_000_001, 2.8},
		{50_000_000, 2.8},
	}
	for _, tt := range tests {
		got, _, err := Calculate(tt.price)
		if err != nil {
			t.Fatalf("Calculate(%v): %v", tt.price, err)
		}
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("Calculate(%v) = %v, want %v", tt.price, got, tt.want)
		}
	}
}

func TestContinuousAtSlidingBoundaries(t *testing.T) {
	for _, b := range []float64{100_000, 1_700_000, 3_050_000} {
		below, _, _ := Calculate(b)
		above, _, _ := Calculate(b + 0.01)
		if math.Abs(below-above) > 1e-4 {
			t.Errorf("discontinuity at %v: %v vs %v", b, below, above)
		}
	}
}

func TestRejectsInvalidPrice(t *testing.T) {
	for _, p := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, amount, err := Calculate(p)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("Calculate(%v) err = %v, want validation error", p, err)
		}
		if amount != 0 {
			t.Fatalf("amount computed for invalid price %v", p)
		}
		if msg, _ := domain.UserMessage(err); msg != "amount must be a positive number" {
			t.Fatalf("message = %q", msg)
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{" 1 700 000 ", 1_700_000, false},
		{"1500,50", 1500.5, false},
		{"250000", 250_000, false},
		{"abc", 0, true},
		{"", 0, true},
		{"NaN", 0, true},
		{"1,5,0", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("ParsePrice(%q) err = %v, want validation error", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParsePrice(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestEvaluateRendersGroupedAmounts(t *testing.T) {
	res, err := Evaluate("1700000")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	html := res.HTML()
	for _, want := range []string{"1,700,000.00", "5.20%", "88,400.00"} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered result %q lacks %q", html, want)
		}
	}
	if _, err := Evaluate("-1"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("negative input err = %v", err)
	}
}
