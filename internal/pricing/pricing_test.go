package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
)

func TestFromSalePriceNormalRegime(t *testing.T) {
	b, err := FromSalePrice(domain.VATNormal, 100, 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.MarginValue != 50 {
		t.Fatalf("margin value = %v, want 50", b.MarginValue)
	}
	if b.MarginPercent != 50 {
		t.Fatalf("margin percent = %v, want 50", b.MarginPercent)
	}
}

func TestFromSalePriceMarginRegime(t *testing.T) {
	// Gross delta is 60, net margin strips the 20% VAT: 60 / 1.2 = 50.
	b, err := FromSalePrice(domain.VATMargin, 100, 160)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.MarginValue != 50 {
		t.Fatalf("margin value = %v, want 50", b.MarginValue)
	}
	if b.MarginPercent != 50 {
		t.Fatalf("margin percent = %v, want 50", b.MarginPercent)
	}
}

func TestFromMarginPercentMarginRegime(t *testing.T) {
	b, err := FromMarginPercent(domain.VATMargin, 100, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.SalePrice != 160 {
		t.Fatalf("sale price = %v, want 160", b.SalePrice)
	}
	if b.MarginValue != 50 {
		t.Fatalf("margin value = %v, want 50", b.MarginValue)
	}
}

func TestFromMarginPercentNormalRegime(t *testing.T) {
	b, err := FromMarginPercent(domain.VATNormal, 80, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.SalePrice != 100 {
		t.Fatalf("sale price = %v, want 100", b.SalePrice)
	}
	if b.MarginValue != 20 {
		t.Fatalf("margin value = %v, want 20", b.MarginValue)
	}
}

func TestRoundTripSaleToValueAndBack(t *testing.T) {
	purchases := []float64{0.01, 1, 12.34, 99.99, 250, 1999.99}
	sales := []float64{0.02, 5, 19.99, 120.5, 333.33, 2500}

	for _, vat := range []domain.VATType{domain.VATNormal, domain.VATMargin} {
		for _, purchase := range purchases {
			for _, sale := range sales {
				from, err := FromSalePrice(vat, purchase, sale)
				if err != nil {
					t.Fatalf("FromSalePrice(%v, %v, %v): %v", vat, purchase, sale, err)
				}
				back, err := FromMarginValue(vat, purchase, from.MarginValue)
				if err != nil {
					t.Fatalf("FromMarginValue(%v, %v, %v): %v", vat, purchase, from.MarginValue, err)
				}
				// The stored margin value is rounded to the cent; under the
				// margin regime that rounding is re-amplified by the 1.2 VAT
				// factor on the way back, so the bound is 0.005*1.2 + 0.005.
				if math.Abs(back.SalePrice-sale) > 0.011 {
					t.Fatalf("vat=%v purchase=%v: sale %v round-tripped to %v", vat, purchase, sale, back.SalePrice)
				}
			}
		}
	}
}

func TestRoundTripPercentAgreesWithSale(t *testing.T) {
	for _, vat := range []domain.VATType{domain.VATNormal, domain.VATMargin} {
		from, err := FromSalePrice(vat, 75.5, 120.25)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		back, err := FromMarginPercent(vat, 75.5, from.MarginPercent)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(back.SalePrice-120.25) > 0.01 {
			t.Fatalf("vat=%v: sale 120.25 round-tripped to %v via percent", vat, back.SalePrice)
		}
	}
}

func TestInvalidPurchaseIsRejected(t *testing.T) {
	for _, purchase := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := FromSalePrice(domain.VATNormal, purchase, 10); !errors.Is(err, ErrInvalidPurchase) {
			t.Fatalf("purchase=%v: expected ErrInvalidPurchase, got %v", purchase, err)
		}
	}
}

func TestNonFiniteInputIsRejected(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := FromSalePrice(domain.VATNormal, 100, v); !errors.Is(err, ErrNotFinite) {
			t.Fatalf("sale=%v: expected ErrNotFinite, got %v", v, err)
		}
		if _, err := FromMarginPercent(domain.VATNormal, 100, v); !errors.Is(err, ErrNotFinite) {
			t.Fatalf("percent=%v: expected ErrNotFinite, got %v", v, err)
		}
		if _, err := FromMarginValue(domain.VATNormal, 100, v); !errors.Is(err, ErrNotFinite) {
			t.Fatalf("value=%v: expected ErrNotFinite, got %v", v, err)
		}
	}
}

func TestDeriveRejectsConflictingAndMissingInput(t *testing.T) {
	sale := 50.0
	percent := 30.0

	_, err := Derive(domain.VATNormal, 20, Input{SalePrice: &sale, MarginPercent: &percent})
	if !errors.Is(err, ErrConflictingInput) {
		t.Fatalf("expected ErrConflictingInput, got %v", err)
	}

	_, err = Derive(domain.VATNormal, 20, Input{})
	if !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
}

func TestDeriveWithSingleInput(t *testing.T) {
	value := 25.0
	b, err := Derive(domain.VATNormal, 100, Input{MarginValue: &value})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.SalePrice != 125 || b.MarginPercent != 25 {
		t.Fatalf("unexpected breakdown: %+v", b)
	}
}
