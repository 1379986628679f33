// Package pricing is the single home of the sale price / margin percent /
// margin value formulas under both VAT regimes. Every consumer (catalog CRUD,
// CSV import, document totals) derives prices through this package; the
// formulas are never re-implemented inline.
package pricing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
)

var (
	// ErrInvalidPurchase is returned when the purchase price is zero,
	// negative or not a finite number. Callers treat it as "cannot compute",
	// not as a crash; the import layer turns it into a row rejection.
	ErrInvalidPurchase = errors.New("purchase price must be a positive amount")

	// ErrConflictingInput is returned when more than one of sale price,
	// margin percent and margin value is supplied.
	ErrConflictingInput = errors.New("conflicting price specification")

	// ErrMissingInput is returned when none of sale price, margin percent
	// and margin value is supplied.
	ErrMissingInput = errors.New("missing price specification")

	// ErrNotFinite is returned when a supplied sale price, margin percent
	// or margin value is NaN or infinite. strconv.ParseFloat accepts "nan"
	// and "inf", so such values can arrive straight from a CSV cell; they
	// must surface as a validation error, never reach decimal construction.
	ErrNotFinite = errors.New("price input is not a finite number")
)

// vatOnMarginFactor removes (or re-applies) the assumed 20% VAT on the gross
// margin delta under the French VAT-on-margin scheme.
var vatOnMarginFactor = decimal.NewFromFloat(1.2)

var hundred = decimal.NewFromInt(100)

// Breakdown is the consistent triple of representations for one price tier.
// The three values are always mutually derivable to 2 decimal places.
type Breakdown struct {
	SalePrice     float64
	MarginPercent float64
	MarginValue   float64
}

// Input carries at most one of the three representations. Exactly one must
// be set for Derive to succeed.
type Input struct {
	SalePrice     *float64
	MarginPercent *float64
	MarginValue   *float64
}

// Derive computes the full breakdown from a purchase price and exactly one
// of the three representations.
func Derive(vat domain.VATType, purchase float64, in Input) (Breakdown, error) {
	set := 0
	if in.SalePrice != nil {
		set++
	}
	if in.MarginPercent != nil {
		set++
	}
	if in.MarginValue != nil {
		set++
	}
	if set > 1 {
		return Breakdown{}, ErrConflictingInput
	}
	if set == 0 {
		return Breakdown{}, ErrMissingInput
	}

	switch {
	case in.SalePrice != nil:
		return FromSalePrice(vat, purchase, *in.SalePrice)
	case in.MarginPercent != nil:
		return FromMarginPercent(vat, purchase, *in.MarginPercent)
	default:
		return FromMarginValue(vat, purchase, *in.MarginValue)
	}
}

// FromSalePrice derives margin percent and margin value from a sale price.
//
// Under the normal regime the margin value is sale - purchase. Under the
// margin regime it is the net margin (sale - purchase) / 1.2, with the 20%
// VAT removed from the gross delta.
func FromSalePrice(vat domain.VATType, purchase, sale float64) (Breakdown, error) {
	if err := checkPurchase(purchase); err != nil {
		return Breakdown{}, err
	}
	if err := checkFinite(sale); err != nil {
		return Breakdown{}, err
	}
	p := decimal.NewFromFloat(purchase)
	s := decimal.NewFromFloat(sale)

	value := s.Sub(p)
	if vat == domain.VATMargin {
		value = value.Div(vatOnMarginFactor)
	}
	percent := value.Div(p).Mul(hundred)

	return Breakdown{
		SalePrice:     round2(s),
		MarginPercent: round2(percent),
		MarginValue:   round2(value),
	}, nil
}

// FromMarginPercent derives the sale price and margin value from a margin
// percentage.
func FromMarginPercent(vat domain.VATType, purchase, percent float64) (Breakdown, error) {
	if err := checkPurchase(purchase); err != nil {
		return Breakdown{}, err
	}
	if err := checkFinite(percent); err != nil {
		return Breakdown{}, err
	}
	p := decimal.NewFromFloat(purchase)
	pct := decimal.NewFromFloat(percent)

	value := p.Mul(pct).Div(hundred)
	sale := p.Add(value)
	if vat == domain.VATMargin {
		sale = p.Add(value.Mul(vatOnMarginFactor))
	}

	return Breakdown{
		SalePrice:     round2(sale),
		MarginPercent: round2(pct),
		MarginValue:   round2(value),
	}, nil
}

// FromMarginValue derives the sale price and margin percentage from a margin
// value. Under the margin regime the value is interpreted as the net margin,
// so the sale price re-applies the 20% VAT on it.
func FromMarginValue(vat domain.VATType, purchase, value float64) (Breakdown, error) {
	if err := checkPurchase(purchase); err != nil {
		return Breakdown{}, err
	}
	if err := checkFinite(value); err != nil {
		return Breakdown{}, err
	}
	p := decimal.NewFromFloat(purchase)
	v := decimal.NewFromFloat(value)

	sale := p.Add(v)
	if vat == domain.VATMargin {
		sale = p.Add(v.Mul(vatOnMarginFactor))
	}
	percent := v.Div(p).Mul(hundred)

	return Breakdown{
		SalePrice:     round2(sale),
		MarginPercent: round2(percent),
		MarginValue:   round2(v),
	}, nil
}

// Round2 rounds a currency amount to 2 decimal places.
func Round2(v float64) float64 {
	return round2(decimal.NewFromFloat(v))
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func checkPurchase(purchase float64) error {
	if purchase <= 0 || math.IsNaN(purchase) || math.IsInf(purchase, 0) {
		return ErrInvalidPurchase
	}
	return nil
}

func checkFinite(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrNotFinite
	}
	return nil
}
