package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Discount types an offer can carry.
const (
	DiscountPercent = "PERCENT" // discount_val is a percentage of the list price
	DiscountAmount  = "AMOUNT"  // discount_val is subtracted from the list price
)

// ErrInvalidOffer signals corrupt offer data (negative or unknown discount).
// It is a data-integrity fault, not a "no discount" outcome, and surfaces as
// a server error at the boundary.
var ErrInvalidOffer = errors.New("invalid offer data")

// Offer is a time-bounded discount rule targeting a product or a whole
// category. Nil StartAt/EndAt means the bound is open on that side.
type Offer struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	DiscountType string          `json:"discount_type"`
	DiscountVal  decimal.Decimal `json:"discount_val"`
	StartAt      *time.Time      `json:"start_at"`
	EndAt        *time.Time      `json:"end_at"`
	ProductID    *int64          `json:"product_id"`
	CategoryID   *int64          `json:"category_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ActiveAt reports whether the offer's validity window contains t.
func (o *Offer) ActiveAt(t time.Time) bool {
	if o.StartAt != nil && o.StartAt.After(t) {
		return false
	}
	if o.EndAt != nil && o.EndAt.Before(t) {
		return false
	}
	return true
}

// PriceResult is the computed price block for one product. It is built fresh
// per request and never persisted.
type PriceResult struct {
	PriceOriginal   decimal.NullDecimal `json:"price_original"`
	PriceFinal      decimal.NullDecimal `json:"price_final"`
	Offer           *Offer              `json:"offer"`
	HasDiscount     bool                `json:"has_discount"`
	DiscountPercent int64               `json:"discount_percent"`
}

// ComputePrice resolves the applicable offer for a product and computes its
// final price at the given instant. Candidates must already be filtered to
// offers referencing the product directly or via its category; only the
// temporal-activity rule is applied here. Among active candidates the one
// with the highest ID wins, and exactly one offer is applied (no stacking).
//
// Pure function of its inputs: no I/O, no shared state, safe to call
// concurrently.
func ComputePrice(product *Product, candidates []Offer, now time.Time) (PriceResult, error) {
	var res PriceResult
	if !product.Price.Valid {
		// No list price, nothing to discount.
		return res, nil
	}

	orig := product.Price.Decimal
	res.PriceOriginal = decimal.NewNullDecimal(orig)
	res.PriceFinal = decimal.NewNullDecimal(orig)

	var winner *Offer
	for i := range candidates {
		o := &candidates[i]
		if !o.ActiveAt(now) {
			continue
		}
		if winner == nil || o.ID > winner.ID {
			winner = o
		}
	}
	if winner == nil {
		return res, nil
	}

	if winner.DiscountVal.IsNegative() {
		return PriceResult{}, fmt.Errorf("offer %d: negative discount value: %w", winner.ID, ErrInvalidOffer)
	}

	var final decimal.Decimal
	switch winner.DiscountType {
	case DiscountPercent:
		final = orig.Mul(decimal.NewFromInt(100).Sub(winner.DiscountVal)).Div(decimal.NewFromInt(100))
	case DiscountAmount:
		final = orig.Sub(winner.DiscountVal)
	default:
		return PriceResult{}, fmt.Errorf("offer %d: unknown discount type %q: %w", winner.ID, winner.DiscountType, ErrInvalidOffer)
	}

	// Currency minor unit, round half up. Never below zero.
	final = final.Round(2)
	if final.IsNegative() {
		final = decimal.Zero
	}

	res.Offer = winner
	res.PriceFinal = decimal.NewNullDecimal(final)
	res.HasDiscount = final.LessThan(orig)
	if res.HasDiscount && orig.IsPositive() {
		res.DiscountPercent = orig.Sub(final).Div(orig).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	}
	return res, nil
}
