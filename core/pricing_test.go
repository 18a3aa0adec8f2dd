package core

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var pricingNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func pricedProduct(t *testing.T, price string) *Product {
	t.Helper()
	categoryID := int64(3)
	return &Product{
		ID:         42,
		Name:       "ceramic mug",
		Price:      decimal.NewNullDecimal(dec(t, price)),
		CategoryID: &categoryID,
	}
}

func ts(t time.Time) *time.Time { return &t }

func TestComputePriceNullPrice(t *testing.T) {
	p := &Product{ID: 1, Name: "unpriced"}
	offers := []Offer{{ID: 7, DiscountType: DiscountPercent, DiscountVal: decimal.NewFromInt(50)}}

	res, err := ComputePrice(p, offers, pricingNow)
	if err != nil {
		t.Fatalf("ComputePrice error: %v", err)
	}
	if res.PriceOriginal.Valid || res.PriceFinal.Valid {
		t.Fatalf("expected null prices, got %+v", res)
	}
	if res.Offer != nil || res.HasDiscount || res.DiscountPercent != 0 {
		t.Fatalf("expected empty result for null price, got %+v", res)
	}
}

func TestComputePricePercent(t *testing.T) {
	cases := []struct {
		name    string
		price   string
		percent string
		want    string
		wantPct int64
	}{
		{"ten percent", "1000", "10", "900", 10},
		{"fractional result rounds half up", "19.99", "15", "16.99", 15},
		{"half cent rounds up", "1.99", "50", "1", 50},
		{"full discount", "50", "100", "0", 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := pricedProduct(t, tc.price)
			offers := []Offer{{ID: 5, DiscountType: DiscountPercent, DiscountVal: dec(t, tc.percent)}}

			res, err := ComputePrice(p, offers, pricingNow)
			if err != nil {
				t.Fatalf("ComputePrice error: %v", err)
			}
			if !res.PriceFinal.Valid || !res.PriceFinal.Decimal.Equal(dec(t, tc.want)) {
				t.Fatalf("final = %v, want %s", res.PriceFinal, tc.want)
			}
			if !res.HasDiscount {
				t.Fatalf("expected discount flag")
			}
			if res.PriceFinal.Decimal.GreaterThanOrEqual(res.PriceOriginal.Decimal) {
				t.Fatalf("final %v not strictly below original %v", res.PriceFinal, res.PriceOriginal)
			}
			if res.DiscountPercent != tc.wantPct {
				t.Fatalf("discount percent = %d, want %d", res.DiscountPercent, tc.wantPct)
			}
		})
	}
}

func TestComputePriceAmountClampsToZero(t *testing.T) {
	p := pricedProduct(t, "100")
	offers := []Offer{{ID: 2, DiscountType: DiscountAmount, DiscountVal: dec(t, "250")}}

	res, err := ComputePrice(p, offers, pricingNow)
	if err != nil {
		t.Fatalf("ComputePrice error: %v", err)
	}
	if !res.PriceFinal.Decimal.IsZero() {
		t.Fatalf("final = %v, want 0", res.PriceFinal)
	}
	if !res.HasDiscount || res.DiscountPercent != 100 {
		t.Fatalf("expected full discount, got %+v", res)
	}
}

func TestComputePricePercentOverHundredClampsToZero(t *testing.T) {
	p := pricedProduct(t, "100")
	offers := []Offer{{ID: 2, DiscountType: DiscountPercent, DiscountVal: dec(t, "120")}}

	res, err := ComputePrice(p, offers, pricingNow)
	if err != nil {
		t.Fatalf("ComputePrice error: %v", err)
	}
	if !res.PriceFinal.Decimal.IsZero() {
		t.Fatalf("final = %v, want 0 (never negative)", res.PriceFinal)
	}
}

func TestComputePriceHighestIDWins(t *testing.T) {
	p := pricedProduct(t, "1000")
	productID := p.ID
	offers := []Offer{
		{ID: 5, DiscountType: DiscountPercent, DiscountVal: dec(t, "10"), ProductID: &productID},
		{ID: 9, DiscountType: DiscountAmount, DiscountVal: dec(t, "200"), CategoryID: p.CategoryID},
	}

	res, err := ComputePrice(p, offers, pricingNow)
	if err != nil {
		t.Fatalf("ComputePrice error: %v", err)
	}
	if res.Offer == nil || res.Offer.ID != 9 {
		t.Fatalf("winner = %+v, want offer 9", res.Offer)
	}
	if !res.PriceFinal.Decimal.Equal(dec(t, "800")) {
		t.Fatalf("final = %v, want 800", res.PriceFinal)
	}
}

func TestComputePriceInactiveOffers(t *testing.T) {
	cases := []struct {
		name  string
		offer Offer
	}{
		{"starts in the future", Offer{ID: 3, DiscountType: DiscountPercent, DiscountVal: decimal.NewFromInt(30), StartAt: ts(pricingNow.Add(time.Hour))}},
		{"ended in the past", Offer{ID: 4, DiscountType: DiscountPercent, DiscountVal: decimal.NewFromInt(30), EndAt: ts(pricingNow.Add(-time.Hour))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := pricedProduct(t, "500")
			res, err := ComputePrice(p, []Offer{tc.offer}, pricingNow)
			if err != nil {
				t.Fatalf("ComputePrice error: %v", err)
			}
			if res.Offer != nil {
				t.Fatalf("inactive offer selected: %+v", res.Offer)
			}
			if !res.PriceFinal.Decimal.Equal(res.PriceOriginal.Decimal) {
				t.Fatalf("final %v differs from original %v", res.PriceFinal, res.PriceOriginal)
			}
			if res.HasDiscount {
				t.Fatalf("unexpected discount flag")
			}
		})
	}
}

func TestComputePriceWindowBoundsInclusive(t *testing.T) {
	p := pricedProduct(t, "100")
	offers := []Offer{{
		ID:           6,
		DiscountType: DiscountAmount,
		DiscountVal:  decimal.NewFromInt(10),
		StartAt:      ts(pricingNow),
		EndAt:        ts(pricingNow),
	}}

	res, err := ComputePrice(p, offers, pricingNow)
	if err != nil {
		t.Fatalf("ComputePrice error: %v", err)
	}
	if res.Offer == nil {
		t.Fatalf("offer active at its exact bounds should be selected")
	}
}

func TestComputePriceInvalidOfferData(t *testing.T) {
	cases := []struct {
		name  string
		offer Offer
	}{
		{"negative discount", Offer{ID: 1, DiscountType: DiscountAmount, DiscountVal: decimal.NewFromInt(-5)}},
		{"unknown type", Offer{ID: 1, DiscountType: "BOGOF", DiscountVal: decimal.NewFromInt(5)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := pricedProduct(t, "100")
			_, err := ComputePrice(p, []Offer{tc.offer}, pricingNow)
			if !errors.Is(err, ErrInvalidOffer) {
				t.Fatalf("err = %v, want ErrInvalidOffer", err)
			}
		})
	}
}

func TestComputePriceZeroAmountIsNoDiscount(t *testing.T) {
	p := pricedProduct(t, "100")
	offers := []Offer{{ID: 1, DiscountType: DiscountAmount, DiscountVal: decimal.Zero}}

	res, err := ComputePrice(p, offers, pricingNow)
	if err != nil {
		t.Fatalf("ComputePrice error: %v", err)
	}
	if res.HasDiscount || res.DiscountPercent != 0 {
		t.Fatalf("zero-value discount must not set the flag: %+v", res)
	}
}

func TestComputePriceIdempotent(t *testing.T) {
	p := pricedProduct(t, "19.99")
	offers := []Offer{
		{ID: 5, DiscountType: DiscountPercent, DiscountVal: dec(t, "15")},
		{ID: 9, DiscountType: DiscountAmount, DiscountVal: dec(t, "3.50")},
	}

	first, err := ComputePrice(p, offers, pricingNow)
	if err != nil {
		t.Fatalf("ComputePrice error: %v", err)
	}
	second, err := ComputePrice(p, offers, pricingNow)
	if err != nil {
		t.Fatalf("ComputePrice error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ between identical calls:\n%+v\n%+v", first, second)
	}
}
