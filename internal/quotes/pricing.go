package quotes

import (
	"time"

	"github.com/signalworks/storefront/internal/shared"
)

// PriceInput carries a staff pricing decision. QuotedTotal wins when both
// QuotedTotal and DiscountPercentage are given.
type PriceInput struct {
	QuotedTotal        *float64   `json:"quoted_total"`
	DiscountPercentage *float64   `json:"discount_percentage"`
	ValidUntil         *time.Time `json:"valid_until"`
	AdminNotes         *string    `json:"admin_notes"`
}

// maxStoredValue is the largest magnitude a NUMERIC(12,2) column holds.
const maxStoredValue = 9_999_999_999.99

// OriginalTotal sums the snapshot line prices.
func OriginalTotal(items []LineItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.UnitPrice * float64(it.Quantity)
	}
	return shared.RoundMoney(sum)
}

// DiscountFor derives the discount percentage of quoted against original.
// A quoted total above the original yields a negative value (markup).
func DiscountFor(original, quoted float64) float64 {
	if original == 0 {
		return 0
	}
	return shared.RoundMoney((original - quoted) / original * 100)
}

// ResolvePrice computes the quoted total and its discount from the input.
func ResolvePrice(original float64, in PriceInput) (quoted, discount float64, err error) {
	switch {
	case in.QuotedTotal != nil:
		if *in.QuotedTotal < 0 {
			return 0, 0, shared.Validationf("quoted total must not be negative")
		}
		quoted = shared.RoundMoney(*in.QuotedTotal)
	case in.DiscountPercentage != nil:
		d := *in.DiscountPercentage
		if d > 100 {
			return 0, 0, shared.Validationf("discount percentage must not exceed 100")
		}
		quoted = shared.RoundMoney(original * (1 - d/100))
	default:
		return 0, 0, shared.Validationf("quoted total or discount percentage is required")
	}
	if quoted > maxStoredValue {
		return 0, 0, shared.Validationf("quoted total must not exceed %.2f", maxStoredValue)
	}
	discount = DiscountFor(original, quoted)
	if discount < -maxStoredValue {
		return 0, 0, shared.Validationf("markup over the original total is too large")
	}
	return quoted, discount, nil
}
