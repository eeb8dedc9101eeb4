package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jcilabs/discount-engine/internal/domain/cart"
	"github.com/jcilabs/discount-engine/internal/domain/discount"
)

// evaluateOrderAmount produces one order-subtotal discount when the cart
// clears the minimum-subtotal gate and the rule's value resolves to a
// positive amount.
//
// The two monetary bases differ intentionally: the minimum-subtotal gate uses
// the cart's overall subtotal (already-discounted lines count toward it),
// while a percentage value is computed over the eligible lines' totals only.
func evaluateOrderAmount(snap *cart.Snapshot, eligible []cart.Line, excludedIDs []string, rule *discount.Rule) *Operation {
	if snap.SubtotalAmount.LessThan(rule.Conditions.MinimumSubtotal) {
		return nil
	}

	// With a non-empty required-products list, at least one eligible line
	// must match it.
	if rule.Conditions.RequiresProducts && len(rule.Conditions.RequiredProductIDs) > 0 {
		required := stringSet(rule.Conditions.RequiredProductIDs)
		found := false
		for _, l := range eligible {
			if _, ok := required[l.ProductID]; ok {
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}

	amount := orderDiscountAmount(eligible, rule.Value)
	if !amount.IsPositive() {
		return nil
	}
	amount = amount.Round(2)

	msg := fmt.Sprintf("Discount of %s off (excluding already-discounted items)", amount.StringFixed(2))
	op := orderDiscountOp(msg, excludedIDs, AmountValue(amount))
	return &op
}

// orderDiscountAmount resolves the rule value into a concrete amount: fixed
// values contribute literally, percentages apply to the sum of eligible line
// totals.
func orderDiscountAmount(eligible []cart.Line, v discount.Value) decimal.Decimal {
	value, ok := resolveValue(v)
	if !ok {
		return decimal.Zero
	}
	if value.FixedAmount != nil {
		return value.FixedAmount.Amount
	}

	base := decimal.Zero
	for _, l := range eligible {
		base = base.Add(l.TotalAmount)
	}
	if !base.IsPositive() {
		return decimal.Zero
	}
	return base.Mul(value.Percentage.Value).Div(hundred)
}
