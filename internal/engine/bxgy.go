package engine

import (
	"fmt"

	"github.com/jcilabs/discount-engine/internal/domain/cart"
	"github.com/jcilabs/discount-engine/internal/domain/discount"
)

// evaluateBXGY produces one line discount over the "get" lines of a
// buy-X-get-Y rule.
//
// Bundle arithmetic: the buy pool's quantities are summed (defaulting absent
// quantities to 1), bundles = floor(total / buyQty), clamped to 1 when the
// rule does not repeat and to the max-repeats cap when one is set. The buy
// and get pools may overlap. Get lines are taken first-come in cart order.
func evaluateBXGY(eligible []cart.Line, rule *discount.Rule) *Operation {
	buyLines := scopedLines(eligible, rule.Buy.Scope, rule.Buy.ProductIDs)
	getLines := scopedLines(eligible, rule.Get.Scope, rule.Get.ProductIDs)

	totalBuyQty := 0
	for _, l := range buyLines {
		totalBuyQty += l.EffectiveQuantity()
	}
	if totalBuyQty < rule.Buy.Quantity {
		return nil
	}

	bundles := totalBuyQty / rule.Buy.Quantity
	if !rule.Application.Repeats && bundles > 1 {
		bundles = 1
	}
	if max := rule.Application.MaxRepeats; max > 0 && bundles > max {
		bundles = max
	}
	if bundles <= 0 {
		return nil
	}

	value, ok := resolveEffect(rule.Get.Effect)
	if !ok {
		return nil
	}

	need := bundles * rule.Get.Quantity
	if need > len(getLines) {
		need = len(getLines)
	}
	targets := getLines[:need]
	if len(targets) == 0 {
		return nil
	}

	op := lineDiscountOp(bxgyMessage(rule), lineIDs(targets), value)
	return &op
}

// resolveEffect validates the get-side benefit: free maps to 100% off,
// percents must fall in (0, 100], amounts must be positive.
func resolveEffect(e discount.GetEffect) (Value, bool) {
	switch e.Type {
	case discount.EffectFree:
		return PercentValue(hundred), true
	case discount.EffectPercent:
		if e.Percent.IsPositive() && e.Percent.LessThanOrEqual(hundred) {
			return PercentValue(e.Percent), true
		}
	case discount.EffectAmount:
		if e.Amount.IsPositive() {
			return AmountValue(e.Amount), true
		}
	}
	return Value{}, false
}

func bxgyMessage(rule *discount.Rule) string {
	switch rule.Get.Effect.Type {
	case discount.EffectAmount:
		return fmt.Sprintf("Buy %d, get %s off", rule.Buy.Quantity, rule.Get.Effect.Amount.StringFixed(2))
	case discount.EffectPercent:
		return fmt.Sprintf("Buy %d, get %s%% off", rule.Buy.Quantity, rule.Get.Effect.Percent.Round(0))
	default:
		return fmt.Sprintf("Buy %d, get %d free", rule.Buy.Quantity, rule.Get.Quantity)
	}
}
