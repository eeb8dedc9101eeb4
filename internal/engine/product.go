package engine

import (
	"fmt"

	"github.com/jcilabs/discount-engine/internal/domain/cart"
	"github.com/jcilabs/discount-engine/internal/domain/discount"
)

// evaluateProductAmount produces one line discount over every eligible line
// in the rule's target scope.
func evaluateProductAmount(eligible []cart.Line, rule *discount.Rule) *Operation {
	targets := scopedLines(eligible, rule.Target.Scope, rule.Target.ProductIDs)
	if len(targets) == 0 {
		return nil
	}

	value, ok := resolveValue(rule.Value)
	if !ok {
		return nil
	}

	var msg string
	if value.FixedAmount != nil {
		msg = fmt.Sprintf("%s off", value.FixedAmount.Amount.StringFixed(2))
	} else {
		msg = fmt.Sprintf("%s%% off", value.Percentage.Value.Round(0))
	}

	op := lineDiscountOp(msg, lineIDs(targets), value)
	return &op
}
