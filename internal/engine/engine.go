// Package engine implements the cart discount evaluation core: pure,
// deterministic functions over an immutable cart snapshot and a decoded
// discount rule, producing zero or more platform discount operations.
//
// Only structurally invalid input crosses the boundary as an error. Every
// business-rule non-match (threshold not met, no eligible lines, invalid
// value, unrecognized kind) resolves to an empty operation list.
package engine

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/jcilabs/discount-engine/internal/domain/cart"
	"github.com/jcilabs/discount-engine/internal/domain/discount"
)

var hundred = decimal.NewFromInt(100)

// ErrNoCartLines is returned when the host invokes a cart-lines evaluation
// with an empty cart, which the calling contract forbids.
var ErrNoCartLines = errors.New("no cart lines found")

// Evaluate is the cart-lines entry point. It dispatches on the rule kind to
// the order-amount, product-amount, or BXGY evaluator. The host sets the
// ORDER discount class for all three kinds, so the class gate is applied once
// here.
func Evaluate(snap *cart.Snapshot, rule *discount.Rule) ([]Operation, error) {
	if len(snap.Lines) == 0 {
		return nil, ErrNoCartLines
	}
	if !snap.HasClass(cart.ClassOrder) {
		return nil, nil
	}

	eligible, excludedIDs := FilterEligible(snap.Lines, rule.Conditions)
	if len(eligible) == 0 {
		return nil, nil
	}

	switch rule.Kind {
	case discount.KindOrderAmount:
		return single(evaluateOrderAmount(snap, eligible, excludedIDs, rule)), nil
	case discount.KindProductAmount:
		return single(evaluateProductAmount(eligible, rule)), nil
	case discount.KindBXGY:
		return single(evaluateBXGY(eligible, rule)), nil
	default:
		// Unrecognized kind: configuration mismatch, not an error.
		return nil, nil
	}
}

// EvaluateDelivery is the delivery-options entry point: a 100%-off shipping
// discount on the first delivery group whenever the SHIPPING class was
// requested and a group exists.
func EvaluateDelivery(snap *cart.Snapshot) ([]Operation, error) {
	if !snap.HasClass(cart.ClassShipping) {
		return nil, nil
	}
	if len(snap.DeliveryGroups) == 0 {
		return nil, nil
	}
	op := deliveryDiscountOp("FREE DELIVERY", snap.DeliveryGroups[0].ID, PercentValue(hundred))
	return []Operation{op}, nil
}

func single(op *Operation) []Operation {
	if op == nil {
		return nil
	}
	return []Operation{*op}
}

// resolveValue validates a normalized value descriptor: amounts must be
// positive, percents must fall in (0, 100].
func resolveValue(v discount.Value) (Value, bool) {
	switch v.Type {
	case discount.ValueAmount:
		if v.Amount.IsPositive() {
			return AmountValue(v.Amount), true
		}
	case discount.ValuePercent:
		if v.Percent.IsPositive() && v.Percent.LessThanOrEqual(hundred) {
			return PercentValue(v.Percent), true
		}
	}
	return Value{}, false
}

// scopedLines returns the lines matching an ALL or PRODUCTS allow-list scope,
// preserving cart order.
func scopedLines(lines []cart.Line, scope discount.Scope, productIDs []string) []cart.Line {
	if scope != discount.ScopeProducts {
		return lines
	}
	allowed := stringSet(productIDs)
	var out []cart.Line
	for _, l := range lines {
		if _, ok := allowed[l.ProductID]; ok {
			out = append(out, l)
		}
	}
	return out
}

func lineIDs(lines []cart.Line) []string {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	return ids
}

func stringSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
