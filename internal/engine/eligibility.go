package engine

import (
	"github.com/jcilabs/discount-engine/internal/domain/cart"
	"github.com/jcilabs/discount-engine/internal/domain/discount"
)

// FilterEligible partitions cart lines into the eligible subset and the
// excluded line IDs.
//
// A line is excluded when it already carries a prior-discount marker, which
// prevents stacking regardless of configuration. When the rule declares a
// required-products allow-list, a line must additionally match it; an absent
// allow-list means any unmarked line is eligible. The excluded IDs feed the
// excludedCartLineIds of order-level targets, so they cover both marker and
// allow-list exclusions.
func FilterEligible(lines []cart.Line, cond discount.Conditions) (eligible []cart.Line, excludedIDs []string) {
	var required map[string]struct{}
	if cond.RequiresProducts {
		required = stringSet(cond.RequiredProductIDs)
	}

	for _, l := range lines {
		if lineEligible(l, required) {
			eligible = append(eligible, l)
		} else {
			excludedIDs = append(excludedIDs, l.ID)
		}
	}
	return eligible, excludedIDs
}

func lineEligible(l cart.Line, required map[string]struct{}) bool {
	if l.AlreadyDiscounted() {
		return false
	}
	if required == nil {
		return true
	}
	_, ok := required[l.ProductID]
	return ok
}
