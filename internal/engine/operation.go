package engine

import "github.com/shopspring/decimal"

// SelectionStrategy tells the platform how to pick among candidates. The
// tie-breaks are fixed and documented, never computed optima: order and line
// discounts take the first candidate, delivery discounts apply to all.
type SelectionStrategy string

const (
	SelectionFirst SelectionStrategy = "FIRST"
	SelectionAll   SelectionStrategy = "ALL"
)

// Operation is one discount operation in the platform wire format. Exactly
// one of the three fields is set.
type Operation struct {
	OrderDiscountsAdd    *OrderDiscountsAdd    `json:"orderDiscountsAdd,omitempty"`
	ProductDiscountsAdd  *ProductDiscountsAdd  `json:"productDiscountsAdd,omitempty"`
	DeliveryDiscountsAdd *DeliveryDiscountsAdd `json:"deliveryDiscountsAdd,omitempty"`
}

// Value is the discount value of a candidate: a percentage in (0, 100] or a
// fixed monetary amount.
type Value struct {
	Percentage  *Percentage  `json:"percentage,omitempty"`
	FixedAmount *FixedAmount `json:"fixedAmount,omitempty"`
}

type Percentage struct {
	Value decimal.Decimal `json:"value"`
}

type FixedAmount struct {
	Amount decimal.Decimal `json:"amount"`
}

// PercentValue builds a percentage value.
func PercentValue(p decimal.Decimal) Value {
	return Value{Percentage: &Percentage{Value: p}}
}

// AmountValue builds a fixed-amount value.
func AmountValue(a decimal.Decimal) Value {
	return Value{FixedAmount: &FixedAmount{Amount: a}}
}

// OrderDiscountsAdd targets the order subtotal.
type OrderDiscountsAdd struct {
	SelectionStrategy SelectionStrategy `json:"selectionStrategy"`
	Candidates        []OrderCandidate  `json:"candidates"`
}

type OrderCandidate struct {
	Message string        `json:"message"`
	Targets []OrderTarget `json:"targets"`
	Value   Value         `json:"value"`
}

type OrderTarget struct {
	OrderSubtotal OrderSubtotalTarget `json:"orderSubtotal"`
}

type OrderSubtotalTarget struct {
	ExcludedCartLineIDs []string `json:"excludedCartLineIds"`
}

// ProductDiscountsAdd targets specific cart lines.
type ProductDiscountsAdd struct {
	SelectionStrategy SelectionStrategy  `json:"selectionStrategy"`
	Candidates        []ProductCandidate `json:"candidates"`
}

type ProductCandidate struct {
	Message string       `json:"message"`
	Targets []LineTarget `json:"targets"`
	Value   Value        `json:"value"`
}

type LineTarget struct {
	CartLine CartLineTarget `json:"cartLine"`
}

type CartLineTarget struct {
	ID string `json:"id"`
}

// DeliveryDiscountsAdd targets a delivery group.
type DeliveryDiscountsAdd struct {
	SelectionStrategy SelectionStrategy   `json:"selectionStrategy"`
	Candidates        []DeliveryCandidate `json:"candidates"`
}

type DeliveryCandidate struct {
	Message string           `json:"message"`
	Targets []DeliveryTarget `json:"targets"`
	Value   Value            `json:"value"`
}

type DeliveryTarget struct {
	DeliveryGroup DeliveryGroupTarget `json:"deliveryGroup"`
}

type DeliveryGroupTarget struct {
	ID string `json:"id"`
}

func orderDiscountOp(message string, excludedLineIDs []string, value Value) Operation {
	if excludedLineIDs == nil {
		excludedLineIDs = []string{}
	}
	return Operation{
		OrderDiscountsAdd: &OrderDiscountsAdd{
			SelectionStrategy: SelectionFirst,
			Candidates: []OrderCandidate{{
				Message: message,
				Targets: []OrderTarget{{
					OrderSubtotal: OrderSubtotalTarget{ExcludedCartLineIDs: excludedLineIDs},
				}},
				Value: value,
			}},
		},
	}
}

func lineDiscountOp(message string, lineIDs []string, value Value) Operation {
	targets := make([]LineTarget, len(lineIDs))
	for i, id := range lineIDs {
		targets[i] = LineTarget{CartLine: CartLineTarget{ID: id}}
	}
	return Operation{
		ProductDiscountsAdd: &ProductDiscountsAdd{
			SelectionStrategy: SelectionFirst,
			Candidates: []ProductCandidate{{
				Message: message,
				Targets: targets,
				Value:   value,
			}},
		},
	}
}

func deliveryDiscountOp(message, groupID string, value Value) Operation {
	return Operation{
		DeliveryDiscountsAdd: &DeliveryDiscountsAdd{
			SelectionStrategy: SelectionAll,
			Candidates: []DeliveryCandidate{{
				Message: message,
				Targets: []DeliveryTarget{{
					DeliveryGroup: DeliveryGroupTarget{ID: groupID},
				}},
				Value: value,
			}},
		},
	}
}
