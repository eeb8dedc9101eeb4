package engine

import (
	"github.com/shopspring/decimal"

	"github.com/jcilabs/discount-engine/internal/domain/cart"
	"github.com/jcilabs/discount-engine/internal/domain/discount"
)

const defaultGiftMessage = "FREE GIFT"

// EvaluateFreeGift is the free-gift entry point: when the non-gift lines'
// subtotal strictly exceeds the configured threshold, the first gift-eligible
// line gets 100% off.
//
// The scan is a single pass: the first line whose variant ID appears in the
// gift list becomes the candidate and is left out of the running total; every
// other line contributes its subtotal. An empty gift list never qualifies.
func EvaluateFreeGift(snap *cart.Snapshot, gift *discount.GiftRule) ([]Operation, error) {
	if len(snap.Lines) == 0 {
		return nil, ErrNoCartLines
	}
	if gift == nil || len(gift.VariantIDs) == 0 {
		return nil, nil
	}

	giftVariants := stringSet(gift.VariantIDs)

	var giftLine *cart.Line
	total := decimal.Zero
	for i := range snap.Lines {
		l := snap.Lines[i]
		if giftLine == nil {
			if _, ok := giftVariants[l.VariantID()]; ok {
				giftLine = &snap.Lines[i]
				continue
			}
		}
		total = total.Add(l.SubtotalAmount)
	}

	if giftLine == nil {
		return nil, nil
	}
	if total.LessThanOrEqual(gift.ThresholdAmount) {
		return nil, nil
	}

	msg := gift.Title
	if msg == "" {
		msg = defaultGiftMessage
	}
	op := lineDiscountOp(msg, []string{giftLine.ID}, PercentValue(hundred))
	return []Operation{op}, nil
}
