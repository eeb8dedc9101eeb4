package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcilabs/discount-engine/internal/domain/cart"
	"github.com/jcilabs/discount-engine/internal/domain/discount"
)

func giftLine(id, variantID, subtotal string) cart.Line {
	return cart.Line{
		ID:             id,
		MerchandiseID:  "gid://shopify/ProductVariant/" + variantID,
		SubtotalAmount: d(subtotal),
	}
}

func TestEvaluateFreeGift(t *testing.T) {
	gift := &discount.GiftRule{
		VariantIDs:      []string{"V1"},
		ThresholdAmount: d("50.00"),
	}

	tests := []struct {
		name     string
		lines    []cart.Line
		gift     *discount.GiftRule
		wantOps  int
		wantLine string
	}{
		{
			name: "qualified above threshold",
			lines: []cart.Line{
				giftLine("l1", "other", "60.00"),
				giftLine("l2", "V1", "0.00"),
			},
			gift:     gift,
			wantOps:  1,
			wantLine: "l2",
		},
		{
			name: "not qualified below threshold",
			lines: []cart.Line{
				giftLine("l1", "other", "40.00"),
				giftLine("l2", "V1", "0.00"),
			},
			gift:    gift,
			wantOps: 0,
		},
		{
			name: "exactly at threshold does not qualify",
			lines: []cart.Line{
				giftLine("l1", "other", "50.00"),
				giftLine("l2", "V1", "0.00"),
			},
			gift:    gift,
			wantOps: 0,
		},
		{
			name: "no gift-eligible line present",
			lines: []cart.Line{
				giftLine("l1", "other", "100.00"),
			},
			gift:    gift,
			wantOps: 0,
		},
		{
			name: "empty gift list never qualifies",
			lines: []cart.Line{
				giftLine("l1", "other", "100.00"),
				giftLine("l2", "V1", "0.00"),
			},
			gift:    &discount.GiftRule{ThresholdAmount: d("50.00")},
			wantOps: 0,
		},
		{
			name: "first matching line is the gift, later ones count toward total",
			lines: []cart.Line{
				giftLine("l1", "V1", "10.00"),
				giftLine("l2", "V1", "60.00"),
			},
			gift:     gift,
			wantOps:  1,
			wantLine: "l1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &cart.Snapshot{Lines: tt.lines}

			ops, err := EvaluateFreeGift(snap, tt.gift)
			require.NoError(t, err)
			require.Len(t, ops, tt.wantOps)
			if tt.wantOps == 0 {
				return
			}

			add := ops[0].ProductDiscountsAdd
			require.NotNil(t, add)
			cand := add.Candidates[0]
			require.Len(t, cand.Targets, 1)
			assert.Equal(t, tt.wantLine, cand.Targets[0].CartLine.ID)
			require.NotNil(t, cand.Value.Percentage)
			assert.True(t, d("100").Equal(cand.Value.Percentage.Value))
			assert.Equal(t, "FREE GIFT", cand.Message)
		})
	}
}

func TestEvaluateFreeGift_CustomTitle(t *testing.T) {
	snap := &cart.Snapshot{Lines: []cart.Line{
		giftLine("l1", "other", "60.00"),
		giftLine("l2", "V1", "0.00"),
	}}
	gift := &discount.GiftRule{
		VariantIDs:      []string{"V1"},
		ThresholdAmount: d("50.00"),
		Title:           "Holiday gift",
	}

	ops, err := EvaluateFreeGift(snap, gift)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "Holiday gift", ops[0].ProductDiscountsAdd.Candidates[0].Message)
}

func TestEvaluateFreeGift_EmptyCart(t *testing.T) {
	_, err := EvaluateFreeGift(&cart.Snapshot{}, &discount.GiftRule{VariantIDs: []string{"V1"}})
	require.ErrorIs(t, err, ErrNoCartLines)
}
