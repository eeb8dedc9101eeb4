package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcilabs/discount-engine/internal/domain/cart"
	"github.com/jcilabs/discount-engine/internal/domain/discount"
)

func productRule(value discount.Value, target discount.Target) *discount.Rule {
	return &discount.Rule{
		Kind:   discount.KindProductAmount,
		Value:  value,
		Target: target,
	}
}

func TestEvaluateProductAmount_AllScope(t *testing.T) {
	snap := orderSnapshot("60.00",
		line("l1", "p1", 1, "10.00"),
		line("l2", "p2", 1, "20.00"),
		line("l3", "p3", 1, "30.00"),
	)
	rule := productRule(
		discount.Value{Type: discount.ValueAmount, Amount: d("5.00")},
		discount.Target{Scope: discount.ScopeAll},
	)

	ops, err := Evaluate(snap, rule)
	require.NoError(t, err)
	require.Len(t, ops, 1)

	add := ops[0].ProductDiscountsAdd
	require.NotNil(t, add)
	assert.Equal(t, SelectionFirst, add.SelectionStrategy)
	require.Len(t, add.Candidates, 1)

	cand := add.Candidates[0]
	require.Len(t, cand.Targets, 3)
	assert.Equal(t, "l1", cand.Targets[0].CartLine.ID)
	assert.Equal(t, "l2", cand.Targets[1].CartLine.ID)
	assert.Equal(t, "l3", cand.Targets[2].CartLine.ID)
	require.NotNil(t, cand.Value.FixedAmount)
	assert.True(t, d("5.00").Equal(cand.Value.FixedAmount.Amount))
	assert.Equal(t, "5.00 off", cand.Message)
}

func TestEvaluateProductAmount_ProductScope(t *testing.T) {
	snap := orderSnapshot("60.00",
		line("l1", "p1", 1, "10.00"),
		line("l2", "p2", 1, "20.00"),
	)
	rule := productRule(
		discount.Value{Type: discount.ValuePercent, Percent: d("15")},
		discount.Target{Scope: discount.ScopeProducts, ProductIDs: []string{"p2"}},
	)

	ops, err := Evaluate(snap, rule)
	require.NoError(t, err)
	require.Len(t, ops, 1)

	cand := ops[0].ProductDiscountsAdd.Candidates[0]
	require.Len(t, cand.Targets, 1)
	assert.Equal(t, "l2", cand.Targets[0].CartLine.ID)
	require.NotNil(t, cand.Value.Percentage)
	assert.True(t, d("15").Equal(cand.Value.Percentage.Value))
	assert.Equal(t, "15% off", cand.Message)
}

func TestEvaluateProductAmount_NoTargetLines(t *testing.T) {
	snap := orderSnapshot("10.00", line("l1", "p1", 1, "10.00"))
	rule := productRule(
		discount.Value{Type: discount.ValueAmount, Amount: d("5")},
		discount.Target{Scope: discount.ScopeProducts, ProductIDs: []string{"p9"}},
	)

	ops, err := Evaluate(snap, rule)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestEvaluateProductAmount_InvalidValue(t *testing.T) {
	snap := orderSnapshot("10.00", line("l1", "p1", 1, "10.00"))
	rule := productRule(
		discount.Value{Type: discount.ValuePercent, Percent: d("101")},
		discount.Target{Scope: discount.ScopeAll},
	)

	ops, err := Evaluate(snap, rule)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestEvaluateProductAmount_MarkedLineNeverTargeted(t *testing.T) {
	snap := orderSnapshot("30.00",
		line("l1", "p1", 1, "10.00"),
		markedLine("l2", "p1", "20.00"),
	)
	rule := productRule(
		discount.Value{Type: discount.ValueAmount, Amount: d("5")},
		discount.Target{Scope: discount.ScopeAll},
	)

	ops, err := Evaluate(snap, rule)
	require.NoError(t, err)
	require.Len(t, ops, 1)

	cand := ops[0].ProductDiscountsAdd.Candidates[0]
	require.Len(t, cand.Targets, 1)
	assert.Equal(t, "l1", cand.Targets[0].CartLine.ID)
}
