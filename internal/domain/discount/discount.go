// Package discount defines the merchant-authored discount configuration: a
// tagged-variant rule decoded and normalized once at the boundary, so the
// evaluation engine operates on fully-typed values.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind discriminates the rule variants. An empty kind in the source JSON is
// the legacy untagged shape and maps to KindOrderAmount.
type Kind string

const (
	KindOrderAmount   Kind = "ORDER_AMOUNT"
	KindProductAmount Kind = "PRODUCT_AMOUNT"
	KindBXGY          Kind = "BXGY"
	KindFreeGift      Kind = "FREE_GIFT"
)

// Scope restricts applicability to an explicit set of product identifiers
// (ScopeProducts) or leaves it unrestricted (ScopeAll).
type Scope string

const (
	ScopeAll      Scope = "ALL"
	ScopeProducts Scope = "PRODUCTS"
)

// ValueType selects between a percentage and an absolute amount.
type ValueType string

const (
	ValuePercent ValueType = "PERCENT"
	ValueAmount  ValueType = "AMOUNT"
)

// Value is a normalized discount value descriptor. Percent is always on the
// 0–100 scale; ratio-style inputs (≤1) are scaled at decode time.
type Value struct {
	Type         ValueType
	Percent      decimal.Decimal
	Amount       decimal.Decimal
	CurrencyCode string
}

// Conditions gate an order-amount rule.
type Conditions struct {
	MinimumSubtotal decimal.Decimal

	// RequiresProducts is true when the source config declared an eligible
	// product allow-list, even an empty one. When false, any unmarked line is
	// eligible and RequiredProductIDs is meaningless.
	RequiresProducts   bool
	RequiredProductIDs []string
}

// Target scopes a product-amount rule.
type Target struct {
	Scope      Scope
	ProductIDs []string
}

// BuySide describes the buy requirement of a BXGY rule.
type BuySide struct {
	Quantity   int
	Scope      Scope
	ProductIDs []string
}

// EffectType enumerates the benefit applied to the "get" lines of a BXGY rule.
type EffectType string

const (
	EffectFree    EffectType = "FREE"
	EffectPercent EffectType = "PERCENT"
	EffectAmount  EffectType = "AMOUNT"
)

// GetEffect is the benefit descriptor of the get side. An unrecognized or
// absent effect type leaves Type empty, which the engine rejects.
type GetEffect struct {
	Type         EffectType
	Percent      decimal.Decimal
	Amount       decimal.Decimal
	CurrencyCode string
}

// GetSide describes which lines of a BXGY rule receive the benefit.
type GetSide struct {
	Quantity   int
	Scope      Scope
	ProductIDs []string
	Effect     GetEffect
}

// Application controls BXGY bundle repetition.
type Application struct {
	Repeats    bool
	MaxRepeats int // 0 means no cap
}

// GiftRule is the free-gift threshold configuration. VariantIDs reference the
// gift-eligible merchandise by the trailing segment of their GID.
type GiftRule struct {
	VariantIDs      []string
	ThresholdAmount decimal.Decimal
	Title           string
}

// Rule is the decoded, normalized discount configuration.
type Rule struct {
	Kind        Kind
	Value       Value
	Conditions  Conditions
	Target      Target
	Buy         BuySide
	Get         GetSide
	Application Application

	// Gift is set only when Kind is KindFreeGift.
	Gift *GiftRule
}

// ErrRuleNotFound is returned when no stored rule exists for a code.
var ErrRuleNotFound = errors.New("discount rule not found")

// StoredRule is a persisted discount configuration keyed by its code. Config
// holds the opaque JSON blob exactly as the admin layer authored it; it is
// parsed fresh on every evaluation.
type StoredRule struct {
	Code        string
	Kind        string
	Config      []byte
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository provides lookup and mutation of stored discount rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*StoredRule, error)
	Upsert(ctx context.Context, rule *StoredRule) error
	List(ctx context.Context) ([]StoredRule, error)
}
