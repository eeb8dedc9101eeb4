// Package cart defines the immutable cart snapshot the host platform supplies
// on every evaluation pass. The engine only reads and classifies these values.
package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountClass is a declared category gating which discount operations an
// evaluation pass may produce.
type DiscountClass string

const (
	ClassOrder    DiscountClass = "ORDER"
	ClassProduct  DiscountClass = "PRODUCT"
	ClassShipping DiscountClass = "SHIPPING"
)

// Line is one entry in the cart, referencing a purchasable product/variant.
type Line struct {
	ID string

	// Quantity of the merchandise on this line. Zero means the host omitted
	// it; EffectiveQuantity treats it as 1.
	Quantity int

	// ProductID identifies the product backing this line's merchandise.
	ProductID string

	// MerchandiseID is the variant-level identifier, usually a GID like
	// "gid://shopify/ProductVariant/123".
	MerchandiseID string

	SubtotalAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	PerUnitAmount  decimal.Decimal

	// DiscountMarker is non-empty when a prior discount has already been
	// applied to this line (product metafield or line attribute set by the
	// admin layer). Marked lines never receive another discount.
	DiscountMarker string
}

// EffectiveQuantity returns the line quantity, defaulting to 1 when the host
// omitted it or sent a non-positive value.
func (l Line) EffectiveQuantity() int {
	if l.Quantity < 1 {
		return 1
	}
	return l.Quantity
}

// AlreadyDiscounted reports whether this line carries a prior-discount marker.
func (l Line) AlreadyDiscounted() bool {
	return l.DiscountMarker != ""
}

// VariantID returns the trailing segment of the merchandise GID, which is how
// merchant-authored gift variant lists reference variants.
func (l Line) VariantID() string {
	if i := strings.LastIndexByte(l.MerchandiseID, '/'); i >= 0 {
		return l.MerchandiseID[i+1:]
	}
	return l.MerchandiseID
}

// DeliveryGroup is a shippable group of cart lines.
type DeliveryGroup struct {
	ID string
}

// Snapshot is the full cart state for a single evaluation pass.
type Snapshot struct {
	Lines          []Line
	SubtotalAmount decimal.Decimal

	// DiscountClasses are the classes the host requested for this pass.
	DiscountClasses []DiscountClass

	DeliveryGroups []DeliveryGroup
}

// HasClass reports whether the host requested the given discount class.
func (s *Snapshot) HasClass(c DiscountClass) bool {
	for _, dc := range s.DiscountClasses {
		if dc == c {
			return true
		}
	}
	return false
}
