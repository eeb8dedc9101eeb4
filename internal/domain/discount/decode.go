package discount

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// NormalizePercent maps a percent that may be authored as a 0–1 ratio or on
// the 0–100 scale onto the 0–100 scale: values ≤ 1 are treated as ratios and
// scaled ×100. Applied exactly once, here at decode time.
func NormalizePercent(raw decimal.Decimal) decimal.Decimal {
	if raw.LessThanOrEqual(one) {
		return raw.Mul(hundred)
	}
	return raw
}

// ParseRule decodes the opaque configuration blob attached to a discount into
// a normalized Rule. It is deliberately tolerant: amounts and percents may be
// numbers or strings, fields may be null or absent, and the legacy untagged
// percentage/amount shape maps to KindOrderAmount. Non-numeric values decode
// to zero and are later rejected by the engine as a rule mismatch.
//
// Only malformed JSON produces an error; an unrecognized kind is preserved
// as-is so the engine can resolve it to an empty operation list.
func ParseRule(data []byte) (*Rule, error) {
	raw := rawConfig{}
	d := jx.DecodeBytes(data)
	if err := d.Obj(raw.field); err != nil {
		return nil, errors.Wrap(err, "parse discount config")
	}
	return raw.rule(), nil
}

// rawConfig accumulates every field the legacy and tagged shapes may carry
// before resolution into a Rule.
type rawConfig struct {
	kind       string
	legacyType string
	value      rawValue

	minimumSubtotal  decimal.Decimal
	requiresProducts bool
	requiredIDs      []string

	targetScope string
	targetIDs   []string

	buyQty   int
	buyScope string
	buyIDs   []string

	getQty    int
	getScope  string
	getIDs    []string
	getEffect rawValue

	repeats    bool
	maxRepeats int

	// Free-gift metaobject fields.
	giftVariantCSV string
	giftVariantIDs []string
	sawGiftFields  bool
	threshold      decimal.Decimal
	giftTitle      string
}

type rawValue struct {
	typ        string
	percent    decimal.Decimal
	percentage decimal.Decimal // legacy field name
	amount     decimal.Decimal
	currency   string
}

func (v *rawValue) field(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "type":
		v.typ, err = decodeString(d)
	case "percent":
		v.percent, err = decodeDecimal(d)
	case "percentage":
		v.percentage, err = decodeDecimal(d)
	case "amount":
		v.amount, err = decodeDecimal(d)
	case "currencyCode":
		v.currency, err = decodeString(d)
	default:
		err = d.Skip()
	}
	return err
}

func (c *rawConfig) field(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "kind":
		c.kind, err = decodeString(d)
	case "type":
		c.legacyType, err = decodeString(d)
	case "value":
		err = decodeObj(d, c.value.field)
	case "conditions":
		err = decodeObj(d, c.conditionsField)
	case "target":
		err = decodeObj(d, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "scope":
				c.targetScope, err = decodeString(d)
			case "eligibleProductIds":
				c.targetIDs, _, err = decodeStringList(d)
			default:
				err = d.Skip()
			}
			return err
		})
	case "buy":
		err = decodeObj(d, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "quantity":
				c.buyQty, err = decodeInt(d)
			case "scope":
				c.buyScope, err = decodeString(d)
			case "eligibleProductIds":
				c.buyIDs, _, err = decodeStringList(d)
			default:
				err = d.Skip()
			}
			return err
		})
	case "get":
		err = decodeObj(d, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "quantity":
				c.getQty, err = decodeInt(d)
			case "scope":
				c.getScope, err = decodeString(d)
			case "eligibleProductIds":
				c.getIDs, _, err = decodeStringList(d)
			case "effect":
				err = decodeObj(d, c.getEffect.field)
			default:
				err = d.Skip()
			}
			return err
		})
	case "application":
		err = decodeObj(d, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "repeats":
				c.repeats, err = decodeBool(d)
			case "maxRepeatsPerOrder":
				c.maxRepeats, err = decodeInt(d)
			default:
				err = d.Skip()
			}
			return err
		})
	case "product_ids":
		c.sawGiftFields = true
		if d.Next() == jx.Array {
			c.giftVariantIDs, _, err = decodeStringList(d)
		} else {
			c.giftVariantCSV, err = decodeString(d)
		}
	case "threshold_amount":
		c.sawGiftFields = true
		c.threshold, err = decodeDecimal(d)
	case "discountTitle":
		c.giftTitle, err = decodeString(d)
	default:
		err = d.Skip()
	}
	return err
}

func (c *rawConfig) conditionsField(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "minimumSubtotal":
		c.minimumSubtotal, err = decodeDecimal(d)
	case "requiresProducts":
		err = decodeObj(d, func(d *jx.Decoder, key string) error {
			if key != "eligibleProductIds" {
				return d.Skip()
			}
			var declared bool
			var err error
			c.requiredIDs, declared, err = decodeStringList(d)
			if declared {
				c.requiresProducts = true
			}
			return err
		})
	default:
		err = d.Skip()
	}
	return err
}

// rule resolves the accumulated raw fields into a normalized Rule.
func (c *rawConfig) rule() *Rule {
	kind := Kind(c.kind)
	if c.kind == "" {
		// Legacy untagged configs are order-amount rules.
		kind = KindOrderAmount
	}
	if kind == KindFreeGift || (c.kind == "" && c.sawGiftFields) {
		return &Rule{
			Kind: KindFreeGift,
			Gift: &GiftRule{
				VariantIDs:      c.giftVariants(),
				ThresholdAmount: c.threshold,
				Title:           c.giftTitle,
			},
		}
	}

	return &Rule{
		Kind:  kind,
		Value: c.value.resolve(c.legacyType),
		Conditions: Conditions{
			MinimumSubtotal:    c.minimumSubtotal,
			RequiresProducts:   c.requiresProducts,
			RequiredProductIDs: c.requiredIDs,
		},
		Target: Target{
			Scope:      parseScope(c.targetScope),
			ProductIDs: c.targetIDs,
		},
		Buy: BuySide{
			Quantity:   atLeastOne(c.buyQty),
			Scope:      parseScope(c.buyScope),
			ProductIDs: c.buyIDs,
		},
		Get: GetSide{
			Quantity:   atLeastOne(c.getQty),
			Scope:      parseScope(c.getScope),
			ProductIDs: c.getIDs,
			Effect:     c.getEffect.effect(),
		},
		Application: Application{
			Repeats:    c.repeats,
			MaxRepeats: c.maxRepeats,
		},
	}
}

func (c *rawConfig) giftVariants() []string {
	if c.giftVariantIDs != nil {
		return c.giftVariantIDs
	}
	if c.giftVariantCSV == "" {
		return nil
	}
	parts := strings.Split(c.giftVariantCSV, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// resolve prefers the tagged value descriptor, falling back to the legacy
// percentage/amount shape.
func (v rawValue) resolve(legacyType string) Value {
	switch {
	case v.typ == string(ValueAmount):
		return Value{Type: ValueAmount, Amount: v.amount, CurrencyCode: v.currency}
	case v.typ == string(ValuePercent):
		return Value{Type: ValuePercent, Percent: NormalizePercent(v.percent)}
	case legacyType == "amount":
		return Value{Type: ValueAmount, Amount: v.amount, CurrencyCode: v.currency}
	default:
		return Value{Type: ValuePercent, Percent: NormalizePercent(v.percentage)}
	}
}

func (v rawValue) effect() GetEffect {
	switch EffectType(v.typ) {
	case EffectFree:
		return GetEffect{Type: EffectFree}
	case EffectPercent:
		return GetEffect{Type: EffectPercent, Percent: NormalizePercent(v.percent)}
	case EffectAmount:
		return GetEffect{Type: EffectAmount, Amount: v.amount, CurrencyCode: v.currency}
	default:
		return GetEffect{}
	}
}

func parseScope(s string) Scope {
	if Scope(s) == ScopeProducts {
		return ScopeProducts
	}
	return ScopeAll
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// decodeObj decodes an object field, treating null (or a non-object value) as
// absent.
func decodeObj(d *jx.Decoder, f func(d *jx.Decoder, key string) error) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	return d.Obj(f)
}

// decodeDecimal accepts a JSON number or a numeric string. Null, absent, and
// non-numeric values decode to zero, which downstream validation rejects.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return decimal.Zero, nil
		}
		return v, nil
	case jx.Number:
		raw, err := d.Raw()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(string(raw))
		if err != nil {
			return decimal.Zero, nil
		}
		return v, nil
	default:
		return decimal.Zero, d.Skip()
	}
}

func decodeInt(d *jx.Decoder) (int, error) {
	v, err := decodeDecimal(d)
	if err != nil {
		return 0, err
	}
	return int(v.IntPart()), nil
}

func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() != jx.String {
		return "", d.Skip()
	}
	return d.Str()
}

func decodeBool(d *jx.Decoder) (bool, error) {
	if d.Next() != jx.Bool {
		return false, d.Skip()
	}
	return d.Bool()
}

// decodeStringList decodes an array of identifiers, stringifying numeric
// elements. It reports declared=true for both arrays and explicit null (a
// null list means "declared but empty", which differs from an absent one).
func decodeStringList(d *jx.Decoder) (ids []string, declared bool, err error) {
	switch d.Next() {
	case jx.Array:
		ids = []string{}
		err = d.Arr(func(d *jx.Decoder) error {
			switch d.Next() {
			case jx.String:
				s, err := d.Str()
				if err != nil {
					return err
				}
				ids = append(ids, s)
				return nil
			case jx.Number:
				raw, err := d.Raw()
				if err != nil {
					return err
				}
				ids = append(ids, string(raw))
				return nil
			default:
				return d.Skip()
			}
		})
		return ids, true, err
	case jx.Null:
		return []string{}, true, d.Null()
	default:
		return nil, false, d.Skip()
	}
}
