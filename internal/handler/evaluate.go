package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/jcilabs/discount-engine/internal/domain/cart"
	"github.com/jcilabs/discount-engine/internal/domain/discount"
	"github.com/jcilabs/discount-engine/internal/engine"
)

// cartRequest mirrors the snapshot shape the host platform supplies.
type cartRequest struct {
	Lines           []cartLineRequest      `json:"lines"`
	SubtotalAmount  decimal.Decimal        `json:"subtotalAmount"`
	DiscountClasses []string               `json:"requestedDiscountClasses"`
	DeliveryGroups  []deliveryGroupRequest `json:"deliveryGroups"`
}

type cartLineRequest struct {
	ID             string          `json:"id"`
	Quantity       int             `json:"quantity"`
	ProductID      string          `json:"productId"`
	MerchandiseID  string          `json:"merchandiseId"`
	SubtotalAmount decimal.Decimal `json:"subtotalAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	PerUnitAmount  decimal.Decimal `json:"perUnitAmount"`
	DiscountMarker string          `json:"discountMarker"`
}

type deliveryGroupRequest struct {
	ID string `json:"id"`
}

// evaluateRequest carries the cart snapshot and the discount configuration,
// either inline (config) or by stored rule code.
type evaluateRequest struct {
	Cart   cartRequest     `json:"cart"`
	Code   string          `json:"code"`
	Config json.RawMessage `json:"config"`
}

type evaluateResponse struct {
	Operations []engine.Operation `json:"operations"`
}

// EvaluateCartLines runs the cart-lines evaluation: order-amount,
// product-amount, BXGY, and free-gift rules.
func (h *Handler) EvaluateCartLines(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !readJSON(w, r, &req) {
		return
	}

	rule, ok := h.resolveRule(w, r, &req)
	if !ok {
		return
	}

	snap := toSnapshot(req.Cart)

	var (
		ops []engine.Operation
		err error
	)
	if rule.Kind == discount.KindFreeGift {
		ops, err = engine.EvaluateFreeGift(snap, rule.Gift)
	} else {
		ops, err = engine.Evaluate(snap, rule)
	}
	if err != nil {
		// Only structural input errors cross the engine boundary.
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	writeOperations(w, r, ops)
}

// EvaluateDeliveryOptions runs the delivery-options evaluation.
func (h *Handler) EvaluateDeliveryOptions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cart cartRequest `json:"cart"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	ops, err := engine.EvaluateDelivery(toSnapshot(req.Cart))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	writeOperations(w, r, ops)
}

// resolveRule parses the inline config when present, otherwise loads the
// stored rule by code.
func (h *Handler) resolveRule(w http.ResponseWriter, r *http.Request, req *evaluateRequest) (*discount.Rule, bool) {
	config := []byte(req.Config)
	if len(config) == 0 {
		if req.Code == "" {
			writeError(w, r, http.StatusBadRequest, "either config or code is required")
			return nil, false
		}

		stored, err := h.rules.FindByCode(r.Context(), req.Code)
		if err != nil {
			if errors.Is(err, discount.ErrRuleNotFound) {
				writeError(w, r, http.StatusUnprocessableEntity, "unknown discount code")
				return nil, false
			}
			writeError(w, r, http.StatusInternalServerError, "rule lookup failed")
			return nil, false
		}
		config = stored.Config
	}

	rule, err := discount.ParseRule(config)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return rule, true
}

func writeOperations(w http.ResponseWriter, r *http.Request, ops []engine.Operation) {
	if ops == nil {
		ops = []engine.Operation{}
	}
	writeJSON(w, r, http.StatusOK, evaluateResponse{Operations: ops})
}

func toSnapshot(req cartRequest) *cart.Snapshot {
	lines := make([]cart.Line, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = cart.Line{
			ID:             l.ID,
			Quantity:       l.Quantity,
			ProductID:      l.ProductID,
			MerchandiseID:  l.MerchandiseID,
			SubtotalAmount: l.SubtotalAmount,
			TotalAmount:    l.TotalAmount,
			PerUnitAmount:  l.PerUnitAmount,
			DiscountMarker: l.DiscountMarker,
		}
	}

	classes := make([]cart.DiscountClass, len(req.DiscountClasses))
	for i, c := range req.DiscountClasses {
		classes[i] = cart.DiscountClass(c)
	}

	groups := make([]cart.DeliveryGroup, len(req.DeliveryGroups))
	for i, g := range req.DeliveryGroups {
		groups[i] = cart.DeliveryGroup{ID: g.ID}
	}

	return &cart.Snapshot{
		Lines:           lines,
		SubtotalAmount:  req.SubtotalAmount,
		DiscountClasses: classes,
		DeliveryGroups:  groups,
	}
}
