package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/jcilabs/discount-engine/internal/domain/discount"
)

type upsertRuleRequest struct {
	Config      json.RawMessage `json:"config"`
	Description string          `json:"description"`
	Active      *bool           `json:"active"`
}

type ruleResponse struct {
	Code        string          `json:"code"`
	Kind        string          `json:"kind"`
	Config      json.RawMessage `json:"config"`
	Description string          `json:"description"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt,omitzero"`
	UpdatedAt   time.Time       `json:"updatedAt,omitzero"`
}

// UpsertRule stores the opaque configuration blob under a code. The blob must
// at least parse; its business validity is re-checked on every evaluation.
func (h *Handler) UpsertRule(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))

	var req upsertRuleRequest
	if !readJSON(w, r, &req) {
		return
	}
	if len(req.Config) == 0 {
		writeError(w, r, http.StatusBadRequest, "config is required")
		return
	}

	rule, err := discount.ParseRule(req.Config)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	stored := &discount.StoredRule{
		Code:        code,
		Kind:        string(rule.Kind),
		Config:      req.Config,
		Description: req.Description,
		Active:      active,
	}
	if err := h.rules.Upsert(r.Context(), stored); err != nil {
		writeError(w, r, http.StatusInternalServerError, "store rule failed")
		return
	}

	writeJSON(w, r, http.StatusOK, toRuleResponse(stored))
}

// GetRule returns the stored rule for a code.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	stored, err := h.rules.FindByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		if errors.Is(err, discount.ErrRuleNotFound) {
			writeError(w, r, http.StatusNotFound, "rule not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "rule lookup failed")
		return
	}

	writeJSON(w, r, http.StatusOK, toRuleResponse(stored))
}

// ListRules returns every stored rule.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "list rules failed")
		return
	}

	out := make([]ruleResponse, len(rules))
	for i := range rules {
		out[i] = toRuleResponse(&rules[i])
	}
	writeJSON(w, r, http.StatusOK, out)
}

func toRuleResponse(s *discount.StoredRule) ruleResponse {
	return ruleResponse{
		Code:        s.Code,
		Kind:        s.Kind,
		Config:      json.RawMessage(s.Config),
		Description: s.Description,
		Active:      s.Active,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
