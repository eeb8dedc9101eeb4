// Package handler exposes the evaluation engine and rule storage over HTTP.
// Handlers only map JSON to domain calls; all discount logic lives in the
// engine package.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/jcilabs/discount-engine/internal/domain/discount"
)

// Handler implements the HTTP API, delegating to the rule repository and the
// pure evaluation engine.
type Handler struct {
	rules discount.Repository
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(rules discount.Repository) *Handler {
	return &Handler{rules: rules}
}

// Register wires all API routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/evaluate/cart-lines", h.EvaluateCartLines)
	mux.HandleFunc("POST /api/evaluate/delivery-options", h.EvaluateDeliveryOptions)
	mux.HandleFunc("PUT /api/rules/{code}", h.UpsertRule)
	mux.HandleFunc("GET /api/rules/{code}", h.GetRule)
	mux.HandleFunc("GET /api/rules", h.ListRules)
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: message})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
