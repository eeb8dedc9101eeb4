package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcilabs/discount-engine/internal/domain/discount"
)

// memRepo is an in-memory discount.Repository for handler tests.
type memRepo struct {
	rules map[string]*discount.StoredRule
}

func newMemRepo() *memRepo {
	return &memRepo{rules: make(map[string]*discount.StoredRule)}
}

func (m *memRepo) FindByCode(_ context.Context, code string) (*discount.StoredRule, error) {
	r, ok := m.rules[strings.ToUpper(code)]
	if !ok || !r.Active {
		return nil, discount.ErrRuleNotFound
	}
	return r, nil
}

func (m *memRepo) Upsert(_ context.Context, rule *discount.StoredRule) error {
	m.rules[strings.ToUpper(rule.Code)] = rule
	return nil
}

func (m *memRepo) List(_ context.Context) ([]discount.StoredRule, error) {
	out := make([]discount.StoredRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, *r)
	}
	return out, nil
}

func newTestServer(repo discount.Repository) *httptest.Server {
	mux := http.NewServeMux()
	NewHandler(repo).Register(mux)
	return httptest.NewServer(mux)
}

func post(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := srv.Client().Post(srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func put(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, srv.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func evaluateBody(config string) map[string]any {
	return map[string]any{
		"cart": map[string]any{
			"lines": []map[string]any{
				{"id": "l1", "productId": "p1", "quantity": 1, "subtotalAmount": "150.00", "totalAmount": "150.00"},
			},
			"subtotalAmount":           "150.00",
			"requestedDiscountClasses": []string{"ORDER"},
		},
		"config": json.RawMessage(config),
	}
}

func TestEvaluateCartLines_InlineConfig(t *testing.T) {
	srv := newTestServer(newMemRepo())
	defer srv.Close()

	resp := post(t, srv, "/api/evaluate/cart-lines", evaluateBody(
		`{"kind":"ORDER_AMOUNT","value":{"type":"PERCENT","percent":0.10},"conditions":{"minimumSubtotal":100}}`,
	))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[evaluateResponse](t, resp)
	require.Len(t, out.Operations, 1)

	add := out.Operations[0].OrderDiscountsAdd
	require.NotNil(t, add)
	require.Len(t, add.Candidates, 1)
	assert.True(t, add.Candidates[0].Value.FixedAmount.Amount.Equal(dec(t, "15")),
		"got %s", add.Candidates[0].Value.FixedAmount.Amount)
}

func TestEvaluateCartLines_StoredRule(t *testing.T) {
	repo := newMemRepo()
	require.NoError(t, repo.Upsert(context.Background(), &discount.StoredRule{
		Code:   "SAVE10",
		Kind:   string(discount.KindOrderAmount),
		Config: []byte(`{"kind":"ORDER_AMOUNT","value":{"type":"PERCENT","percent":10}}`),
		Active: true,
	}))

	srv := newTestServer(repo)
	defer srv.Close()

	body := evaluateBody("")
	delete(body, "config")
	body["code"] = "save10"

	resp := post(t, srv, "/api/evaluate/cart-lines", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[evaluateResponse](t, resp)
	require.Len(t, out.Operations, 1)
}

func TestEvaluateCartLines_UnknownCode(t *testing.T) {
	srv := newTestServer(newMemRepo())
	defer srv.Close()

	body := evaluateBody("")
	delete(body, "config")
	body["code"] = "NOPE"

	resp := post(t, srv, "/api/evaluate/cart-lines", body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	e := decode[errorResponse](t, resp)
	assert.Equal(t, "unknown discount code", e.Message)
}

func TestEvaluateCartLines_MissingConfigAndCode(t *testing.T) {
	srv := newTestServer(newMemRepo())
	defer srv.Close()

	body := evaluateBody("")
	delete(body, "config")

	resp := post(t, srv, "/api/evaluate/cart-lines", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEvaluateCartLines_EmptyCart(t *testing.T) {
	srv := newTestServer(newMemRepo())
	defer srv.Close()

	body := evaluateBody(`{"kind":"ORDER_AMOUNT","value":{"type":"PERCENT","percent":10}}`)
	body["cart"] = map[string]any{
		"lines":                    []map[string]any{},
		"subtotalAmount":           "0",
		"requestedDiscountClasses": []string{"ORDER"},
	}

	resp := post(t, srv, "/api/evaluate/cart-lines", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	e := decode[errorResponse](t, resp)
	assert.Contains(t, e.Message, "no cart lines")
}

func TestEvaluateCartLines_RuleNotMetIsEmptyNotError(t *testing.T) {
	srv := newTestServer(newMemRepo())
	defer srv.Close()

	resp := post(t, srv, "/api/evaluate/cart-lines", evaluateBody(
		`{"kind":"ORDER_AMOUNT","value":{"type":"PERCENT","percent":10},"conditions":{"minimumSubtotal":"999"}}`,
	))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[evaluateResponse](t, resp)
	assert.Empty(t, out.Operations)
}

func TestEvaluateCartLines_FreeGift(t *testing.T) {
	srv := newTestServer(newMemRepo())
	defer srv.Close()

	body := map[string]any{
		"cart": map[string]any{
			"lines": []map[string]any{
				{"id": "l1", "productId": "p1", "merchandiseId": "gid://shopify/ProductVariant/other", "subtotalAmount": "60.00", "totalAmount": "60.00"},
				{"id": "l2", "productId": "p2", "merchandiseId": "gid://shopify/ProductVariant/V1", "subtotalAmount": "0.00", "totalAmount": "0.00"},
			},
			"subtotalAmount":           "60.00",
			"requestedDiscountClasses": []string{"PRODUCT"},
		},
		"config": json.RawMessage(`{"product_ids":"V1","threshold_amount":"50.00"}`),
	}

	resp := post(t, srv, "/api/evaluate/cart-lines", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[evaluateResponse](t, resp)
	require.Len(t, out.Operations, 1)

	add := out.Operations[0].ProductDiscountsAdd
	require.NotNil(t, add)
	assert.Equal(t, "l2", add.Candidates[0].Targets[0].CartLine.ID)
	assert.Equal(t, "FREE GIFT", add.Candidates[0].Message)
}

func TestEvaluateDeliveryOptions(t *testing.T) {
	srv := newTestServer(newMemRepo())
	defer srv.Close()

	body := map[string]any{
		"cart": map[string]any{
			"requestedDiscountClasses": []string{"SHIPPING"},
			"deliveryGroups":           []map[string]any{{"id": "g1"}},
		},
	}

	resp := post(t, srv, "/api/evaluate/delivery-options", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[evaluateResponse](t, resp)
	require.Len(t, out.Operations, 1)
	require.NotNil(t, out.Operations[0].DeliveryDiscountsAdd)
	assert.Equal(t, "g1", out.Operations[0].DeliveryDiscountsAdd.Candidates[0].Targets[0].DeliveryGroup.ID)
}

func TestUpsertAndGetRule(t *testing.T) {
	srv := newTestServer(newMemRepo())
	defer srv.Close()

	resp := put(t, srv, "/api/rules/bxgy21", map[string]any{
		"config":      json.RawMessage(`{"kind":"BXGY","buy":{"quantity":2},"get":{"quantity":1,"effect":{"type":"FREE"}}}`),
		"description": "buy 2 get 1 free",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	created := decode[ruleResponse](t, resp)
	assert.Equal(t, "BXGY21", created.Code)
	assert.Equal(t, string(discount.KindBXGY), created.Kind)
	assert.True(t, created.Active)

	resp = mustGet(t, srv, "/api/rules/BXGY21")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[ruleResponse](t, resp)
	assert.Equal(t, "buy 2 get 1 free", got.Description)
}

func TestUpsertRule_InvalidConfig(t *testing.T) {
	srv := newTestServer(newMemRepo())
	defer srv.Close()

	resp := put(t, srv, "/api/rules/bad", map[string]any{
		"config": json.RawMessage(`{"kind":`),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRule_NotFound(t *testing.T) {
	srv := newTestServer(newMemRepo())
	defer srv.Close()

	resp := mustGet(t, srv, "/api/rules/NOPE")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func mustGet(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()

	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	return resp
}

func dec(t *testing.T, v string) decimal.Decimal {
	t.Helper()

	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}
