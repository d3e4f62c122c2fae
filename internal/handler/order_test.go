package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirante-studio/studio-api/internal/domain/coupon"
	"github.com/mirante-studio/studio-api/internal/domain/order"
)

func TestOrders(t *testing.T) {
	coupons := &mockCouponRepo{coupons: []coupon.Coupon{
		{ID: "c1", Code: "DEZ", DiscountType: coupon.DiscountPercentage, Value: dec("10"), Enabled: true},
	}}

	t.Run("place order with coupon", func(t *testing.T) {
		orders := newMockOrderRepo()
		h := NewHandler(coupons, order.NewService(coupons, orders), nil, nil)

		body := `{"customer_name":"Ana","customer_email":"ana@example.com",
			"items":[{"item_id":"portrait-1","name":"Ensaio Retrato","type":"portrait","price":"450,00","quantity":1}],
			"coupon_code":"dez"}`
		w := httptest.NewRecorder()
		h.Orders(w, httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, w.Code)
		var view orderView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.Equal(t, "450", view.Subtotal)
		assert.Equal(t, "45", view.Discount)
		assert.Equal(t, "405", view.Total)
		assert.Equal(t, order.PaymentStatusPending, view.PaymentStatus)
		assert.Len(t, orders.byID, 1)
	})

	t.Run("unknown coupon rejects the order", func(t *testing.T) {
		orders := newMockOrderRepo()
		h := NewHandler(coupons, order.NewService(coupons, orders), nil, nil)

		body := `{"items":[{"item_id":"a","price":100,"quantity":1}],"coupon_code":"NOPE"}`
		w := httptest.NewRecorder()
		h.Orders(w, httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body)))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Empty(t, orders.byID)
	})

	t.Run("empty items rejected", func(t *testing.T) {
		h := NewHandler(coupons, order.NewService(coupons, newMockOrderRepo()), nil, nil)

		w := httptest.NewRecorder()
		h.Orders(w, httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"items":[]}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get existing order", func(t *testing.T) {
		orders := newMockOrderRepo()
		orders.byID["ord-1"] = &order.Order{
			ID: "ord-1", Subtotal: dec("100"), Total: dec("100"),
			PaymentStatus: order.PaymentStatusPending,
		}
		h := NewHandler(coupons, order.NewService(coupons, orders), nil, nil)

		w := httptest.NewRecorder()
		h.Orders(w, httptest.NewRequest(http.MethodGet, "/api/orders/ord-1", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var view orderView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.Equal(t, "ord-1", view.ID)
	})

	t.Run("get missing order", func(t *testing.T) {
		h := NewHandler(coupons, order.NewService(coupons, newMockOrderRepo()), nil, nil)

		w := httptest.NewRecorder()
		h.Orders(w, httptest.NewRequest(http.MethodGet, "/api/orders/ghost", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
