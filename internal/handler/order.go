package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"

	"github.com/mirante-studio/studio-api/internal/domain/order"
	"github.com/mirante-studio/studio-api/pkg/money"
)

type orderItemRequest struct {
	ItemID      string       `json:"item_id"`
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	VariantName string       `json:"variant_name"`
	Price       money.Amount `json:"price"`
	Quantity    int          `json:"quantity"`
}

type placeOrderRequest struct {
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	Items         []orderItemRequest `json:"items"`
	CouponCode    string             `json:"coupon_code"`
}

type orderView struct {
	ID            string       `json:"id"`
	CustomerName  string       `json:"customer_name"`
	CustomerEmail string       `json:"customer_email"`
	Items         []order.Item `json:"items"`
	Subtotal      string       `json:"subtotal"`
	Discount      string       `json:"discount"`
	Total         string       `json:"total"`
	CouponCode    string       `json:"coupon_code,omitempty"`
	PaymentStatus string       `json:"payment_status"`
}

func toOrderView(o *order.Order) orderView {
	return orderView{
		ID:            o.ID,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Items:         o.Items,
		Subtotal:      o.Subtotal.String(),
		Discount:      o.Discount.String(),
		Total:         o.Total.String(),
		CouponCode:    o.CouponCode,
		PaymentStatus: o.PaymentStatus,
	}
}

// Orders routes /api/orders: POST places an order, GET with a trailing id
// fetches one.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.placeOrder(w, r)
	case http.MethodGet:
		h.getOrder(w, r)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]order.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.Item{
			ItemID:      it.ItemID,
			Name:        it.Name,
			Type:        it.Type,
			VariantName: it.VariantName,
			Price:       it.Price.Decimal,
			Quantity:    it.Quantity,
		}
	}

	o, err := h.orderService.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Items:         items,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		mapOrderError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toOrderView(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusBadRequest, "order id is required")
		return
	}

	o, err := h.orderService.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(r.Context()).Error("Getting order", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "getting order")
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderView(o))
}

// mapOrderError converts domain errors to HTTP responses.
func mapOrderError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, order.ErrEmptyItems) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var iqErr *order.InvalidQuantityError
	if errors.As(err, &iqErr) {
		writeError(w, r, http.StatusUnprocessableEntity, iqErr.Error())
		return
	}

	if errors.Is(err, order.ErrCouponInvalid) {
		writeError(w, r, http.StatusUnprocessableEntity, "invalid coupon code")
		return
	}

	zctx.From(r.Context()).Error("Placing order", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "placing order")
}
