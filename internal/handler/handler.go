// Package handler exposes the HTTP API: checkout preferences, coupon
// lookup and quoting, order placement, and the payment webhook.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/go-faster/sdk/zctx"

	"github.com/mirante-studio/studio-api/internal/domain/coupon"
	"github.com/mirante-studio/studio-api/internal/domain/order"
	"github.com/mirante-studio/studio-api/internal/domain/payment"
	"github.com/mirante-studio/studio-api/internal/mercadopago"
)

// maxBodyBytes bounds request bodies. Webhook payloads and checkout carts
// are both small; anything above this is rejected.
const maxBodyBytes = 1 << 20

// Handler holds the domain dependencies behind the HTTP endpoints.
type Handler struct {
	coupons      coupon.Repository
	orderService *order.Service
	reconciler   *payment.Reconciler
	mercadopago  *mercadopago.Client
}

// NewHandler constructs a Handler with the required domain dependencies.
// The mercadopago client may be nil when no credentials are configured;
// checkout endpoints then answer 412.
func NewHandler(
	coupons coupon.Repository,
	orderService *order.Service,
	reconciler *payment.Reconciler,
	mp *mercadopago.Client,
) *Handler {
	return &Handler{
		coupons:      coupons,
		orderService: orderService,
		reconciler:   reconciler,
		mercadopago:  mp,
	}
}

// errorResponse is the uniform error body for every endpoint.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Warn("Encoding response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: msg})
}

// decodeBody parses a JSON request body into v, enforcing the size limit.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
