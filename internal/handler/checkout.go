package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"

	"github.com/mirante-studio/studio-api/internal/mercadopago"
)

// CreatePreference creates a Mercado Pago checkout preference for the
// posted items and returns the redirect URL.
func (h *Handler) CreatePreference(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.mercadopago == nil {
		writeError(w, r, http.StatusPreconditionFailed, "checkout is not configured")
		return
	}

	var pref mercadopago.Preference
	if err := decodeBody(w, r, &pref); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.mercadopago.CreatePreference(r.Context(), pref)
	if err != nil {
		mapCheckoutError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, result)
}

// mapCheckoutError converts gateway errors to HTTP responses.
func mapCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, mercadopago.ErrInvalidPreference) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var apiErr *mercadopago.APIError
	if errors.As(err, &apiErr) {
		zctx.From(r.Context()).Warn("Upstream gateway error",
			zap.Int("status", apiErr.StatusCode()),
			zap.String("body", apiErr.Body),
		)
		writeError(w, r, http.StatusBadGateway, "payment gateway rejected the request")
		return
	}

	zctx.From(r.Context()).Error("Creating preference", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "creating checkout preference")
}
