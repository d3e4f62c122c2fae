package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"

	"github.com/mirante-studio/studio-api/internal/domain/payment"
)

// webhookResponse is what the gateway sees. Anything other than a 2xx
// triggers redelivery on its side, so the body is informational only.
type webhookResponse struct {
	Received  bool   `json:"received"`
	Skipped   string `json:"skipped,omitempty"`
	Fetched   *bool  `json:"fetched,omitempty"`
	PaymentID string `json:"paymentId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// MercadoPagoWebhook receives payment notifications. Every delivery is
// audited before any processing, and transient fetch failures still get a
// 200 so the gateway backs off instead of hammering retries.
func (h *Handler) MercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Signature, X-Request-Id")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "reading body")
		return
	}

	// Notifications arrive in several shapes, some with no body at all
	// (query-only IPN). A body that fails to parse is not an error here:
	// the raw bytes are still audited.
	var parsed map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			zctx.From(r.Context()).Debug("Webhook body is not a JSON object", zap.Error(err))
			parsed = nil
		}
	}

	n := payment.Notification{
		Body:    parsed,
		Query:   r.URL.Query(),
		Headers: webhookHeaders(r),
		RawBody: body,
	}

	out, err := h.reconciler.Process(r.Context(), n)
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			writeError(w, r, http.StatusInternalServerError, "payment gateway not configured")
			return
		}
		zctx.From(r.Context()).Error("Processing webhook", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "processing notification")
		return
	}

	resp := webhookResponse{
		Received:  out.Received,
		Skipped:   out.Skipped,
		PaymentID: out.PaymentID,
	}
	if out.FetchAttempted {
		fetched := out.Fetched
		resp.Fetched = &fetched
		if !fetched {
			resp.Error = "payment lookup failed"
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// webhookHeaders captures the headers worth auditing alongside the payload.
func webhookHeaders(r *http.Request) map[string]string {
	out := make(map[string]string)
	for _, k := range []string{"X-Signature", "X-Request-Id", "User-Agent", "Content-Type"} {
		if v := r.Header.Get(k); v != "" {
			out[k] = v
		}
	}
	return out
}
