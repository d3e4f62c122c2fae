// Package mercadopago is a minimal client for the two Mercado Pago REST
// calls this service needs: creating a hosted-checkout preference and
// fetching a payment by id.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/mirante-studio/studio-api/internal/domain/payment"
)

const defaultBaseURL = "https://api.mercadopago.com"

// Mode selects which credential profile the client uses. Both profiles are
// resolved once at startup; nothing is read ad hoc per call.
type Mode string

const (
	ModeTest Mode = "test"
	ModeProd Mode = "prod"
)

var (
	// ErrNotConfigured is returned by New when the selected profile has no
	// access token.
	ErrNotConfigured = errors.New("mercadopago: access token not configured")
	// ErrInvalidPreference is returned when a preference request fails
	// local validation before any gateway call is made.
	ErrInvalidPreference = errors.New("mercadopago: preference must contain at least one item")
)

// APIError is a non-2xx response from the gateway.
type APIError struct {
	Code int
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: gateway returned %d: %s", e.Code, e.Body)
}

// StatusCode returns the upstream HTTP status, used by the webhook
// reconciler for failure diagnostics.
func (e *APIError) StatusCode() int { return e.Code }

// Credentials is one named credential profile.
type Credentials struct {
	AccessToken string
}

// Config holds everything the client needs, resolved at process start.
type Config struct {
	BaseURL string // defaults to the public API host
	Mode    Mode   // defaults to ModeTest
	Test    Credentials
	Prod    Credentials
	Timeout time.Duration // network timeout, defaults to 10s
}

// Client calls the Mercado Pago API with a single, mode-selected token.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	mode    Mode
}

var _ payment.Gateway = (*Client)(nil)

// New builds a Client from the config, selecting the credential profile
// for the configured mode. Returns ErrNotConfigured when that profile has
// no token, so the caller can degrade gracefully instead of issuing
// unauthenticated calls.
func New(cfg Config) (*Client, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeTest
	}

	token := cfg.Test.AccessToken
	if mode == ModeProd {
		token = cfg.Prod.AccessToken
	}
	if token == "" {
		return nil, ErrNotConfigured
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
		mode:    mode,
	}, nil
}

// Mode reports which credential profile the client was built with.
func (c *Client) Mode() Mode { return c.mode }

// PreferenceItem is one line of a checkout preference.
type PreferenceItem struct {
	Title      string          `json:"title"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	CurrencyID string          `json:"currency_id,omitempty"`
}

// BackURLs are the redirect targets after hosted checkout completes.
type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

// Preference is a hosted-checkout preference request.
type Preference struct {
	Items             []PreferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference,omitempty"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	BackURLs          *BackURLs        `json:"back_urls,omitempty"`
	AutoReturn        string           `json:"auto_return,omitempty"`
}

// PreferenceResult is the gateway's answer to a created preference.
type PreferenceResult struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CreatePreference creates a hosted-checkout preference. The preference
// must contain at least one item; anything else is rejected locally with
// ErrInvalidPreference before touching the gateway.
func (c *Client) CreatePreference(ctx context.Context, pref Preference) (*PreferenceResult, error) {
	if len(pref.Items) == 0 {
		return nil, ErrInvalidPreference
	}

	body, err := json.Marshal(pref)
	if err != nil {
		return nil, errors.Wrap(err, "marshal preference")
	}

	respBody, err := c.do(ctx, http.MethodPost, "/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result PreferenceResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, errors.Wrap(err, "decode preference response")
	}
	return &result, nil
}

// GetPayment fetches the authoritative payment object by id.
func (c *Client) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/v1/payments/"+id, nil)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		ID                json.Number `json:"id"`
		Status            string      `json:"status"`
		ExternalReference string      `json:"external_reference"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, errors.Wrap(err, "decode payment response")
	}

	pid := decoded.ID.String()
	if pid == "" {
		pid = id
	}

	return &payment.Payment{
		ID:                pid,
		Status:            decoded.Status,
		ExternalReference: decoded.ExternalReference,
		Raw:               json.RawMessage(respBody),
	}, nil
}

// do issues one authenticated request and returns the response body.
// Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Code: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}
	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (" + strconv.Itoa(len(s)) + " bytes)"
}
