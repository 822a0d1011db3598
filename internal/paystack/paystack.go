// Package paystack is a minimal client for the Paystack transaction API:
// initialize a hosted checkout, verify a charge, and authenticate webhook
// deliveries.
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventChargeSuccess is the webhook event fired when a charge completes.
const EventChargeSuccess = "charge.success"

// Client calls the Paystack REST API with a secret key. Amounts cross the
// wire in subunits (cents), so callers pass decimal major units and the
// conversion happens exactly, never through a float.
type Client struct {
	baseURL   string
	secretKey string
	httpc     *http.Client
}

func New(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpc:     &http.Client{Timeout: 15 * time.Second},
	}
}

// NewReference returns a unique transaction reference.
func NewReference() string {
	return "bc-" + uuid.NewString()
}

// Checkout is the hosted payment page returned by Initialize.
type Checkout struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Charge is the verified state of a transaction. Amount is in major units.
type Charge struct {
	Reference string
	Status    string
	Amount    decimal.Decimal
	Currency  string
	Email     string
}

// Succeeded reports whether the charge completed.
func (ch Charge) Succeeded() bool {
	return ch.Status == "success"
}

// Initialize creates a transaction and returns the checkout the customer
// should be redirected to.
func (c *Client) Initialize(ctx context.Context, email string, amount decimal.Decimal, currency, reference, callbackURL string) (Checkout, error) {
	body, err := json.Marshal(struct {
		Email       string `json:"email"`
		Amount      int64  `json:"amount"`
		Currency    string `json:"currency"`
		Reference   string `json:"reference"`
		CallbackURL string `json:"callback_url,omitempty"`
	}{
		Email:       email,
		Amount:      amount.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:    currency,
		Reference:   reference,
		CallbackURL: callbackURL,
	})
	if err != nil {
		return Checkout{}, fmt.Errorf("encode initialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return Checkout{}, fmt.Errorf("build initialize request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Checkout{}, fmt.Errorf("call paystack initialize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Checkout{}, fmt.Errorf("paystack initialize returned status %d", resp.StatusCode)
	}

	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Checkout{}, fmt.Errorf("decode initialize response: %w", err)
	}
	if !out.Status {
		return Checkout{}, fmt.Errorf("paystack initialize rejected: %s", out.Message)
	}

	return Checkout{
		AuthorizationURL: out.Data.AuthorizationURL,
		AccessCode:       out.Data.AccessCode,
		Reference:        out.Data.Reference,
	}, nil
}

// Verify fetches the authoritative state of a transaction by reference.
// Callers must trust this result over anything a callback query string says.
func (c *Client) Verify(ctx context.Context, reference string) (Charge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return Charge{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Charge{}, fmt.Errorf("call paystack verify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Charge{}, fmt.Errorf("paystack verify returned status %d", resp.StatusCode)
	}

	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
			Customer  struct {
				Email string `json:"email"`
			} `json:"customer"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Charge{}, fmt.Errorf("decode verify response: %w", err)
	}
	if !out.Status {
		return Charge{}, fmt.Errorf("paystack verify rejected: %s", out.Message)
	}

	return Charge{
		Reference: out.Data.Reference,
		Status:    out.Data.Status,
		Amount:    decimal.NewFromInt(out.Data.Amount).Div(decimal.NewFromInt(100)),
		Currency:  out.Data.Currency,
		Email:     out.Data.Customer.Email,
	}, nil
}

// ValidateSignature reports whether sig is the hex HMAC-SHA512 of body
// under the secret key, as Paystack sends in the x-paystack-signature
// header. The comparison is constant-time.
func (c *Client) ValidateSignature(body []byte, sig string) bool {
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(sig))
}

// Event is a decoded webhook delivery.
type Event struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body.
func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	return ev, nil
}

// Charge converts the event payload into the same shape Verify returns.
func (ev Event) Charge() Charge {
	return Charge{
		Reference: ev.Data.Reference,
		Status:    ev.Data.Status,
		Amount:    decimal.NewFromInt(ev.Data.Amount).Div(decimal.NewFromInt(100)),
		Currency:  ev.Data.Currency,
		Email:     ev.Data.Customer.Email,
	}
}
