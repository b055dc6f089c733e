// Package payment talks to PayPal's checkout API. The sandbox/live split is
// resolved per payment attempt from configuration, never from ambient
// state, and a missing credential pair fails fast before any network call.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/royal-restaurant/api/internal/config"
	"github.com/shopspring/decimal"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"

	// currencyCode is the single currency the service operates in. Checkout
	// orders are created with it and captures are verified against it.
	currencyCode = "USD"
)

// ErrMisconfigured indicates the selected credential pair (sandbox or live)
// is incomplete. Surfaced at resolution time so a failed network attempt is
// never mistaken for an operator setup defect.
var ErrMisconfigured = errors.New("payment credentials are not configured")

// Mode is the resolved payment environment: endpoint plus credential pair.
type Mode struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Sandbox      bool
}

// ResolveMode picks the credential set and API endpoint for the configured
// environment. Pure function of cfg.Sandbox.
func ResolveMode(cfg config.PayPalConfig) (Mode, error) {
	mode := Mode{Sandbox: cfg.Sandbox}
	if cfg.Sandbox {
		mode.BaseURL = sandboxBaseURL
		mode.ClientID = cfg.SandboxClientID
		mode.ClientSecret = cfg.SandboxSecret
	} else {
		mode.BaseURL = liveBaseURL
		mode.ClientID = cfg.LiveClientID
		mode.ClientSecret = cfg.LiveSecret
	}
	if mode.ClientID == "" || mode.ClientSecret == "" {
		env := "live"
		if cfg.Sandbox {
			env = "sandbox"
		}
		return Mode{}, fmt.Errorf("%s client id/secret: %w", env, ErrMisconfigured)
	}
	return mode, nil
}

// Outcome classifies a capture attempt.
type Outcome int

const (
	// OutcomeSuccess: the provider confirmed the capture for the expected
	// amount.
	OutcomeSuccess Outcome = iota
	// OutcomeDeclined: the provider rejected the capture, or confirmed an
	// amount different from the order total. Terminal.
	OutcomeDeclined
	// OutcomeProviderError: transport failure or provider-side error.
	// Retryable; the order must stay PENDING.
	OutcomeProviderError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeDeclined:
		return "DECLINED"
	default:
		return "PROVIDER_ERROR"
	}
}

// Verification is the result of a capture attempt.
type Verification struct {
	Outcome     Outcome
	ProviderRef string
}

// CheckoutOrder is a provider-side order awaiting buyer approval.
type CheckoutOrder struct {
	ID          string
	ApprovalURL string
}

// Client performs authenticated calls against the resolved PayPal endpoint.
type Client struct {
	cfg        config.PayPalConfig
	httpClient *http.Client

	// baseURL overrides the resolved endpoint; used by tests.
	baseURL string
}

// New creates a PayPal client. Credentials are validated lazily, on each
// call, so a misconfigured live deployment fails at confirm time with
// ErrMisconfigured rather than at startup.
func New(cfg config.PayPalConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) resolve() (Mode, error) {
	mode, err := ResolveMode(c.cfg)
	if err != nil {
		return Mode{}, err
	}
	if c.baseURL != "" {
		mode.BaseURL = c.baseURL
	}
	return mode, nil
}

// accessToken obtains a client-credentials bearer token.
func (c *Client) accessToken(ctx context.Context, mode Mode) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		mode.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(mode.ClientID, mode.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("token request: status %d: %s", resp.StatusCode, body)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}
	return tok.AccessToken, nil
}

// CreateOrder creates a provider-side checkout order for the given total
// and returns the link the buyer must be redirected to for approval.
func (c *Client) CreateOrder(ctx context.Context, total decimal.Decimal, returnURL, cancelURL string) (CheckoutOrder, error) {
	mode, err := c.resolve()
	if err != nil {
		return CheckoutOrder{}, err
	}
	token, err := c.accessToken(ctx, mode)
	if err != nil {
		return CheckoutOrder{}, err
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]string{
				"currency_code": currencyCode,
				"value":         total.StringFixed(2),
			},
		}},
		"application_context": map[string]string{
			"return_url":  returnURL,
			"cancel_url":  cancelURL,
			"user_action": "PAY_NOW",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return CheckoutOrder{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		mode.BaseURL+"/v2/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return CheckoutOrder{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CheckoutOrder{}, fmt.Errorf("create checkout order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return CheckoutOrder{}, fmt.Errorf("create checkout order: status %d: %s", resp.StatusCode, respBody)
	}

	var created struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return CheckoutOrder{}, fmt.Errorf("decode checkout order: %w", err)
	}

	out := CheckoutOrder{ID: created.ID}
	for _, link := range created.Links {
		if link.Rel == "approve" {
			out.ApprovalURL = link.Href
			break
		}
	}
	if out.ID == "" || out.ApprovalURL == "" {
		return CheckoutOrder{}, errors.New("checkout order response missing id or approval link")
	}
	return out, nil
}

// captureResponse is the subset of PayPal's capture payload we rely on.
type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// Verify captures the provider order identified by captureToken and checks
// the provider-confirmed amount against expectedTotal. Any mismatch is
// DECLINED regardless of provider status, so a tampered client-side amount
// is never honored. A non-nil error always accompanies (and only
// accompanies) OutcomeProviderError.
func (c *Client) Verify(ctx context.Context, captureToken string, expectedTotal decimal.Decimal) (Verification, error) {
	mode, err := c.resolve()
	if err != nil {
		return Verification{Outcome: OutcomeProviderError}, err
	}
	token, err := c.accessToken(ctx, mode)
	if err != nil {
		return Verification{Outcome: OutcomeProviderError}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		mode.BaseURL+"/v2/checkout/orders/"+url.PathEscape(captureToken)+"/capture", nil)
	if err != nil {
		return Verification{Outcome: OutcomeProviderError}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verification{Outcome: OutcomeProviderError}, fmt.Errorf("capture request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to amount verification below
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The provider refused the capture (declined instrument, already
		// captured, bad token). Terminal, not retryable.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return Verification{Outcome: OutcomeDeclined}, nil
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Verification{Outcome: OutcomeProviderError},
			fmt.Errorf("capture request: status %d: %s", resp.StatusCode, respBody)
	}

	var capture captureResponse
	if err := json.NewDecoder(resp.Body).Decode(&capture); err != nil {
		return Verification{Outcome: OutcomeProviderError}, fmt.Errorf("decode capture response: %w", err)
	}

	if capture.Status != "COMPLETED" {
		return Verification{Outcome: OutcomeDeclined}, nil
	}

	ref, confirmed, ok := confirmedCapture(capture)
	if !ok || !confirmed.Equal(expectedTotal) {
		return Verification{Outcome: OutcomeDeclined}, nil
	}

	return Verification{Outcome: OutcomeSuccess, ProviderRef: ref}, nil
}

// confirmedCapture extracts the capture id and provider-confirmed amount.
// A capture in any other currency does not count as confirmed: the right
// number in the wrong currency is still the wrong amount.
func confirmedCapture(capture captureResponse) (string, decimal.Decimal, bool) {
	for _, unit := range capture.PurchaseUnits {
		for _, cap := range unit.Payments.Captures {
			if cap.Amount.CurrencyCode != currencyCode {
				return "", decimal.Zero, false
			}
			amount, err := decimal.NewFromString(cap.Amount.Value)
			if err != nil {
				return "", decimal.Zero, false
			}
			ref := cap.ID
			if ref == "" {
				ref = capture.ID
			}
			return ref, amount, true
		}
	}
	return "", decimal.Zero, false
}
