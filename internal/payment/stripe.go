package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roamly/experience-booking/internal/model"
)

// StripeClient drives Stripe Checkout over its form-encoded REST API.
// Only the two calls the gateway abstraction needs are implemented:
// creating a hosted checkout session and creating a refund.
type StripeClient struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

// NewStripeClient returns a Stripe-backed provider, or nil when no
// secret key is configured (the registry skips nil providers).
func NewStripeClient(secretKey, baseURL string) *StripeClient {
	if secretKey == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &StripeClient{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// ID identifies this client as the STRIPE provider.
func (c *StripeClient) ID() model.PaymentProvider { return model.ProviderStripe }

// CreateCheckout opens a hosted checkout session and returns its
// redirect URL together with the session id as the external payment
// reference.
func (c *StripeClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.Reference)
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
		form.Set(fmt.Sprintf("payment_intent_data[metadata][%s]", k), v)
	}

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.do(ctx, "/v1/checkout/sessions", form, &out); err != nil {
		return nil, err
	}
	return &CheckoutResult{RedirectURL: out.URL, ProviderPaymentID: out.ID}, nil
}

// CreateRefund refunds part or all of a captured charge.
func (c *StripeClient) CreateRefund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	form := url.Values{}
	form.Set("payment_intent", req.ProviderPaymentID)
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	if req.Reason != "" {
		form.Set("metadata[reason]", req.Reason)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "/v1/refunds", form, &out); err != nil {
		return nil, err
	}
	return &RefundResult{ProviderRefundID: out.ID}, nil
}

// do posts a form to the Stripe API and decodes the JSON response,
// translating Stripe's error envelope into a plain error.
func (c *StripeClient) do(ctx context.Context, path string, form url.Values, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("stripe: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("stripe: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("stripe: %s (%s)", apiErr.Error.Message, apiErr.Error.Code)
		}
		return fmt.Errorf("stripe: unexpected status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}
