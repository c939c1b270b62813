package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roamly/experience-booking/internal/model"
)

// PayzoneClient drives the Payzone JSON API.  Payzone is the regional
// card gateway used as a fallback when the primary providers are
// unavailable in a market.
type PayzoneClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewPayzoneClient returns a Payzone-backed provider, or nil when no
// API key is configured.
func NewPayzoneClient(apiKey, baseURL string) *PayzoneClient {
	if apiKey == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = "https://api.payzone.ma"
	}
	return &PayzoneClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ID identifies this client as the PAYZONE provider.
func (c *PayzoneClient) ID() model.PaymentProvider { return model.ProviderPayzone }

// CreateCheckout opens a hosted payment page and returns its URL.
func (c *PayzoneClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	payload := map[string]interface{}{
		"order_id":    req.Reference,
		"amount":      req.Amount,
		"currency":    strings.ToUpper(req.Currency),
		"description": req.Description,
		"success_url": req.SuccessURL,
		"cancel_url":  req.CancelURL,
		"email":       req.CustomerEmail,
		"metadata":    req.Metadata,
	}

	var out struct {
		ID          string `json:"id"`
		CheckoutURL string `json:"checkout_url"`
	}
	if err := c.post(ctx, "/api/v1/checkouts", payload, &out); err != nil {
		return nil, err
	}
	return &CheckoutResult{RedirectURL: out.CheckoutURL, ProviderPaymentID: out.ID}, nil
}

// CreateRefund refunds part or all of a captured payment.  The
// idempotency key protects against double submission on retries.
func (c *PayzoneClient) CreateRefund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	payload := map[string]interface{}{
		"payment_id":      req.ProviderPaymentID,
		"amount":          req.Amount,
		"reason":          req.Reason,
		"idempotency_key": uuid.NewString(),
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/refunds", payload, &out); err != nil {
		return nil, err
	}
	return &RefundResult{ProviderRefundID: out.ID}, nil
}

// post sends a JSON payload and decodes the JSON response,
// translating the Payzone error envelope into a plain error.
func (c *PayzoneClient) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("payzone: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("payzone: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("payzone: %s (%s)", apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("payzone: unexpected status %d", resp.StatusCode)
	}
	return json.Unmarshal(respBody, out)
}
