package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roamly/experience-booking/internal/model"
)

// PayPalClient drives the PayPal Orders v2 API.  Each call fetches a
// client-credentials token first; token caching is deliberately left
// to PayPal's generous token lifetime and the low call volume of this
// service.
type PayPalClient struct {
	clientID     string
	clientSecret string
	baseURL      string
	http         *http.Client
}

// NewPayPalClient returns a PayPal-backed provider, or nil when the
// credentials are not configured.
func NewPayPalClient(clientID, clientSecret, baseURL string) *PayPalClient {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = "https://api-m.paypal.com"
	}
	return &PayPalClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: 15 * time.Second},
	}
}

// ID identifies this client as the PAYPAL provider.
func (c *PayPalClient) ID() model.PaymentProvider { return model.ProviderPayPal }

// CreateCheckout creates an order and returns its approval link.  The
// PayPal-Request-Id header makes order creation idempotent on the
// provider side should the request be retried.
func (c *PayPalClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": req.Reference,
			"description":  req.Description,
			"custom_id":    req.Metadata["payment_id"],
			"amount": map[string]string{
				"currency_code": strings.ToUpper(req.Currency),
				"value":         minorToDecimal(req.Amount),
			},
		}},
		"application_context": map[string]string{
			"return_url": req.SuccessURL,
			"cancel_url": req.CancelURL,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("PayPal-Request-Id", uuid.NewString())

	var out struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	for _, link := range out.Links {
		if link.Rel == "approve" {
			return &CheckoutResult{RedirectURL: link.Href, ProviderPaymentID: out.ID}, nil
		}
	}
	return nil, fmt.Errorf("paypal: order %s has no approval link", out.ID)
}

// CreateRefund refunds a captured payment.
func (c *PayPalClient) CreateRefund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"amount": map[string]string{
			"currency_code": strings.ToUpper(req.Currency),
			"value":         minorToDecimal(req.Amount),
		},
		"note_to_payer": req.Reason,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v2/payments/captures/%s/refund", c.baseURL, url.PathEscape(req.ProviderPaymentID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("PayPal-Request-Id", uuid.NewString())

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return &RefundResult{ProviderRefundID: out.ID}, nil
}

// accessToken exchanges the client credentials for a bearer token.
func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(c.clientID, c.clientSecret)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(httpReq, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("paypal: empty access token")
	}
	return out.AccessToken, nil
}

// do executes a request and decodes the JSON response, translating
// PayPal's error envelope into a plain error.
func (c *PayPalClient) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("paypal: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("paypal: %s (%s)", apiErr.Message, apiErr.Name)
		}
		return fmt.Errorf("paypal: unexpected status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

// minorToDecimal renders minor units as the "12.34" decimal string
// PayPal expects.
func minorToDecimal(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}
