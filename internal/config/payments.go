package config

import (
	"os"
	"strings"
)

// PaymentsConfig carries the payment-gateway deployment settings: the
// provider preference order, provider credentials and the shared
// webhook signing secret.
type PaymentsConfig struct {
	DefaultProvider  string   // first fallback after the requested provider
	EnabledProviders []string // remaining fallback order
	WebhookSecret    string   // HMAC secret shared with the webhook sender

	StripeSecretKey string
	StripeBaseURL   string

	PayPalClientID     string
	PayPalClientSecret string
	PayPalBaseURL      string

	PayzoneAPIKey  string
	PayzoneBaseURL string
}

// LoadPaymentsConfig reads the payment settings from environment
// variables.  Provider credentials are optional: a provider without
// credentials is simply never registered.  The webhook secret is
// required because settlement cannot authenticate notifications
// without it.
func LoadPaymentsConfig() PaymentsConfig {
	return PaymentsConfig{
		DefaultProvider:  envStr("PAYMENT_DEFAULT_PROVIDER", "STRIPE"),
		EnabledProviders: splitList(envStr("PAYMENT_ENABLED_PROVIDERS", "STRIPE,PAYPAL,PAYZONE,CASH")),
		WebhookSecret:    must("PAYMENT_WEBHOOK_SECRET"),

		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		StripeBaseURL:   os.Getenv("STRIPE_BASE_URL"),

		PayPalClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
		PayPalBaseURL:      os.Getenv("PAYPAL_BASE_URL"),

		PayzoneAPIKey:  os.Getenv("PAYZONE_API_KEY"),
		PayzoneBaseURL: os.Getenv("PAYZONE_BASE_URL"),
	}
}

// splitList parses a comma-separated list, trimming blanks and
// uppercasing entries so provider names compare exactly.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
