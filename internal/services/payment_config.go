package services

import (
	"context"
	"fmt"
	"time"

	"ticket-shop/internal/services/gateway"
	"ticket-shop/internal/store"
	"ticket-shop/models"
)

// PaymentDefaults are the environment-provided gateway credentials. Values
// saved from the admin console take precedence.
type PaymentDefaults struct {
	Provider             string
	Currency             string
	Timeout              time.Duration
	PaystackBaseURL      string
	PaystackPublicKey    string
	PaystackSecretKey    string
	StripePublishableKey string
	StripeSecretKey      string
}

// PaymentConfig resolves the active gateway configuration.
type PaymentConfig struct {
	store    store.Store
	defaults PaymentDefaults
}

func NewPaymentConfig(st store.Store, defaults PaymentDefaults) *PaymentConfig {
	if defaults.Provider == "" {
		defaults.Provider = string(gateway.ProviderPaystack)
	}
	if defaults.Currency == "" {
		defaults.Currency = "NGN"
	}
	return &PaymentConfig{store: st, defaults: defaults}
}

func (c *PaymentConfig) Currency() string {
	return c.defaults.Currency
}

func (c *PaymentConfig) Load(ctx context.Context) (gateway.Config, error) {
	saved, err := c.store.GetSettings(ctx,
		models.SettingPaymentProvider,
		models.SettingPaystackPublicKey,
		models.SettingPaystackSecretKey,
		models.SettingStripePublicKey,
		models.SettingStripeSecretKey,
	)
	if err != nil {
		return gateway.Config{}, fmt.Errorf("load gateway settings: %w", err)
	}

	pick := func(key, fallback string) string {
		if v := saved[key]; v != "" {
			return v
		}
		return fallback
	}

	cfg := gateway.Config{
		Provider: gateway.Provider(pick(models.SettingPaymentProvider, c.defaults.Provider)),
		Currency: c.defaults.Currency,
		Timeout:  c.defaults.Timeout,
	}
	switch cfg.Provider {
	case gateway.ProviderPaystack:
		cfg.PublicKey = pick(models.SettingPaystackPublicKey, c.defaults.PaystackPublicKey)
		cfg.SecretKey = pick(models.SettingPaystackSecretKey, c.defaults.PaystackSecretKey)
		cfg.BaseURL = c.defaults.PaystackBaseURL
	case gateway.ProviderStripe:
		cfg.PublicKey = pick(models.SettingStripePublicKey, c.defaults.StripePublishableKey)
		cfg.SecretKey = pick(models.SettingStripeSecretKey, c.defaults.StripeSecretKey)
	}
	return cfg, nil
}
