// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/shopspring/decimal"
	"golang.org/x/mod/semver"

	"storefront-checkout/internal/pricing"
)

// Gateway providers.
const (
	ProviderNone   = "none"
	ProviderSnap   = "snap"
	ProviderHosted = "hosted"
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string `json:"port"`
	Environment string `json:"environment"` // "development" or "production"
	LogLevel    string `json:"log_level"`   // "debug", "info", "warn", "error"

	// StorefrontID names the deployment and its secret bundle.
	StorefrontID string `json:"storefront_id"`
	GCPProject   string `json:"gcp_project"`

	// ClientVersion is the highest client API version this server speaks.
	ClientVersion string `json:"client_version"`

	Marketplace MarketplaceConfig `json:"marketplace"`
	Gateway     GatewayConfig     `json:"gateway"`
	Redis       RedisConfig       `json:"redis"`
	Pricing     PricingConfig     `json:"pricing"`
	Coupons     []pricing.Rule    `json:"coupons,omitempty"`
	Breaker     BreakerConfig     `json:"breaker"`
}

// MarketplaceConfig locates the remote marketplace API.
type MarketplaceConfig struct {
	APIBaseURL string `json:"api_base_url"`
	APIToken   string `json:"api_token,omitempty"`
	// Fingerprint dials with a Chrome TLS fingerprint.
	Fingerprint bool `json:"fingerprint,omitempty"`
}

// GatewayConfig selects and configures the payment widget.
type GatewayConfig struct {
	Provider  string `json:"provider"` // "snap", "hosted" or "none"
	ServerKey string `json:"server_key,omitempty"`
	PublicKey string `json:"public_key,omitempty"`
	Sandbox   bool   `json:"sandbox"`
}

// RedisConfig points at the persistence store. An empty Addr keeps state
// in memory.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// PricingConfig overrides the default pricing rules.
type PricingConfig struct {
	TaxRate               decimal.Decimal `json:"tax_rate"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
	FlatShipping          decimal.Decimal `json:"flat_shipping"`
	Currency              string          `json:"currency"`
}

// BreakerConfig tunes the marketplace circuit breakers.
type BreakerConfig struct {
	FailureThreshold uint32        `json:"failure_threshold,omitempty"`
	OpenTimeout      time.Duration `json:"open_timeout,omitempty"`
}

// secretBundle is the JSON stored in Secret Manager.
type secretBundle struct {
	APIToken         string `json:"api_token"`
	GatewayServerKey string `json:"gateway_server_key"`
	RedisPassword    string `json:"redis_password,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set), then env vars plus Secret Manager in production.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := defaults()
	cfg.Port = envOrDefault("PORT", cfg.Port)
	cfg.Environment = envOrDefault("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.StorefrontID = os.Getenv("STOREFRONT_ID")
	cfg.GCPProject = os.Getenv("GCP_PROJECT")
	cfg.ClientVersion = envOrDefault("CLIENT_VERSION", cfg.ClientVersion)

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.StorefrontID == "" {
			return nil, fmt.Errorf("STOREFRONT_ID required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading secrets: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	p := pricing.Default()
	return &Config{
		Port:          "8080",
		Environment:   "development",
		LogLevel:      "info",
		ClientVersion: "1.0.0",
		Gateway:       GatewayConfig{Provider: ProviderNone, Sandbox: true},
		Pricing: PricingConfig{
			TaxRate:               p.TaxRate,
			FreeShippingThreshold: p.FreeShippingThreshold,
			FlatShipping:          p.FlatShipping,
			Currency:              "INR",
		},
	}
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromSecretManager fetches the secret bundle from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{storefront_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.StorefrontID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	return c.applySecrets(result.Payload.Data)
}

// applySecrets overlays a secret bundle. Empty entries keep what the
// environment set.
func (c *Config) applySecrets(data []byte) error {
	var b secretBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	if b.APIToken != "" {
		c.Marketplace.APIToken = b.APIToken
	}
	if b.GatewayServerKey != "" {
		c.Gateway.ServerKey = b.GatewayServerKey
	}
	if b.RedisPassword != "" {
		c.Redis.Password = b.RedisPassword
	}
	return nil
}

// loadFromEnv reads the remaining settings from individual environment
// variables.
func (c *Config) loadFromEnv() error {
	c.Marketplace = MarketplaceConfig{
		APIBaseURL:  os.Getenv("MARKETPLACE_API_URL"),
		APIToken:    os.Getenv("MARKETPLACE_API_TOKEN"),
		Fingerprint: os.Getenv("MARKETPLACE_TLS_FINGERPRINT") == "true",
	}

	c.Gateway.Provider = envOrDefault("GATEWAY_PROVIDER", c.Gateway.Provider)
	c.Gateway.ServerKey = os.Getenv("GATEWAY_SERVER_KEY")
	c.Gateway.PublicKey = os.Getenv("GATEWAY_PUBLIC_KEY")
	c.Gateway.Sandbox = os.Getenv("GATEWAY_PRODUCTION") != "true"

	c.Redis.Addr = os.Getenv("REDIS_ADDR")
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing REDIS_DB: %w", err)
		}
		c.Redis.DB = db
	}

	for _, d := range []struct {
		env string
		dst *decimal.Decimal
	}{
		{"TAX_RATE", &c.Pricing.TaxRate},
		{"FREE_SHIPPING_THRESHOLD", &c.Pricing.FreeShippingThreshold},
		{"FLAT_SHIPPING", &c.Pricing.FlatShipping},
	} {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", d.env, err)
		}
		*d.dst = parsed
	}
	c.Pricing.Currency = envOrDefault("CURRENCY", c.Pricing.Currency)

	// Parse the coupon table if provided
	if couponsJSON := os.Getenv("COUPONS"); couponsJSON != "" {
		rules, err := pricing.ParseRules([]byte(couponsJSON))
		if err != nil {
			return fmt.Errorf("parsing COUPONS JSON: %w", err)
		}
		c.Coupons = rules
	}

	if v := os.Getenv("BREAKER_FAILURE_THRESHOLD"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("parsing BREAKER_FAILURE_THRESHOLD: %w", err)
		}
		c.Breaker.FailureThreshold = uint32(n)
	}
	if v := os.Getenv("BREAKER_OPEN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing BREAKER_OPEN_TIMEOUT: %w", err)
		}
		c.Breaker.OpenTimeout = d
	}

	return nil
}

// Validate checks that all required configuration fields are present and
// well-formed.
func (c *Config) Validate() error {
	if c.Marketplace.APIBaseURL == "" {
		return fmt.Errorf("marketplace api_base_url is required")
	}
	u, err := url.Parse(c.Marketplace.APIBaseURL)
	if err != nil {
		return fmt.Errorf("invalid marketplace api_base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid marketplace api_base_url: scheme must be http or https")
	}

	switch c.Gateway.Provider {
	case "", ProviderNone, ProviderHosted:
	case ProviderSnap:
		if c.Gateway.ServerKey == "" {
			return fmt.Errorf("gateway server_key is required for snap")
		}
	default:
		return fmt.Errorf("unknown gateway provider %q", c.Gateway.Provider)
	}

	if c.Pricing.TaxRate.IsNegative() || c.Pricing.FreeShippingThreshold.IsNegative() || c.Pricing.FlatShipping.IsNegative() {
		return fmt.Errorf("pricing values must not be negative")
	}

	if c.ClientVersion != "" && !semver.IsValid("v"+strings.TrimPrefix(c.ClientVersion, "v")) {
		return fmt.Errorf("invalid client_version %q", c.ClientVersion)
	}

	// Round-trip through the parser so file-loaded rules get the same checks.
	if len(c.Coupons) > 0 {
		data, err := json.Marshal(c.Coupons)
		if err != nil {
			return fmt.Errorf("encoding coupons: %w", err)
		}
		if _, err := pricing.ParseRules(data); err != nil {
			return fmt.Errorf("invalid coupons: %w", err)
		}
	}

	return nil
}

// Engine returns the pricing engine described by c.
func (c *Config) Engine() pricing.Engine {
	return pricing.Engine{
		TaxRate:               c.Pricing.TaxRate,
		FreeShippingThreshold: c.Pricing.FreeShippingThreshold,
		FlatShipping:          c.Pricing.FlatShipping,
	}
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
