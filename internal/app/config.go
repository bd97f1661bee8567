package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Auth        AuthConfig
	Razorpay    RazorpayConfig
	Pricing     PricingConfig
	Checkout    CheckoutConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	JWTSecret string        `usage:"HMAC secret for bearer tokens (STORE_AUTH_JWT_SECRET)" flag:"jwt-secret"`
	TokenTTL  time.Duration `default:"24h" usage:"Bearer token lifetime" flag:"token-ttl"`
}

// RazorpayConfig holds the payment provider credentials.
type RazorpayConfig struct {
	KeyID     string        `usage:"Razorpay key id" flag:"razorpay-key-id"`
	KeySecret string        `usage:"Razorpay key secret" flag:"razorpay-key-secret"`
	BaseURL   string        `default:"" usage:"Override provider API base URL (tests)" flag:"razorpay-base-url"`
	Timeout   time.Duration `default:"10s" usage:"Provider request timeout" flag:"razorpay-timeout"`
}

// PricingConfig overrides the flat-fee pricing policy. Values are decimal
// strings; the defaults match the storefront policy.
type PricingConfig struct {
	TaxRate          string `default:"0.08" usage:"Tax rate applied to the subtotal" flag:"tax-rate"`
	ShippingFee      string `default:"5.99" usage:"Flat shipping fee" flag:"shipping-fee"`
	FreeShippingOver string `default:"50.00" usage:"Subtotal above which shipping is free" flag:"free-shipping-over"`
}

// CheckoutConfig holds checkout policy switches.
type CheckoutConfig struct {
	Currency     string `default:"INR" usage:"Payment intent currency"`
	ReserveStock bool   `default:"false" usage:"Decrement product stock inside the order transaction" flag:"reserve-stock"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT secret is required: set STORE_AUTH_JWT_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
