package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (STUDIO_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STUDIO_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MercadoPago MercadoPagoConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// MercadoPagoConfig selects the gateway credential profile. Both profiles
// can be set at once; Mode decides which one is used, resolved once at
// startup.
type MercadoPagoConfig struct {
	Mode            string        `default:"test" usage:"Credential profile to use: test or prod"`
	BaseURL         string        `default:"https://api.mercadopago.com" usage:"Mercado Pago API base URL" flag:"mp-base-url"`
	TestAccessToken string        `usage:"Access token for the test profile (STUDIO_MERCADO_PAGO_TEST_ACCESS_TOKEN)" flag:"mp-test-token"`
	ProdAccessToken string        `usage:"Access token for the prod profile (STUDIO_MERCADO_PAGO_PROD_ACCESS_TOKEN)" flag:"mp-prod-token"`
	Timeout         time.Duration `default:"10s" usage:"Gateway HTTP timeout"`
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

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STUDIO",
		Files:     []string{"config.yaml", "/etc/studio/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STUDIO_DATABASE_URL or DATABASE_URL")
	}
	switch cfg.MercadoPago.Mode {
	case "test", "prod":
	default:
		return nil, errors.Errorf("unknown mercado pago mode %q: want test or prod", cfg.MercadoPago.Mode)
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STUDIO_-prefixed configuration.
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
