package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatflowers/paywall/pkg/types"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type Env string

const (
	EnvDev  Env = "dev"
	EnvProd Env = "prod"
)

type LedgerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type BillingConfig struct {
	// ProductType is passed to the platform when querying purchases.
	ProductType string `mapstructure:"product_type"`
	// OfferFromEnd selects which subscription offer token to use when a
	// catalog entry carries more than one offer, counted from the end of the
	// platform-reported list. The deployment convention is that the platform
	// appends a default/legacy offer last and the current offer sits just
	// before it, hence the default of 1 (second-to-last). This is a business
	// rule, not a platform guarantee; confirm the ordering contract with the
	// catalog publisher before changing it.
	OfferFromEnd   int           `mapstructure:"offer_from_end"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type CacheConfig struct {
	// Backend is "sqlite" (on-device default) or "redis" (server-side hosts).
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
}

type ReachabilityConfig struct {
	ProbeAddr string        `mapstructure:"probe_addr"`
	Interval  time.Duration `mapstructure:"interval"`
}

// PlayVerifierConfig enables server-side purchase-token verification against
// Google Play before ledger submission. Left disabled, tokens go to the
// ledger unverified (the ledger re-verifies on its side anyway).
type PlayVerifierConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	PackageName    string `mapstructure:"package_name"`
	CredentialsB64 string `mapstructure:"credentials_b64"`
}

type Config struct {
	Env          Env                `mapstructure:"env"`
	Platform     types.Platform     `mapstructure:"platform"`
	Ledger       LedgerConfig       `mapstructure:"ledger"`
	Billing      BillingConfig      `mapstructure:"billing"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Reachability ReachabilityConfig `mapstructure:"reachability"`
	PlayVerifier PlayVerifierConfig `mapstructure:"play_verifier"`
}

func (c *Config) Validate() error {
	if c.Ledger.BaseURL == "" {
		return fmt.Errorf("ledger.base_url is required")
	}
	if c.Platform != types.PlatformAndroid && c.Platform != types.PlatformIOS {
		return fmt.Errorf("unsupported platform tag: %s", c.Platform)
	}
	if c.Billing.OfferFromEnd < 0 {
		return fmt.Errorf("billing.offer_from_end must be >= 0")
	}
	return nil
}

func New() (*Config, error) {
	v := viper.New()
	// Allow overriding config file via env:
	// - PAYWALL_CONFIG_FILE: absolute or relative file path
	// - PAYWALL_CONFIG_NAME: config base name without extension (default: "paywall")
	if file := os.Getenv("PAYWALL_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		cfgName := os.Getenv("PAYWALL_CONFIG_NAME")
		if cfgName == "" {
			cfgName = "paywall"
		}
		v.SetConfigName(cfgName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("PAYWALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "dev")
	v.SetDefault("platform", string(types.PlatformAndroid))
	v.SetDefault("ledger.timeout", 15*time.Second)
	v.SetDefault("billing.product_type", "subs")
	v.SetDefault("billing.offer_from_end", 1)
	v.SetDefault("billing.connect_timeout", 10*time.Second)
	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.path", "paywall_cache.db")
	v.SetDefault("reachability.probe_addr", "1.1.1.1:53")
	v.SetDefault("reachability.interval", 30*time.Second)

	if err := v.ReadInConfig(); err != nil {
		_ = err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
