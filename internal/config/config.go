package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

// Config is the full runtime configuration. It is built once in main and
// passed into each component at construction; nothing reads the environment
// after startup.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Recon   ReconConfig   `mapstructure:"recon"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type StorageConfig struct {
	Driver   string `mapstructure:"driver"` // mysql or memory
	MySQLDSN string `mapstructure:"mysql_dsn"`
}

type RedisConfig struct {
	// Addr empty disables webhook transmission dedup.
	Addr string `mapstructure:"addr"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`

	// AllowDemoToken accepts the fixed storefront demo bearer token and maps
	// it to DemoUserID. Development only.
	AllowDemoToken bool  `mapstructure:"allow_demo_token"`
	DemoUserID     int64 `mapstructure:"demo_user_id"`
}

type WebhookConfig struct {
	Secret string `mapstructure:"secret"`

	// SkipVerification bypasses signature checks. Development only; Validate
	// refuses it when no secret is set either.
	SkipVerification bool `mapstructure:"skip_verification"`

	// DedupTTL bounds how long a transmission id is remembered.
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

type ReconConfig struct {
	// APIKey empty disables reconciliation; the webhook path then always
	// applies provider values directly.
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("storage.driver", StorageMySQL)
	v.SetDefault("storage.mysql_dsn", "root:root@tcp(localhost:3306)/storefront?parseTime=true")
	v.SetDefault("redis.addr", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_ttl", time.Hour)
	v.SetDefault("auth.refresh_ttl", 30*24*time.Hour)
	v.SetDefault("auth.allow_demo_token", false)
	v.SetDefault("auth.demo_user_id", 1)
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.skip_verification", false)
	v.SetDefault("webhook.dedup_ttl", 24*time.Hour)
	v.SetDefault("recon.api_key", "")
	v.SetDefault("recon.base_url", "")
	v.SetDefault("recon.model", "")
	v.SetDefault("recon.timeout", 10*time.Second)
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables use the STOREFRONT_ prefix with dots replaced by
// underscores, e.g. STOREFRONT_WEBHOOK_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Storage.Driver != StorageMySQL && c.Storage.Driver != StorageMemory {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == StorageMySQL && c.Storage.MySQLDSN == "" {
		return fmt.Errorf("storage.mysql_dsn is required for the mysql driver")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Webhook.Secret == "" && !c.Webhook.SkipVerification {
		return fmt.Errorf("webhook.secret is required unless webhook.skip_verification is set")
	}
	return nil
}
