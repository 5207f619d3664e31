// Package config defines the top-level configuration for the pullmarket
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PULLMARKET_* environment
// variables.
type Config struct {
	Registry RegistryConfig `toml:"registry"`
	Curve    CurveConfig    `toml:"curve"`
	Fees     FeesConfig     `toml:"fees"`
	Market   MarketConfig   `toml:"market"`
	Oracle   OracleConfig   `toml:"oracle"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// RegistryConfig holds the project registry deployment parameters. All
// addresses are 0x-prefixed hex.
type RegistryConfig struct {
	Owner             string `toml:"owner"`
	DefaultTreasury   string `toml:"default_treasury"`
	DefaultRewardPool string `toml:"default_reward_pool"`
	CreationFeeWei    string `toml:"creation_fee_wei"` // decimal wei; empty selects the default
}

// CurveConfig holds bonding-curve parameters. Amounts are decimal strings;
// empty fields select the engine defaults.
type CurveConfig struct {
	InitialPriceWei   string `toml:"initial_price_wei"`
	PriceIncrementWei string `toml:"price_increment_wei"`
	BatchSizeTokens   int64  `toml:"batch_size_tokens"`
	InitialSupply     int64  `toml:"initial_supply_tokens"`
	MaxSupply         int64  `toml:"max_supply_tokens"`
}

// FeesConfig holds the basis-point fee table. Zero values select the engine
// defaults.
type FeesConfig struct {
	TreasuryBps   int `toml:"treasury_bps"`
	RewardPoolBps int `toml:"reward_pool_bps"`
	CreatorBps    int `toml:"creator_bps"`
	BurnFeeBps    int `toml:"burn_fee_bps"`
}

// MarketConfig holds prediction-market parameters.
type MarketConfig struct {
	Operator string `toml:"operator"` // address allowed to resolve markets
}

// OracleConfig holds GitHub oracle parameters.
type OracleConfig struct {
	Enabled      bool     `toml:"enabled"`
	BaseURL      string   `toml:"base_url"`
	Token        string   `toml:"token"`
	PollInterval duration `toml:"poll_interval"`
	Parallelism  int      `toml:"parallelism"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds settlement-archive scheduling parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled       bool     `toml:"enabled"`
	Port          int      `toml:"port"`
	CORSOrigins   []string `toml:"cors_origins"`
	AdminAPIKey   string   `toml:"admin_api_key"`
	RateLimit     int      `toml:"rate_limit"`      // requests per window, 0 disables
	RateWindowSec int      `toml:"rate_window_sec"` // default 1
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML values like "30s" parse directly.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Oracle: OracleConfig{
			Enabled:      true,
			BaseURL:      "https://api.github.com",
			PollInterval: duration{30 * time.Second},
			Parallelism:  4,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "pullmarket",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "pullmarket-data",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Interval:      duration{time.Hour},
			RetentionDays: 7,
		},
		Server: ServerConfig{
			Enabled:       true,
			Port:          8080,
			RateLimit:     50,
			RateWindowSec: 1,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes are the accepted service modes: serve runs only the HTTP/WS
// surface, oracle runs only the resolution poller, full runs everything.
var validModes = map[string]bool{"serve": true, "oracle": true, "full": true}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error naming each problem.
func (c *Config) Validate() error {
	var problems []string

	if !validModes[c.Mode] {
		problems = append(problems, fmt.Sprintf("mode: unknown mode %q", c.Mode))
	}

	for _, f := range []struct{ name, addr string }{
		{"registry.owner", c.Registry.Owner},
		{"registry.default_treasury", c.Registry.DefaultTreasury},
		{"registry.default_reward_pool", c.Registry.DefaultRewardPool},
		{"market.operator", c.Market.Operator},
	} {
		if f.addr == "" {
			problems = append(problems, f.name+": required")
			continue
		}
		if !common.IsHexAddress(f.addr) {
			problems = append(problems, fmt.Sprintf("%s: not a hex address: %q", f.name, f.addr))
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, fmt.Sprintf("server.port: out of range: %d", c.Server.Port))
	}
	if c.Oracle.Enabled && c.Oracle.PollInterval.Duration <= 0 {
		problems = append(problems, "oracle.poll_interval: must be positive")
	}
	if c.Postgres.DSN == "" && c.Postgres.Host == "" {
		problems = append(problems, "postgres: dsn or host required")
	}
	if c.Redis.Addr == "" {
		problems = append(problems, "redis.addr: required")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			problems = append(problems, "s3.bucket: required when s3 is enabled")
		}
		if c.S3.Region == "" {
			problems = append(problems, "s3.region: required when s3 is enabled")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
