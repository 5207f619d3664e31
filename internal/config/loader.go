package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PULLMARKET_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env if present; a missing file is not an error.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PULLMARKET_* environment variables and
// overwrites the corresponding Config fields when set. This lets operators
// inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// Registry
	setStr(&cfg.Registry.Owner, "PULLMARKET_REGISTRY_OWNER")
	setStr(&cfg.Registry.DefaultTreasury, "PULLMARKET_REGISTRY_DEFAULT_TREASURY")
	setStr(&cfg.Registry.DefaultRewardPool, "PULLMARKET_REGISTRY_DEFAULT_REWARD_POOL")
	setStr(&cfg.Registry.CreationFeeWei, "PULLMARKET_REGISTRY_CREATION_FEE_WEI")

	// Market
	setStr(&cfg.Market.Operator, "PULLMARKET_MARKET_OPERATOR")

	// Oracle
	setBool(&cfg.Oracle.Enabled, "PULLMARKET_ORACLE_ENABLED")
	setStr(&cfg.Oracle.BaseURL, "PULLMARKET_ORACLE_BASE_URL")
	setStr(&cfg.Oracle.Token, "PULLMARKET_ORACLE_TOKEN")
	setStr(&cfg.Oracle.Token, "PULLMARKET_GITHUB_TOKEN") // compatibility alias
	setDuration(&cfg.Oracle.PollInterval, "PULLMARKET_ORACLE_POLL_INTERVAL")
	setInt(&cfg.Oracle.Parallelism, "PULLMARKET_ORACLE_PARALLELISM")

	// Postgres
	setStr(&cfg.Postgres.DSN, "PULLMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PULLMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PULLMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PULLMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PULLMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PULLMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PULLMARKET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PULLMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PULLMARKET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PULLMARKET_POSTGRES_RUN_MIGRATIONS")

	// Redis
	setStr(&cfg.Redis.Addr, "PULLMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PULLMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PULLMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PULLMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PULLMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PULLMARKET_REDIS_TLS_ENABLED")

	// S3
	setBool(&cfg.S3.Enabled, "PULLMARKET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PULLMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PULLMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "PULLMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PULLMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PULLMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PULLMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PULLMARKET_S3_FORCE_PATH_STYLE")

	// Archive
	setBool(&cfg.Archive.Enabled, "PULLMARKET_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "PULLMARKET_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "PULLMARKET_ARCHIVE_RETENTION_DAYS")

	// Server
	setBool(&cfg.Server.Enabled, "PULLMARKET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PULLMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PULLMARKET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminAPIKey, "PULLMARKET_SERVER_ADMIN_API_KEY")
	setInt(&cfg.Server.RateLimit, "PULLMARKET_SERVER_RATE_LIMIT")
	setInt(&cfg.Server.RateWindowSec, "PULLMARKET_SERVER_RATE_WINDOW_SEC")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "PULLMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PULLMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PULLMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PULLMARKET_NOTIFY_EVENTS")

	// Top-level
	setStr(&cfg.Mode, "PULLMARKET_MODE")
	setStr(&cfg.LogLevel, "PULLMARKET_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
