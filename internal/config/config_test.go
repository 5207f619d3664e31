package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAddrs = `
[registry]
owner = "0x1111111111111111111111111111111111111111"
default_treasury = "0x2222222222222222222222222222222222222222"
default_reward_pool = "0x3333333333333333333333333333333333333333"

[market]
operator = "0x4444444444444444444444444444444444444444"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validAddrs))
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Oracle.PollInterval.Duration)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Postgres.RunMigrations)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
mode = "serve"
`+validAddrs+`
[oracle]
poll_interval = "2m"

[curve]
initial_price_wei = "2000000000000000"
batch_size_tokens = 500

[server]
port = 9999
`))
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, 2*time.Minute, cfg.Oracle.PollInterval.Duration)
	assert.Equal(t, "2000000000000000", cfg.Curve.InitialPriceWei)
	assert.Equal(t, int64(500), cfg.Curve.BatchSizeTokens)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PULLMARKET_MODE", "oracle")
	t.Setenv("PULLMARKET_GITHUB_TOKEN", "ghp_test")
	t.Setenv("PULLMARKET_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(writeConfig(t, validAddrs))
	require.NoError(t, err)

	assert.Equal(t, "oracle", cfg.Mode)
	assert.Equal(t, "ghp_test", cfg.Oracle.Token)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateRejectsBadAddresses(t *testing.T) {
	cfg := Defaults()
	cfg.Registry.Owner = "not-an-address"
	cfg.Registry.DefaultTreasury = "0x2222222222222222222222222222222222222222"
	cfg.Registry.DefaultRewardPool = "0x3333333333333333333333333333333333333333"
	cfg.Market.Operator = "0x4444444444444444444444444444444444444444"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry.owner")
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg, err := Load(writeConfig(t, "mode = \"turbo\"\n"+validAddrs))
	require.NoError(t, err)
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresS3FieldsWhenEnabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, validAddrs+`
[s3]
enabled = true
bucket = ""
region = ""
`))
	require.NoError(t, err)

	verr := cfg.Validate()
	require.Error(t, verr)
	assert.Contains(t, verr.Error(), "s3.bucket")
	assert.Contains(t, verr.Error(), "s3.region")
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg, err := Load(writeConfig(t, validAddrs+`
[oracle]
token = "ghp_secret"

[postgres]
password = "hunter2"

[server]
admin_api_key = "adminkey"
`))
	require.NoError(t, err)

	red := RedactedConfig(cfg)
	assert.NotContains(t, red.Oracle.Token, "ghp_secret")
	assert.NotContains(t, red.Postgres.Password, "hunter2")
	assert.NotContains(t, red.Server.AdminAPIKey, "adminkey")
}
