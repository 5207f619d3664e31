package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/pullmarket/pullmarket/internal/blob/s3"
	"github.com/pullmarket/pullmarket/internal/cache/redis"
	"github.com/pullmarket/pullmarket/internal/config"
	"github.com/pullmarket/pullmarket/internal/domain"
	"github.com/pullmarket/pullmarket/internal/ledger"
	"github.com/pullmarket/pullmarket/internal/market"
	"github.com/pullmarket/pullmarket/internal/notify"
	"github.com/pullmarket/pullmarket/internal/registry"
	"github.com/pullmarket/pullmarket/internal/store/postgres"
	"github.com/pullmarket/pullmarket/internal/token"
)

// Dependencies bundles everything the application modes need to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// In-memory engines. The bank is the custodial ledger shared by the
	// registry, every deployed token, and the market escrow.
	Bank     *ledger.Bank
	Registry *registry.Registry
	Markets  *market.Engine

	// Stores
	ProjectStore  domain.ProjectStore
	MarketStore   domain.MarketStore
	PositionStore domain.PositionStore
	AuditStore    domain.AuditStore

	// Caches
	ProjectCache domain.ProjectCache
	MarketCache  domain.MarketCache
	StatsCache   domain.StatsCache
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.SettlementArchiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- In-memory engines ---
	deps.Bank = ledger.NewBank()

	regCfg, err := registryConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: registry config: %w", err)
	}
	deps.Registry, err = registry.New(regCfg, deps.Bank)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: registry: %w", err)
	}
	deps.Markets, err = market.New(common.HexToAddress(cfg.Market.Operator), deps.Bank)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: market engine: %w", err)
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.ProjectStore = postgres.NewProjectStore(pool)
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.ProjectCache = redis.NewProjectCache(redisClient)
	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.StatsCache = redis.NewStatsCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewSettlementArchiver(
			deps.BlobWriter,
			deps.MarketStore,
			deps.PositionStore,
			deps.AuditStore,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// registryConfig converts the TOML configuration into registry deployment
// parameters. Empty amount strings select the engine defaults.
func registryConfig(cfg *config.Config) (registry.Config, error) {
	curve := token.DefaultCurve()
	if cfg.Curve.InitialPriceWei != "" {
		v, err := parseWei("curve.initial_price_wei", cfg.Curve.InitialPriceWei)
		if err != nil {
			return registry.Config{}, err
		}
		curve.InitialPrice = v
	}
	if cfg.Curve.PriceIncrementWei != "" {
		v, err := parseWei("curve.price_increment_wei", cfg.Curve.PriceIncrementWei)
		if err != nil {
			return registry.Config{}, err
		}
		curve.PriceIncrement = v
	}
	if cfg.Curve.BatchSizeTokens > 0 {
		curve.BatchSize = new(big.Int).Mul(big.NewInt(cfg.Curve.BatchSizeTokens), curve.Unit)
	}
	if cfg.Curve.InitialSupply > 0 {
		curve.InitialSupply = new(big.Int).Mul(big.NewInt(cfg.Curve.InitialSupply), curve.Unit)
	}
	if cfg.Curve.MaxSupply > 0 {
		curve.MaxSupply = new(big.Int).Mul(big.NewInt(cfg.Curve.MaxSupply), curve.Unit)
	}

	fees := token.DefaultFees()
	if cfg.Fees.TreasuryBps > 0 {
		fees.TreasuryBps = uint32(cfg.Fees.TreasuryBps)
	}
	if cfg.Fees.RewardPoolBps > 0 {
		fees.RewardPoolBps = uint32(cfg.Fees.RewardPoolBps)
	}
	if cfg.Fees.CreatorBps > 0 {
		fees.CreatorBps = uint32(cfg.Fees.CreatorBps)
	}
	if cfg.Fees.BurnFeeBps > 0 {
		fees.BurnFeeBps = uint32(cfg.Fees.BurnFeeBps)
	}

	rc := registry.Config{
		Owner:             common.HexToAddress(cfg.Registry.Owner),
		DefaultTreasury:   common.HexToAddress(cfg.Registry.DefaultTreasury),
		DefaultRewardPool: common.HexToAddress(cfg.Registry.DefaultRewardPool),
		Curve:             curve,
		Fees:              fees,
	}
	if cfg.Registry.CreationFeeWei != "" {
		fee, err := parseWei("registry.creation_fee_wei", cfg.Registry.CreationFeeWei)
		if err != nil {
			return registry.Config{}, err
		}
		rc.CreationFee = fee
	}
	return rc, nil
}

func parseWei(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s: not a decimal wei amount: %q", field, s)
	}
	return v, nil
}
