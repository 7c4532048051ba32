package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/user-accounts/internal/domain/account"
	"github.com/yanqian/user-accounts/internal/domain/avatar"
	"github.com/yanqian/user-accounts/internal/infra/accountrepo"
	"github.com/yanqian/user-accounts/internal/infra/avatarstore"
	"github.com/yanqian/user-accounts/internal/infra/config"
	"github.com/yanqian/user-accounts/internal/infra/ratelimit"
	httpiface "github.com/yanqian/user-accounts/internal/interface/http"
)

func provideAccountConfig(cfg *config.Config) account.Config {
	return account.Config{
		Secret:     cfg.Auth.Secret,
		TokenTTL:   cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	}
}

func provideHasher(cfg account.Config) *account.BcryptHasher {
	return account.NewBcryptHasher(cfg.BcryptCost)
}

func provideTokenIssuer(cfg account.Config) (*account.JWTIssuer, error) {
	return account.NewJWTIssuer(cfg.Secret, cfg.TokenTTL)
}

func provideTranscoder(cfg *config.Config) *avatar.Transcoder {
	return avatar.NewTranscoder(cfg.Avatar.Width, cfg.Avatar.Height, cfg.Avatar.MaxPixels)
}

func provideAvatarPolicy(cfg *config.Config) avatar.Policy {
	return avatar.NewPolicy(cfg.Avatar.MaxBytes)
}

func provideAccountRepository(cfg *config.Config, logger *slog.Logger) (account.Repository, func(), error) {
	fallback := accountrepo.NewMemoryRepository()
	noop := func() {}
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory repository")
		return fallback, noop, nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return fallback, noop, nil
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return fallback, noop, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback, noop, nil
	}
	if cfg.Postgres.AutoMigrate {
		migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelMigrate()
		if err := accountrepo.Migrate(migrateCtx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate accounts schema: %w", err)
		}
		logger.Info("accounts schema migrated")
	}
	logger.Info("postgres account repository enabled")
	return accountrepo.NewPostgresRepository(pool), pool.Close, nil
}

func provideAvatarStore(cfg *config.Config, repo account.Repository, logger *slog.Logger) (account.AvatarStore, error) {
	storage := cfg.Avatar.Storage
	if storage.Backend != config.AvatarBackendS3 {
		return repo, nil
	}
	store, err := avatarstore.NewS3Store(storage.Endpoint, storage.AccessKey, storage.SecretKey, storage.Bucket, storage.Region, logger)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure avatar bucket: %w", err)
	}
	logger.Info("s3 avatar store enabled", "bucket", storage.Bucket)
	return store, nil
}

func provideRateLimiter(cfg *config.Config, logger *slog.Logger) (httpiface.RateLimiter, func()) {
	rl := cfg.HTTP.RateLimit
	memory := ratelimit.NewMemoryLimiter(rl.RequestsPerMinute, rl.Burst)
	noop := func() {}
	if !rl.Enabled || rl.Backend != config.RateLimitBackendValkey {
		return memory, noop
	}
	opt, err := buildValkeyOptions(rl.ValkeyAddr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory limiter", "error", err)
		return memory, noop
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory limiter", "error", err)
		return memory, noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory limiter", "error", err)
		client.Close()
		return memory, noop
	}
	logger.Info("valkey rate limiter enabled", "addr", rl.ValkeyAddr)
	return ratelimit.NewValkeyLimiter(client, "user-accounts:ratelimit", rl.RequestsPerMinute), client.Close
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(addr, "://") {
		opt, err = valkey.ParseURL(addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}
