// Package app собирает компоненты роутера из infra.Config. Общий код для всех бинарников.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/assigner"
	"github.com/xela07ax/issue-router/internal/audit"
	"github.com/xela07ax/issue-router/internal/infra"
	"github.com/xela07ax/issue-router/internal/lock"
	"github.com/xela07ax/issue-router/internal/metrics"
	"github.com/xela07ax/issue-router/internal/repository/postgres"
	"github.com/xela07ax/issue-router/internal/tracker"
)

var ErrNoCredentials = errors.New("no GitHub credentials: set GITHUB_TOKEN or GITHUB_APP_ID with GITHUB_INSTALLATION_ID and a private key")

// TokenSource выбирает авторизацию: GitHub App приоритетнее статического токена.
func TokenSource(cfg infra.GitHubConfig) (tracker.TokenSource, error) {
	if cfg.AppID != "" && cfg.InstallationID != "" && len(cfg.AppPrivateKey) > 0 {
		key, err := tracker.ParseRSAPrivateKey(cfg.AppPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("github app key: %w", err)
		}
		return tracker.NewAppTokenSource(cfg.APIURL, cfg.AppID, cfg.InstallationID, key), nil
	}
	if cfg.Token != "" {
		return tracker.StaticToken(cfg.Token), nil
	}
	return nil, ErrNoCredentials
}

// Tracker — клиент GitHub, обернутый лимитером, предохранителем и повторами.
func Tracker(cfg *infra.Config, m *metrics.Metrics, logger *zap.Logger) (tracker.Tracker, error) {
	tokens, err := TokenSource(cfg.GitHub)
	if err != nil {
		return nil, err
	}
	client, err := tracker.NewGitHubClient(tracker.ClientConfig{
		BaseURL:    cfg.GitHub.APIURL,
		Repository: cfg.GitHub.Repository,
		Timeout:    cfg.GitHub.Timeout,
	}, tokens, logger)
	if err != nil {
		return nil, err
	}
	return tracker.NewReliableTracker(client, ReliabilityConfig(cfg.Reliability), m, logger), nil
}

func ReliabilityConfig(rc infra.ReliabilityConfig) tracker.ReliabilityConfig {
	return tracker.ReliabilityConfig{
		RateLimit:             rc.RateLimit,
		RateBurst:             rc.RateBurst,
		RetryAttempts:         rc.RetryAttempts,
		RetryMaxDelay:         rc.RetryMaxDelay,
		RequestTimeout:        rc.RequestTimeout,
		CBMaxRequests:         rc.CBMaxRequests,
		CBInterval:            rc.CBInterval,
		CBTimeout:             rc.CBTimeout,
		CBConsecutiveFailures: rc.CBConsecutiveFailures,
	}
}

func Assigner(cfg *infra.Config, t tracker.Tracker, logger *zap.Logger) *assigner.Assigner {
	return assigner.New(assigner.Config{
		Pool:     assigner.PoolOrDefault(cfg.Agent.PoolConfig, logger),
		PageSize: cfg.Agent.WorkloadPageSize,
		MaxPages: cfg.Agent.WorkloadMaxPages,
	}, t, logger)
}

// AuditStorage — Postgres, если задан DATABASE_URL, иначе журнал уходит в zap.
// closeFn нужно вызвать после остановки Recorder.
func AuditStorage(ctx context.Context, cfg infra.DatabaseConfig, logger *zap.Logger) (audit.Storage, func(), error) {
	if cfg.URL == "" {
		return audit.NewLogStorage(logger), func() {}, nil
	}

	repo, err := postgres.NewAuditRepo(cfg.URL, cfg.MaxConns)
	if err != nil {
		return nil, nil, err
	}

	// Проверяем соединение с таймаутом
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		_ = repo.Close()
		return nil, nil, fmt.Errorf("audit database unreachable: %w", err)
	}

	return repo, func() {
		if err := repo.Close(); err != nil {
			logger.Warn("failed to close audit database", zap.Error(err))
		}
	}, nil
}

// Locker — блокировки в Redis, если задан REDIS_ADDR, иначе NopLocker.
func Locker(ctx context.Context, cfg infra.RedisConfig, repository string, logger *zap.Logger) (lock.Locker, func(), error) {
	if cfg.Addr == "" {
		logger.Info("redis is not configured, concurrent runs for one issue are not serialized")
		return lock.NopLocker{}, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis unreachable: %w", err)
	}

	return lock.NewRedisLocker(rdb, repository, cfg.LockTTL), func() { _ = rdb.Close() }, nil
}
