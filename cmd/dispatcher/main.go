package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/analyzer"
	"github.com/xela07ax/issue-router/internal/app"
	"github.com/xela07ax/issue-router/internal/audit"
	"github.com/xela07ax/issue-router/internal/dispatcher"
	"github.com/xela07ax/issue-router/internal/infra"
	"github.com/xela07ax/issue-router/internal/infra/auth"
	"github.com/xela07ax/issue-router/internal/metrics"
)

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatcher",
		Short: "Route GitHub issues to agents from webhooks",
		Long: `Serves the GitHub issues webhook and runs analyze → assign for every opened
or reopened issue. Operators can re-route an issue through
POST /v1/issues/{number}/route with an RS256 token carrying the "route" scope.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(parent context.Context) error {
	// 1. Конфиг и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	appCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 3. Инфраструктура: трекер, аудит, блокировки
	t, err := app.Tracker(cfg, m, logger)
	if err != nil {
		return fmt.Errorf("github client: %w", err)
	}

	storage, closeStorage, err := app.AuditStorage(appCtx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStorage()
	recorder := audit.NewRecorder(storage, 1000, m, logger)
	recorder.Start()
	// Stop после остановки HTTP: аудит дописывает хвост
	defer recorder.Stop()

	locker, closeRedis, err := app.Locker(appCtx, cfg.Redis, cfg.GitHub.Repository, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	// 4. Ядро
	pipeline := dispatcher.NewPipeline(
		analyzer.New(logger),
		app.Assigner(cfg, t, logger),
		locker,
		recorder,
		m,
		cfg.GitHub.Repository,
		logger,
	)

	opts := dispatcher.Options{
		Repository:      cfg.GitHub.Repository,
		WebhookSecret:   cfg.GitHub.WebhookSecret,
		PipelineTimeout: cfg.Server.PipelineTimeout,
		Gatherer:        reg,
	}
	if len(cfg.Auth.PublicKey) > 0 {
		pub, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			return fmt.Errorf("auth public key: %w", err)
		}
		opts.Validator = auth.NewOperatorValidator(pub, cfg.Auth.Issuer, cfg.Auth.Leeway)
	} else {
		logger.Info("auth public key is not set, manual re-route endpoint is disabled")
	}
	server := dispatcher.NewServer(pipeline, opts, logger)

	// 5. HTTP Server
	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dispatcher started", zap.String("addr", srv.Addr), zap.String("repository", cfg.GitHub.Repository))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 6. Graceful Shutdown
	select {
	case <-appCtx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("dispatcher stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.PipelineTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	// Ждем фоновые прогоны по вебхукам
	if err := server.Wait(shutdownCtx); err != nil {
		logger.Warn("in-flight routing runs did not finish", zap.Error(err))
	}
	logger.Info("dispatcher exited properly")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
