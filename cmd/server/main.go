package main

import (
	"civicportal/internal/api"
	"civicportal/internal/auth"
	"civicportal/internal/config"
	"civicportal/internal/model"
	"civicportal/internal/oidc"
	"civicportal/internal/service"
	"civicportal/internal/session"
	"civicportal/internal/storage"
	"civicportal/internal/telemetry"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run() error {
	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	cfg.ConfigureLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, cfg)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logrus.WithError(err).Warn("failed to flush traces")
		}
	}()

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		return fmt.Errorf("initialise repository: %w", err)
	}
	defer repo.Close()

	if err := model.SeedAdmin(ctx, repo, cfg); err != nil {
		logrus.WithError(err).Warn("failed to seed admin account")
	}

	sessions, closeSessions, err := session.Open(ctx, cfg, repo)
	if err != nil {
		return fmt.Errorf("initialise session store: %w", err)
	}
	defer closeSessions()

	invites, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.InviteTTL)
	if err != nil {
		return fmt.Errorf("initialise invite signer: %w", err)
	}

	files, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialise storage: %w", err)
	}

	var sso api.SSOProvider
	if cfg.OIDCEnabled() {
		provider, err := oidc.NewProvider(ctx, oidc.ConfigFrom(cfg))
		if err != nil {
			return fmt.Errorf("initialise oidc provider: %w", err)
		}
		sso = provider
		logrus.WithField("issuer", cfg.OIDCDiscoveryURL).Info("single sign-on enabled")
	}

	svcs := api.Services{
		Auth:           service.NewAuthService(repo, sessions, invites, cfg.SessionTTL),
		Users:          service.NewUserService(repo, sessions, invites),
		Communications: service.NewCommunicationService(repo),
		Directory:      service.NewDirectoryService(repo),
	}
	handler := api.NewHTTPHandler(cfg, repo, svcs, files, sso)

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter()

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	// 不设 WriteTimeout：SSE 是长连接
	httpServer := &http.Server{
		Addr:              serverHost,
		Handler:           otelhttp.NewHandler(router, "civicportal"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logrus.WithField("host", serverHost).Info("服务器启动")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return session.NewSweeper(sessions, cfg.SessionSweepInterval).Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logrus.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
