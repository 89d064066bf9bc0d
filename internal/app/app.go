package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/textsync/internal/config"
	"github.com/MrSnakeDoc/textsync/internal/domain"
	"github.com/MrSnakeDoc/textsync/internal/httpserver"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/textsync/internal/logger"
	"github.com/MrSnakeDoc/textsync/internal/redis"
	"github.com/MrSnakeDoc/textsync/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/textsync/internal/store/redis"
	"github.com/MrSnakeDoc/textsync/internal/store/sqlite"
	"github.com/MrSnakeDoc/textsync/internal/version"
)

type App struct {
	cfg          *config.Config
	logger       logger.Logger
	server       *httpserver.Server
	db           *sqlite.DB
	redisClient  *goredis.Client
	sweeper      *scheduler.TokenSweeper
	seedReloader *scheduler.SeedReloader
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	openCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The record store is mandatory - fail fast if it cannot be opened
	db, err := sqlite.Open(openCtx, cfg.DBPath)
	if err != nil {
		loggerClient.Errorf("Failed to open record store %s: %v", cfg.DBPath, err)
		os.Exit(1)
	}
	loggerClient.Info("record store opened", logger.String("path", cfg.DBPath))

	readyChecks := []deps.Check{{Name: "sqlite", Ping: db.Ping}}

	// Tokens live in SQLite unless Redis is configured
	var tokenRepo domain.TokenRepository = db
	tokenBackend := "sqlite"
	var redisClient *goredis.Client
	if cfg.RedisEnabled() {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err = redis.New(openCtx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			_ = db.Close()
			os.Exit(1)
		}
		tokens := redisstore.NewStore(redisClient, redisstore.DefaultPrefix)
		tokenRepo = tokens
		tokenBackend = "redis"
		readyChecks = append(readyChecks, deps.Check{Name: "redis", Ping: tokens.Ping})
		loggerClient.Info("Redis initialized successfully, tokens stored in Redis")
	}

	tokenStore := domain.NewTokenStore(tokenRepo, db, cfg.TokenTTL, nil)
	if cfg.TokenTTLOverridden() {
		loggerClient.Warn("TEXTSYNC_TOKEN_TTL overrides the 180-day token lifetime clients expect",
			logger.Duration("token_ttl", tokenStore.TTL()),
			logger.Duration("default", config.DefaultTokenTTL))
	}
	loggerClient.Info("token store ready",
		logger.String("backend", tokenBackend),
		logger.Duration("token_ttl", tokenStore.TTL()))
	access := domain.NewAccessResolver(db)

	sweeper := scheduler.NewTokenSweeper(tokenStore, loggerClient, cfg.TokenSweepInterval)

	// Seed reloader (if a seed file is configured)
	var seedReloader *scheduler.SeedReloader
	var reloadTrigger chan struct{}
	if cfg.SeedFile != "" {
		loggerClient.Info("seed file configured, initializing seed reloader",
			logger.String("file", cfg.SeedFile))
		reloadTrigger = make(chan struct{}, 1)
		seedReloader = scheduler.NewSeedReloader(
			cfg.SeedFile,
			db,
			loggerClient,
			cfg.SeedReloadInterval,
			reloadTrigger,
		)
	} else {
		loggerClient.Info("seed file not configured, catalog is managed directly in the record store")
	}

	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		TimeNow:           time.Now,
		AllowedHosts:      cfg.AllowedHosts,
		AllowedCIDRS:      cfg.AllowedCIDRS,
		TrustProxy:        cfg.TrustProxy,
		CORSOrigins:       cfg.CORSOrigins,
		LoginBurst:        cfg.LoginBurst,
		LoginRefillPerMin: cfg.LoginRefillPerMin,
		Gateway:           domain.NewAuthGateway(db, tokenStore),
		Tokens:            tokenStore,
		Access:            access,
		Sync:              domain.NewSyncQueryEngine(access, db),
		Catalog:           db,
		TokenBackend:      tokenBackend,
		ReadyChecks:       readyChecks,
		ReloadTrigger:     reloadTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:          cfg,
		logger:       loggerClient,
		server:       server,
		db:           db,
		redisClient:  redisClient,
		sweeper:      sweeper,
		seedReloader: seedReloader,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting textsync v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Apply the seed before serving so the first sync sees the catalog
	if a.seedReloader != nil {
		if err := a.seedReloader.Start(ctx); err != nil {
			a.closeStores()
			return fmt.Errorf("failed to start seed reloader: %w", err)
		}
		a.logger.Info("seed reloader started",
			logger.Duration("interval", a.cfg.SeedReloadInterval))
	}

	if err := a.sweeper.Start(ctx); err != nil {
		a.closeStores()
		return fmt.Errorf("failed to start token sweeper: %w", err)
	}
	a.logger.Info("token sweeper started",
		logger.Duration("interval", a.cfg.TokenSweepInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	if a.seedReloader != nil {
		a.seedReloader.Stop()
	}
	a.sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.closeStores()
	if runErr != nil {
		return runErr
	}

	a.logger.Info("✅ textsync stopped cleanly")
	_ = a.logger.Sync()
	return nil
}

func (a *App) closeStores() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warnf("failed to close record store: %v", err)
	} else {
		a.logger.Info("✅ Record store closed cleanly")
	}
}
