package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"feedbox/backend/internal/config"
	"feedbox/backend/internal/health"
	"feedbox/backend/internal/logger"
	"feedbox/backend/internal/monitoring"
	"feedbox/backend/internal/service"
	"feedbox/backend/internal/storage"
	"feedbox/backend/internal/storage/memory"
	"feedbox/backend/internal/storage/postgres"
	"feedbox/backend/internal/storage/redis"
	httptransport "feedbox/backend/internal/transport/http"
	"feedbox/backend/internal/tripcode"
	"feedbox/backend/internal/websocket"
)

// main 启动匿名反馈收件箱服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting feedbox server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = initializeDatabaseStorage(cfg, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, log)

	// PostgreSQL 直连探测客户端（绕过 ORM 做健康检查）
	if cfg.Database.Type == "postgres" && cfg.Database.DSN != "" {
		pgClient, err := postgres.New(&cfg.Database, log)
		if err != nil {
			log.Warn("failed to create postgres health client, continuing without it", zap.Error(err))
		} else {
			defer pgClient.Close()
			healthChecker.AddPinger("postgres", pgClient)
		}
	}

	// 初始化业务服务
	trip := tripcode.NewGenerator(cfg.Tripcode.Salt)
	inboxService := service.NewInboxService(store, trip, log)

	// Redis 元数据缓存（可选）
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(&cfg.Redis, log)
		if err != nil {
			log.Warn("failed to connect redis, metadata cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			healthChecker.AddPinger("redis", redisClient)
			inboxService.SetMetadataCache(redis.NewCache(redisClient, cfg.Redis.CacheTTL))
			log.Info("redis metadata cache enabled",
				zap.String("address", cfg.Redis.Address),
				zap.Duration("ttl", cfg.Redis.CacheTTL),
			)
		}
	}

	// 创建 WebSocket Hub 并接入新回复通知
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, store, inboxService.Signature, log)
	inboxService.SetReplyNotifier(wsHub)
	metrics.RegisterWebSocketConnections(wsHub.ClientCount)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		InboxService: inboxService,
		WebSocketHub: wsHub,
		Metrics:      metrics,
		Logger:       log,
	})

	// 健康检查处理器（用于 Kubernetes 等）
	router.GET("/health/live", gin.WrapH(healthChecker.LiveHandler()))
	router.GET("/health/ready", gin.WrapH(healthChecker.ReadyHandler()))

	// Prometheus 指标端点
	router.GET("/metrics", gin.WrapH(metrics.HTTPHandler()))

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理过期收件箱 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Inbox.PurgeInterval)
		defer ticker.Stop()

		log.Info("starting expired inbox purge task",
			zap.Duration("interval", cfg.Inbox.PurgeInterval),
			zap.Duration("retention", cfg.Inbox.PurgeRetention),
		)

		for {
			select {
			case <-groupCtx.Done():
				log.Info("purge task stopped")
				return nil
			case <-ticker.C:
				count, err := inboxService.PurgeExpired(cfg.Inbox.PurgeRetention)
				if err != nil {
					log.Error("failed to purge expired inboxes", zap.Error(err))
				} else if count > 0 {
					metrics.RecordInboxesPurged(count)
					log.Info("expired inboxes purged", zap.Int("count", count))
				}
			}
		}
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeDatabaseStorage 根据配置初始化数据库存储
func initializeDatabaseStorage(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	log.Info("initializing database storage", zap.String("database_type", cfg.Database.Type))

	switch cfg.Database.Type {
	case "postgres":
		return postgres.NewStore(cfg.Database.DSN)
	case "mysql":
		return postgres.NewMySQLStore(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
}
