package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"signalboard/internal/api"
	"signalboard/internal/config"
	"signalboard/internal/models"
	"signalboard/internal/notify"
	"signalboard/internal/repository"
	"signalboard/internal/service"
	"signalboard/internal/websocket"
	"signalboard/pkg/retry"
	"signalboard/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Логгер
	logger, err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Подключение к базе данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database",
			zap.String("dsn", cfg.Database.DSNWithoutPassword()), zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Репозитории
	channelRepo := repository.NewChannelRepository(db, logger)
	tradeRepo := repository.NewTradeRepository(db, logger)
	statsRepo := repository.NewStatsRepository(db, logger)

	// WebSocket hub (fan-out изменений на дашборды)
	hub := websocket.NewHub(logger.Named("websocket"))
	go hub.Run()

	// Сервисы: hub как прямой broadcaster для мутаций этого процесса
	channelService := service.NewChannelService(channelRepo, hub, logger.Named("channels"))
	tradeService := service.NewTradeService(tradeRepo, hub, logger.Named("trades"))
	statsService := service.NewStatsService(statsRepo)

	// LISTEN/NOTIFY слушатель: изменения, сделанные другими процессами
	// (бот, второй экземпляр дашборда), тоже доходят до websocket-сессий
	listener := notify.NewListener(
		cfg.Database.DSN(),
		cfg.Listener.PollTimeout,
		cfg.Listener.ReconnectDelay,
		logger.Named("listener"),
	)
	listener.Subscribe(models.TopicChannelChanges, func(ev models.ChangeEvent) {
		hub.BroadcastChannelUpdate(ev.Operation, ev)
	})
	listener.Subscribe(models.TopicConfigChanges, func(ev models.ChangeEvent) {
		hub.BroadcastChannelUpdate(ev.Operation, ev)
	})
	listener.Subscribe(models.TopicTradeChanges, func(ev models.ChangeEvent) {
		hub.BroadcastTradeUpdate(ev.Operation, ev)
	})
	listener.Start()

	// HTTP роутер
	router := api.SetupRoutes(&api.Dependencies{
		ChannelService:     channelService,
		TradeService:       tradeService,
		StatsService:       statsService,
		DB:                 db,
		Listener:           listener,
		Hub:                hub,
		APITokenHash:       cfg.Security.APITokenHash,
		CORSAllowedOrigins: cfg.Security.CORSAllowedOrigins,
		Log:                logger.Named("http"),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	if err := listener.Stop(); err != nil {
		logger.Warn("listener stop", zap.Error(err))
	}
	hub.Stop()

	logger.Info("server exited")
}

// initDatabase открывает пул соединений и дожидается доступности БД.
// Стартовый ping ретраится: при старте через docker-compose Postgres
// может подняться позже приложения.
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = retry.Do(ctx, func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		return db.PingContext(pingCtx)
	}, retry.NetworkConfig())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
