package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"signalboard/internal/config"
	"signalboard/internal/mirror"
	"signalboard/internal/notify"
	"signalboard/internal/repository"
	"signalboard/pkg/retry"
	"signalboard/pkg/utils"

	_ "github.com/lib/pq"
)

// Агент - процесс на стороне торгового бота: держит in-memory mirror
// конфигураций каналов и обновляет его по LISTEN/NOTIFY. Исполнитель
// сигналов читает политику канала из mirror, не трогая БД на каждом
// сигнале.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database",
			zap.String("dsn", cfg.Database.DSNWithoutPassword()), zap.Error(err))
	}
	defer db.Close()

	channelRepo := repository.NewChannelRepository(db, logger)

	m := mirror.NewMirror(channelRepo, logger.Named("mirror"))
	if err := m.LoadAll(context.Background()); err != nil {
		logger.Fatal("failed to load channel configs", zap.Error(err))
	}

	// Слушатель обновляет mirror по событиям каналов и конфигураций
	listener := notify.NewListener(
		cfg.Database.DSN(),
		cfg.Listener.PollTimeout,
		cfg.Listener.ReconnectDelay,
		logger.Named("listener"),
	)
	m.Bind(listener)
	listener.Start()

	logger.Info("agent started", zap.Int("channels", m.Len()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := listener.Stop(); err != nil {
		logger.Warn("listener stop", zap.Error(err))
	}
	logger.Info("agent exited")
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Агенту хватает маленького пула: он только перечитывает конфигурации
	db.SetMaxOpenConns(3)
	db.SetMaxIdleConns(1)
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
