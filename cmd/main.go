package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"matchpoint/backend/internal/api/handler"
	"matchpoint/backend/internal/chathub"
	"matchpoint/backend/internal/config"
	"matchpoint/backend/internal/match"
	"matchpoint/backend/internal/metrics"
	"matchpoint/backend/internal/notify"
	"matchpoint/backend/internal/storage"
)

func setupDependencies(cfg *config.Config, log zerolog.Logger) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect PostgreSQL")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect Redis")
	}

	return db, rdb
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.Environment == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("http_addr", cfg.HTTPAddr).
		Dur("match_ttl", cfg.MatchTTL).
		Ints64("warning_thresholds", cfg.WarningThresholdHours).
		Msg("starting matchpoint engine")

	db, rdb := setupDependencies(cfg, log)
	store := storage.NewService(db, rdb, log)
	if err := store.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	m := metrics.New()

	// Realtime components, constructed once and injected explicitly.
	registry := chathub.NewRegistry(log)
	rooms := chathub.NewRooms(registry, store, m, log)
	typing := chathub.NewTypingManager(rooms, cfg.TypingQuietWindow)
	lifecycle := match.NewController(store, cfg.MatchTTL, log)
	hub := chathub.NewHub(registry, rooms, typing, store, lifecycle, m, log, chathub.Options{
		MessagesPerMinute: cfg.MessagesPerMinute,
		MaxMessageLength:  cfg.MaxMessageLength,
		HistoryReloadSize: cfg.HistoryReloadSize,
	})

	sender := notify.NewQueueSender(rdb, cfg.NotificationQueue, log)
	notifier := match.NewNotifier(store, lifecycle, hub, sender,
		cfg.WarningThresholdHours, cfg.SweepInterval, m, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go notifier.Run(ctx)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	h := handler.New(hub, lifecycle, store, cfg.JWTSecret, log)
	r.POST("/auth/token", h.CreateToken)
	r.GET("/ws", h.ServeWebSocket)
	r.POST("/swipes", h.RecordSwipe)
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": hub.OnlineCount()})
	})

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
