package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/studytrack/internal/app"
	"github.com/Freeeeeet/studytrack/internal/auth"
	"github.com/Freeeeeet/studytrack/internal/config"
	"github.com/Freeeeeet/studytrack/internal/controller"
	"github.com/Freeeeeet/studytrack/internal/controller/api"
	"github.com/Freeeeeet/studytrack/internal/migrations"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/Freeeeeet/studytrack/internal/repository/memory"
	"github.com/Freeeeeet/studytrack/internal/repository/postgres"
	"github.com/Freeeeeet/studytrack/internal/service"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("🚀 Starting studytrack",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage),
		zap.Bool("bot_enabled", cfg.BotEnabled()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeStore()

	// Журнал действий администраторов пишется асинхронно через watermill
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.ActivityBuffer),
	}, app.NewZapWatermillLogger(logger))

	recorder := service.NewActivityRecorder(pubSub, logger)
	// Подписка живет дольше сигнального контекста, чтобы дописать записи завершающихся запросов
	sinkCtx, cancelSink := context.WithCancel(context.Background())
	defer cancelSink()
	sinkDone, err := service.NewActivitySink(pubSub, store.ActivityLogs(), logger).Subscribe(sinkCtx)
	if err != nil {
		logger.Fatal("Failed to subscribe activity sink", zap.Error(err))
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey:   cfg.JWTSecret,
		TokenIssuer: cfg.JWTIssuer,
	})

	authService := service.NewAuthService(store, jwtService, cfg.SessionTTL, logger)
	connectionService := service.NewConnectionService(store, logger)
	membershipService := service.NewMembershipService(
		store,
		service.NewAuthorizer(),
		service.NewPlanSigner(jwtService, cfg.PlanTTL),
		recorder,
		logger,
	)
	studyService := service.NewStudyService(store, connectionService, logger)

	authService.OnSessionChange(func(ev service.SessionEvent) {
		logger.Debug("Session changed",
			zap.String("event", string(ev.Type)),
			zap.String("user_id", ev.UserID.String()))
	})

	scheduler := app.NewScheduler(service.NewReconcileService(store, recorder, logger), cfg.ReconcileInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(api.Services{
		Auth:        authService,
		Members:     membershipService,
		Connections: connectionService,
		Study:       studyService,
	}, cfg.AllowAdminUsernameFallback, logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("✅ HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	if cfg.BotEnabled() {
		if err := startBot(ctx, cfg, authService, connectionService, logger); err != nil {
			logger.Error("Failed to start bot", zap.Error(err))
			stop()
		}
	}

	<-ctx.Done()
	logger.Info("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	if err := pubSub.Close(); err != nil {
		logger.Error("Failed to close pubsub", zap.Error(err))
	}
	cancelSink()
	select {
	case <-sinkDone:
	case <-shutdownCtx.Done():
		logger.Warn("Activity sink did not drain in time")
	}

	logger.Info("👋 Stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("⚠️  Using in-memory storage, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("✅ Connected to database")

	migrator, err := app.NewMigrator(pool, migrations.FS, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return postgres.NewStore(pool), pool.Close, nil
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	authService *service.AuthService,
	connectionService *service.ConnectionService,
	logger *zap.Logger,
) error {
	b, err := bot.New(cfg.TelegramToken)
	if err != nil {
		return err
	}

	botController := controller.NewBotController(b, authService, connectionService, logger)
	if err := botController.RegisterHandlers(ctx); err != nil {
		logger.Warn("Bot commands menu not set", zap.Error(err))
	}

	go botController.Start(ctx)
	logger.Info("✅ Bot started")
	return nil
}
