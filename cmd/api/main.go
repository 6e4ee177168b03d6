package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ArowuTest/tambola-backend/api/routes"
	"github.com/ArowuTest/tambola-backend/internal/config"
	"github.com/ArowuTest/tambola-backend/internal/handlers"
	"github.com/ArowuTest/tambola-backend/internal/metrics"
	"github.com/ArowuTest/tambola-backend/internal/models"
	"github.com/ArowuTest/tambola-backend/internal/realtime"
	"github.com/ArowuTest/tambola-backend/internal/repositories"
	mongorepo "github.com/ArowuTest/tambola-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/tambola-backend/internal/scheduler"
	"github.com/ArowuTest/tambola-backend/internal/services"
	"github.com/ArowuTest/tambola-backend/internal/tambola"
	tokens "github.com/ArowuTest/tambola-backend/pkg/jwt"
	"github.com/ArowuTest/tambola-backend/pkg/logger"
	"github.com/ArowuTest/tambola-backend/pkg/mongodb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("server exiting")
}

func run(cfg *config.Config, log *zap.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	mongoClient, err := mongodb.NewClient(context.Background(), cfg.MongoDB.URI)
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Warn("error disconnecting from MongoDB", zap.Error(err))
		}
	}()
	db := mongoClient.Database(cfg.MongoDB.Database)

	var gameRepo repositories.GameRepository = mongorepo.NewGameRepository(db)
	var ticketRepo repositories.TicketRepository = mongorepo.NewTicketRepository(db)
	var userRepo repositories.UserRepository = mongorepo.NewUserRepository(db)

	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := gameRepo.EnsureIndexes(indexCtx); err != nil {
		return fmt.Errorf("ensure game indexes: %w", err)
	}
	if err := ticketRepo.EnsureIndexes(indexCtx); err != nil {
		return fmt.Errorf("ensure ticket indexes: %w", err)
	}

	// Timers do not survive a restart; operators resume these games explicitly
	if live, err := gameRepo.FindByStatus(indexCtx, models.GameStatusLive); err != nil {
		log.Warn("failed to list live games", zap.Error(err))
	} else {
		for _, game := range live {
			log.Info("game is LIVE without auto-play after restart", zap.String("game_id", game.ID.Hex()), zap.Int("drawn", len(game.DrawnNumbers)))
		}
	}

	clock := clockwork.NewRealClock()
	autoPlay, err := scheduler.New(clock, log.Named("scheduler"), scheduler.WithOnChange(metrics.SetAutoPlayGames))
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	hub := realtime.NewHub(log.Named("hub"))

	var relay *realtime.RedisRelay
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		relay = realtime.NewRedisRelay(redisClient, cfg.Redis.Channel, hub, log.Named("relay"))
		relayCtx, relayCancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := relay.Start(relayCtx)
		relayCancel()
		if err != nil {
			return fmt.Errorf("subscribe to redis channel: %w", err)
		}
		hub.SetPublisher(relay)
		log.Info("redis relay enabled", zap.String("addr", cfg.Redis.Addr), zap.String("channel", cfg.Redis.Channel))
	}

	gameService := services.NewGameSessionService(
		gameRepo,
		ticketRepo,
		userRepo,
		hub,
		autoPlay,
		tambola.NewRandomDrawer(),
		clock,
		log.Named("session"),
		services.SessionConfig{
			AutoPlayInterval: cfg.Game.AutoPlayInterval,
			OperationTimeout: cfg.Game.OperationTimeout,
		},
	)

	var tokenService *tokens.TokenService
	if cfg.JWT.Secret != "" {
		tokenService = tokens.NewTokenService(cfg.JWT.Secret, cfg.JWT.TokenTTL())
	} else {
		log.Warn("JWT.Secret is not set; admin routes and admin socket commands are unavailable")
	}

	wsServer := realtime.NewServer(
		hub,
		realtime.NewDispatcher(hub, gameService, log.Named("dispatcher")),
		tokenService,
		realtime.ServerConfig{
			AllowedOrigins:    cfg.Server.AllowedOrigins,
			RequireAuth:       cfg.JWT.Required,
			SendBuffer:        cfg.WebSocket.SendBuffer,
			MessagesPerSecond: cfg.WebSocket.MessagesPerSecond,
			Burst:             cfg.WebSocket.Burst,
		},
		log.Named("ws"),
	)

	router := routes.SetupRouter(cfg, routes.HandlerDependencies{
		GameHandler:  handlers.NewGameHandler(gameService, log.Named("http")),
		WSServer:     wsServer,
		TokenService: tokenService,
		Logger:       log.Named("http"),
		HealthCheck:  mongoClient.Ping,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	// Timers stop before the store is disconnected
	gameService.Shutdown()
	if err := autoPlay.Shutdown(); err != nil {
		log.Warn("scheduler shutdown", zap.Error(err))
	}

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	hub.Shutdown()
	if relay != nil {
		relay.Close()
	}
	return nil
}
