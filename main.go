package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"roomhub/internal/config"
	"roomhub/internal/http/http_server"
	"roomhub/internal/http/hubhandler"
	"roomhub/internal/hub"
	"roomhub/internal/redis/redis_client"
	"roomhub/internal/store"
	"roomhub/internal/verify"
	"roomhub/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis-backed state store
	redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	st := store.NewRedis(redisClient)

	// 4. Verification authority client
	authority := verify.NewClient(cfg.AuthorityURL, cfg.VerifyTimeout)

	// 5. The room hub; resume persisted state when routing metadata names
	//    the room up front.
	roomHub := hub.New(authority, st, hub.Options{
		RoomID:           cfg.RoomID,
		AdmissionTimeout: cfg.AdmissionTimeout,
		IdleTimeout:      cfg.IdleTimeout,
	})
	if err := roomHub.Rehydrate(ctx); err != nil {
		Log.Fatal("Failed to rehydrate hub state", zap.Error(err))
	}

	// 6. Initialize the WS server
	wsSrv := ws.NewWsServer(roomHub)

	// 7. HTTP + WS server
	hubHandler := hubhandler.New(roomHub, cfg.BroadcastSecret)
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, hubHandler)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
