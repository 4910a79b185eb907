package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"snakeiaserver/internal/auth"
	"snakeiaserver/internal/config"
	"snakeiaserver/internal/database/db_client"
	"snakeiaserver/internal/database/migrations"
	"snakeiaserver/internal/game"
	"snakeiaserver/internal/http/authhandler"
	"snakeiaserver/internal/http/http_server"
	"snakeiaserver/internal/http/roomhandler"
	"snakeiaserver/internal/redis/directory"
	"snakeiaserver/internal/redis/redis_client"
	"snakeiaserver/internal/redis/redis_functions"
	"snakeiaserver/internal/redis/watcher/instancewatcher"
	"snakeiaserver/internal/roomsync"
	"snakeiaserver/internal/services/rooms"
	"snakeiaserver/internal/services/rounds"
	"snakeiaserver/internal/syncround"
	"snakeiaserver/internal/ws"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
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
	var redisCmd redis.Cmdable // stays a nil interface without Redis
	var pgDb *sql.DB

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.LogFormat == "json" {
		Log, _ = zap.NewProduction()
		zap.ReplaceGlobals(Log)
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	instanceID := uuid.NewString()

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis: room directory, ban list, round stream
	if cfg.RedisEnabled {
		redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort), cfg.RedisPassword)
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		redisCmd = redisClient

		// Load the Redis Functions lua
		if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
			Log.Fatal("load-redis-funcs", zap.Error(err))
		}
	}

	// 4. Postgres: round history
	if cfg.PostgresEnabled {
		pgDb, err = db_client.Open(cfg.PostgresHost, int(cfg.PostgresPort), cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()
		if err := migrations.Migrate(pgDb); err != nil {
			Log.Fatal("pg-migrate", zap.Error(err))
		}
	}

	// 5. Services
	var bans auth.BanList
	if redisClient != nil {
		bans = auth.NewRedisBans(redisClient)
	}
	authService := auth.NewService(
		auth.NewJWTManager(cfg.JwtSecret, cfg.AuthenticationTime),
		auth.Options{
			Enabled:     cfg.EnableAuthentication,
			MinUsername: cfg.MinCharactersUsername,
			MaxUsername: cfg.MaxCharactersUsername,
			Banned:      cfg.BannedUsernames,
		},
		bans,
	)
	roundService := rounds.NewRoundService(redisCmd, pgDb)

	// 6. Game loop; the hub is its broadcaster
	hub := ws.NewHub()
	gameService := game.NewService(cfg.Game(), game.Deps{
		Broadcaster:   hub,
		Authenticator: authService,
		Recorder:      roundService,
	})
	gameDone := make(chan struct{})
	go func() {
		gameService.Run(ctx)
		close(gameDone)
	}()

	var shared rooms.Shared
	var dir *directory.Directory
	if redisClient != nil {
		dir = directory.New(redisClient, instanceID, 3*cfg.RoomSyncInterval)
		shared = dir
		roomsync.Run(ctx, gameService, dir, cfg.RoomSyncInterval)
	}
	roomService := rooms.NewRoomService(gameService, shared, instanceID)

	// 7. WebSockets server + listing fan-out
	wsSrv := ws.NewWsServer(hub, gameService, roomService, ws.Options{
		AllowedOrigins:    cfg.AllowedOrigins,
		MessagesPerSecond: cfg.WsMessagesPerSecond,
		Burst:             cfg.WsBurst,
	})
	if redisClient != nil {
		go ws.SubscribeRoomChanges(ctx, redisClient, dir.Key(), wsSrv)
		go instancewatcher.Run(ctx, redisClient, func(inst string) {
			Log.Warn("instance.lapsed", zap.String("instance", inst))
		})
		if pgDb != nil {
			syncround.Run(ctx, redisClient, pgDb)
		}
	} else {
		go ws.WatchLocalRooms(ctx, wsSrv, cfg.RoomSyncInterval)
	}

	// 8. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx,
		http_server.Options{
			ListenPort:     cfg.HttpServerPort,
			AllowedOrigins: cfg.AllowedOrigins,
			AccessLog:      cfg.HttpAccessLog,
		},
		wsSrv.Handle,
		roomhandler.New(roomService, roundService),
		authhandler.New(authService),
	)
	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()

	Log.Info("server.start",
		zap.String("instance", instanceID),
		zap.Uint16("port", cfg.HttpServerPort),
		zap.Bool("redis", cfg.RedisEnabled),
		zap.Bool("postgres", cfg.PostgresEnabled),
	)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
	<-gameDone
}
