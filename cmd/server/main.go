package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"arcade/auth"
	"arcade/config"
	"arcade/game"
	"arcade/migrations"
	"arcade/notify"
	"arcade/storage"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(ctx *gin.Context) { ctx.String(http.StatusOK, "healthy") })

	if len(allowedOrigins) > 0 {
		r.Use(func(ctx *gin.Context) {
			origin := ctx.Request.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, origin) {
				ctx.Next()
				return
			}
			ctx.String(http.StatusForbidden, "forbidden origin")
			ctx.Abort()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowCredentials: true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{
				"Content-Type",
				"Authorization",
				"Upgrade",
				"Connection",
				"Sec-WebSocket-Key",
				"Sec-WebSocket-Version",
				"Sec-WebSocket-Extensions",
				"Sec-WebSocket-Protocol",
			},
		}))
	}
	return r
}

func buildStore(ctx context.Context, cfg config.Config) (game.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store := storage.NewRedisStore(client)
		return store, store.Ping(ctx)
	case "postgres":
		if err := migrations.Migrate(cfg.PostgresURL); err != nil {
			return nil, err
		}
		return storage.NewPostgresStore(ctx, cfg.PostgresURL)
	default:
		return storage.NewMemoryStore(), nil
	}
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("store setup failed")
	}
	log.Info().Str("backend", cfg.StoreBackend).Msg("room store ready")

	sinks := []notify.Sink{notify.LogSink{}}
	if cfg.FeedWebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.FeedWebhookURL, 5*time.Second))
	}
	dispatcher := notify.NewDispatcher(256, sinks...)
	go dispatcher.Run(ctx)

	registry := game.NewRegistry(
		game.NewTicTacToe(),
		game.NewWordChain(),
		game.NewDrawing(),
		game.NewStory(),
		game.NewCrossword(),
	)
	lifecycle := game.NewLifecycle(store, registry, dispatcher)
	coordinator := game.NewCoordinator(store, registry, dispatcher)
	go lifecycle.RunSweeper(ctx, cfg.SweepInterval)

	tokenManager := auth.NewJWTManager(cfg.JWTKey, 7*24*time.Hour)

	r := CreateServer(cfg.AllowedOrigins)
	authed := r.Group("/")
	authed.Use(auth.RequireActor(tokenManager))
	game.NewHandler(lifecycle, coordinator).Register(authed)

	server := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Addr).Msg("room server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
