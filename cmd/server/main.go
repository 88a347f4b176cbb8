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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"pm-relay/internal/admin"
	"pm-relay/internal/album"
	"pm-relay/internal/auth"
	"pm-relay/internal/bot"
	"pm-relay/internal/config"
	"pm-relay/internal/db"
	"pm-relay/internal/dispatch"
	"pm-relay/internal/edit"
	"pm-relay/internal/feed"
	"pm-relay/internal/logger"
	"pm-relay/internal/message"
	"pm-relay/internal/metrics"
	myMiddleware "pm-relay/internal/middleware"
	"pm-relay/internal/platform/telegram"
	"pm-relay/internal/relay"
	"pm-relay/internal/thread"
	"pm-relay/internal/user"
	"pm-relay/internal/webhook"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile, envFile string

	root := &cobra.Command{
		Use:           "pm-relay",
		Short:         "Private-message relay bot: one forum thread per user in a staff group",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("addr", "", "http listen address")
	v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("addr", root.PersistentFlags().Lookup("addr"))

	setup := func() (*config.Config, *zap.Logger, error) {
		return load(v, configFile, envFile)
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			return runServe(cmd.Context(), cfg, log)
		},
	}
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			return runMigrate(cmd.Context(), cfg, log)
		},
	}

	root.RunE = serve.RunE
	root.AddCommand(serve, migrate)
	return root
}

func load(v *viper.Viper, configFile, envFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(v, configFile, envFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runMigrate(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	database, err := db.NewDatabase(cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer database.Close()
	if err := database.AutoMigrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("✅ Database schema initialized")
	return nil
}

func runServe(parent context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Platform layer: database, redis, bot api
	database, err := db.NewDatabase(cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer database.Close()
	log.Info("✅ Connected to PostgreSQL")

	if err := database.AutoMigrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("✅ Database schema initialized")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	log.Info("✅ Connected to Redis", zap.String("addr", cfg.RedisAddr))

	tg, err := telegram.NewClient(cfg.BotToken, cfg.API.RPS)
	if err != nil {
		return fmt.Errorf("bot api client: %w", err)
	}

	// 2. Relay core
	m := metrics.New()
	threadRepo := thread.NewRepository(database.Conn)
	messageRepo := message.NewRepository(database.Conn)
	threads := thread.NewService(threadRepo, tg, cfg.GroupID, log, m)
	albums := album.New(log,
		album.WithPollInterval(cfg.Album.PollInterval),
		album.WithStablePolls(cfg.Album.StablePolls),
		album.WithMaxWait(cfg.Album.MaxWait))

	// Background work outlives the signal so queued events can drain.
	work, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	hub := feed.NewHub(redisClient, log)
	go hub.Run(work)
	go hub.SubscribeToRedis(work)

	svc := bot.New(bot.Deps{
		API:      tg,
		Users:    user.NewService(user.NewRepository(database.Conn), log),
		Threads:  threads,
		Messages: messageRepo,
		Relay:    relay.NewEngine(tg, log, relay.WithBackoff(cfg.Relay.Backoff), relay.WithRateLimitCap(cfg.Relay.RateLimitCap)),
		Albums:   albums,
		Edits:    edit.NewStore(cfg.Edit.Timeout),
		Feed:     hub,
		Metrics:  m,
		OwnerID:  cfg.OwnerID,
		Log:      log,
	})
	dispatcher := dispatch.New(work, svc.Handle, log)

	// 3. HTTP surface
	audience := telegram.Audience{OwnerID: cfg.OwnerID, GroupID: cfg.GroupID}
	wh := webhook.NewHandler(cfg.WebhookSecret, audience, webhook.NewRedisDeduper(redisClient), dispatcher, version, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", wh.Status)
	r.Post("/webhook", wh.ServeUpdate)
	r.Handle("/metrics", m.Handler())

	authService := auth.NewService(cfg.Admin.Username, cfg.Admin.PasswordHash, cfg.Admin.JWTSecret)
	if authService.Enabled() {
		authMiddleware := myMiddleware.NewAuthMiddleware(authService)
		adminHandler := admin.NewHandler(threadRepo, messageRepo)
		feedHandler := feed.NewHandler(hub)

		r.Post("/api/login", auth.NewHandler(authService).Login)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handle)
			r.Get("/api/threads", adminHandler.ListThreads)
			r.Get("/api/threads/{threadID}/messages", adminHandler.ListMessages)
			r.Get("/ws", feedHandler.ServeWs)
		})
	} else {
		log.Warn("admin.password_hash or admin.jwt_secret not set, admin API and monitor disabled")
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("🚀 Server starting", zap.String("addr", cfg.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cfg.WebhookURL != "" {
		if err := tg.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		log.Info("✅ Webhook registered", zap.String("url", cfg.WebhookURL))
	} else {
		log.Warn("webhook_url not set, expecting the webhook to be registered externally")
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if cfg.WebhookURL != "" {
		if err := tg.DeleteWebhook(shutdownCtx); err != nil {
			log.Warn("delete webhook", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	dispatcher.Close()
	albums.Close()
	log.Info("👋 Stopped")
	return nil
}
