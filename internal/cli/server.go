package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/auth"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/events"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/infra/postgres"
	infraredis "trivia-quiz-service/internal/infra/redis"
	transport "trivia-quiz-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const devAuthSecret = "dev-insecure-secret"

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var (
		attempts app.AttemptStore
		owners   app.OwnerDirectory
	)
	if cfg.Postgres.URL != "" {
		db, err := openBun(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrateDB(ctx, db); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		attempts = postgres.NewAttemptStore(db)
		owners = postgres.NewOwnerDirectory(pool)
	} else {
		log.Printf("postgres url not configured, attempts are kept in memory")
		store := memory.NewStore()
		attempts, owners = store, store
	}

	opts := []app.AttemptServiceOption{app.WithAutoRegister(cfg.Auth.AutoRegister)}
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		cacheTTL := config.TTLDuration(cfg.Redis.TTL, time.Minute)
		opts = append(opts, app.WithLeaderboardCache(infraredis.NewLeaderboardCache(redisClient, cacheTTL)))
	}

	publisher, err := events.NewPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
	if err != nil {
		return err
	}
	defer publisher.Close()
	if publisher.Enabled() {
		opts = append(opts, app.WithPublisher(publisher))
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		log.Printf("auth secret not configured, using an insecure development secret")
		secret = devAuthSecret
	}
	tokens := auth.NewTokenService(secret, cfg.Auth.Issuer, config.TTLDuration(cfg.Auth.TokenTTL, auth.DefaultTokenTTL))

	service := app.NewAttemptService(attempts, owners, opts...)
	router := transport.NewRouter(transport.RouterConfig{
		Service:        service,
		Feed:           service,
		Tokens:         tokens,
		CookieName:     cfg.Auth.CookieName,
		AllowedOrigins: cfg.Server.CORSOrigins,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
