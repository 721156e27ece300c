package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"puzzle-gate-service/internal/app"
	"puzzle-gate-service/internal/config"
	fileloader "puzzle-gate-service/internal/infra/file"
	"puzzle-gate-service/internal/infra/memory"
	pgloader "puzzle-gate-service/internal/infra/postgres"
	redisinfra "puzzle-gate-service/internal/infra/redis"
	"puzzle-gate-service/internal/relay"
	transport "puzzle-gate-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the puzzle-gate server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Defaults are complete enough to serve; missing config is not fatal.
		log.Printf("config %s unavailable (%v), using defaults", configPath, err)
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Quiz.SessionTTL, 30*time.Minute)
	redisTTL := config.TTLDuration(cfg.Redis.TTL, sessionTTL)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.CatalogLoader = fileloader.NewCatalogLoader(cfg.Catalog.Path)
	if pool != nil {
		loader = pgloader.NewCatalogLoader(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalogRepo app.CatalogRepository
	if redisClient != nil {
		catalogRepo = redisinfra.NewCatalogRepository(redisClient, loader, catalogTTL)
	} else {
		catalogRepo = memory.NewCatalogRepository(loader, catalogTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore(sessionTTL, cfg.Quiz.SessionCap)
	}

	service := app.NewPuzzleService(store, catalogRepo, app.Options{
		CuratedIDs:    cfg.Quiz.CuratedIDs,
		SecretMessage: cfg.Quiz.SecretMessage,
		QuestionCount: cfg.Quiz.QuestionCount,
		MinCorrect:    cfg.Quiz.MinCorrect,
	})

	// Fail-open probe: a broken catalog source degrades the puzzle feature
	// instead of blocking startup.
	if catalog, err := catalogRepo.GetCatalog(ctx); err != nil {
		log.Printf("catalog unavailable, continuing with empty catalog: %v", err)
	} else {
		log.Printf("loaded %d puzzles", len(catalog))
	}

	if cfg.Assistant.APIKey == "" {
		log.Printf("OPENAI_API_KEY not set, chat relay calls will fail")
	}
	pollDeadline := config.TTLDuration(cfg.Assistant.PollDeadline, time.Minute)
	chat := relay.New(relay.Config{
		APIKey:       cfg.Assistant.APIKey,
		AssistantID:  cfg.Assistant.AssistantID,
		PollInterval: config.TTLDuration(cfg.Assistant.PollInterval, time.Second),
		PollDeadline: pollDeadline,
		ThreadCap:    cfg.Assistant.ThreadCap,
	})

	handler := transport.NewHandler(service, chat)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// Assistant turns may poll up to the configured deadline.
		WriteTimeout: pollDeadline + 30*time.Second,
	}

	go func() {
		log.Printf("starting puzzle-gate service on :%s", finalPort)
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
