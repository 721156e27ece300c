package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/jackc/pgx/v4/pgxpool"

	"puzzle-gate-service/internal/app"
	"puzzle-gate-service/internal/domain"
	pgloader "puzzle-gate-service/internal/infra/postgres"
	pgmigrations "puzzle-gate-service/internal/infra/postgres/migrations"
	infraredis "puzzle-gate-service/internal/infra/redis"
)

func TestPuzzleSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedPuzzles(t, ctx, pgURL, map[string]string{
		"1": `{"question":"Q1","solution":"cat"}`,
		"2": `{"question":"Q2","solution":"cat"}`,
	})

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewCatalogLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	catalogRepo := infraredis.NewCatalogRepository(redisClient, loader, 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewPuzzleService(sessionStore, catalogRepo, app.Options{
		CuratedIDs:    []string{"1", "2"},
		SecretMessage: "We are currently clean on OPSEC",
	})

	view, err := service.StartOrResume(ctx, "", 2, 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.TotalQuestions != 2 {
		t.Fatalf("expected 2 questions from postgres catalog, got %d", view.TotalQuestions)
	}

	var result domain.AnswerResult
	for i := 0; i < 2; i++ {
		result, err = service.SubmitAnswer(ctx, view.SessionID, "CAT")
		if err != nil {
			t.Fatalf("submit %d: %v", i+1, err)
		}
		if !result.Correct {
			t.Fatalf("submission %d graded wrong: %+v", i+1, result)
		}
	}
	if !result.Completed || !result.SecretRevealed || result.SecretMessage == "" {
		t.Fatalf("expected unlocked terminal summary, got %+v", result)
	}

	// The catalog should now be served from the redis cache.
	exists, err := redisClient.Exists(ctx, "puzzle:catalog:solutions").Result()
	if err != nil || exists != 1 {
		t.Fatalf("expected catalog cached in redis, exists=%d err=%v", exists, err)
	}

	// Another store instance must see the completed session via redis.
	otherStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	otherService := app.NewPuzzleService(otherStore, catalogRepo, app.Options{
		CuratedIDs:    []string{"1", "2"},
		SecretMessage: "We are currently clean on OPSEC",
	})
	secret, err := otherService.Secret(view.SessionID)
	if err != nil {
		t.Fatalf("secret via second instance: %v", err)
	}
	if secret == "" {
		t.Fatalf("expected secret via second instance")
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "puzzle", "POSTGRES_PASSWORD": "puzzlepass", "POSTGRES_DB": "puzzledb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://puzzle:puzzlepass@%s:%s/puzzledb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedPuzzles(t *testing.T, ctx context.Context, dsn string, puzzles map[string]string) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for id, data := range puzzles {
		if _, err := db.ExecContext(ctx, `INSERT INTO puzzles (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, id, data); err != nil {
			t.Fatalf("insert puzzle %s: %v", id, err)
		}
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
