package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"culture-quiz-service/internal/app"
	"culture-quiz-service/internal/domain"
	pgsource "culture-quiz-service/internal/infra/postgres"
	pgmigrations "culture-quiz-service/internal/infra/postgres/migrations"
	"culture-quiz-service/internal/infra/rabbit"
	infraredis "culture-quiz-service/internal/infra/redis"
	"culture-quiz-service/internal/seed"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	amqpURL, rabbitCleanup := startRabbit(t, ctx)
	defer rabbitCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	defer redisClient.Close()

	publisher, err := rabbit.NewResultsPublisher(amqpURL, rabbit.DefaultExchange)
	require.NoError(t, err)
	defer publisher.Close()
	deliveries := consumeResults(t, amqpURL)

	clk := clockwork.NewFakeClock()
	bank := infraredis.NewQuestionBank(redisClient, pgsource.NewQuestionSource(pool), 5*time.Minute)
	store := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewQuizService(store, bank, app.DefaultSettings(),
		app.WithClock(clk),
		app.WithPublisher(publisher),
	)
	defer service.Close()

	_, err = service.CreateSession(ctx, []string{"weather"}, 2)
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)

	id, err := service.CreateSession(ctx, []string{"flags"}, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), redisClient.Exists(ctx, "quiz:bank:flags").Val())

	_, err = service.Join(ctx, id, domain.RolePlayer, "Red")
	require.NoError(t, err)
	_, err = service.Join(ctx, id, domain.RolePlayer, "Blue")
	require.NoError(t, err)

	state, err := service.Start(ctx, id)
	require.NoError(t, err)
	res, err := service.SubmitAnswer(ctx, id, "Blue", state.Questions[0].CorrectIndex)
	require.NoError(t, err)
	require.Equal(t, domain.AnswerResult{Correct: true, Score: 1}, res)

	clk.Advance(20 * time.Second)
	require.Eventually(t, func() bool {
		snap, err := service.Snapshot(ctx, id)
		return err == nil && snap.Index == 1
	}, 5*time.Second, 10*time.Millisecond)
	clk.Advance(20 * time.Second)

	select {
	case msg := <-deliveries:
		require.Equal(t, rabbit.SessionEndedRoute, msg.RoutingKey)
		var results domain.Results
		require.NoError(t, json.Unmarshal(msg.Body, &results))
		require.Equal(t, id, results.SessionID)
		require.Equal(t, 2, results.QuestionCount)
		require.Equal(t, domain.ScoreboardEntry{Team: "Blue", Score: 1}, results.Scoreboard[0])
	case <-time.After(10 * time.Second):
		t.Fatal("no results published")
	}

	require.Eventually(t, func() bool {
		raw, err := redisClient.Get(ctx, "quiz:session:"+id).Bytes()
		if err != nil {
			return false
		}
		var rec infraredis.Record
		return json.Unmarshal(raw, &rec) == nil && rec.Status == domain.StatusEnded && rec.Teams["Blue"] == 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestMigrationsLoadSeedBank(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	applyMigrations(t, ctx, pgURL)
	// a second run must be a no-op
	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	bank, err := seed.Questions()
	require.NoError(t, err)
	source := pgsource.NewQuestionSource(pool)
	for category, want := range bank {
		got, err := source.LoadCategory(ctx, category)
		require.NoError(t, err)
		require.ElementsMatch(t, want, got, category)
	}

	_, err = source.LoadCategory(ctx, "weather")
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container := startContainer(t, ctx, req)
	host, port := endpoint(t, ctx, container, "5432/tcp")
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port)
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
	container := startContainer(t, ctx, req)
	host, port := endpoint(t, ctx, container, "6379/tcp")
	return fmt.Sprintf("redis://%s:%s", host, port), func() {
		_ = container.Terminate(ctx)
	}
}

func startRabbit(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(90 * time.Second),
	}
	container := startContainer(t, ctx, req)
	host, port := endpoint(t, ctx, container, "5672/tcp")
	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port), func() {
		_ = container.Terminate(ctx)
	}
}

func startContainer(t *testing.T, ctx context.Context, req tc.ContainerRequest) tc.Container {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", req.Image, err)
	}
	return container
}

func endpoint(t *testing.T, ctx context.Context, container tc.Container, port nat.Port) (string, string) {
	t.Helper()
	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)
	return host, mapped.Port()
}

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)
}

// consumeResults binds a throwaway queue to the results exchange.
func consumeResults(t *testing.T, url string) <-chan amqp.Delivery {
	t.Helper()
	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ch, err := conn.Channel()
	require.NoError(t, err)
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, rabbit.SessionEndedRoute, rabbit.DefaultExchange, false, nil))

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)
	return deliveries
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
