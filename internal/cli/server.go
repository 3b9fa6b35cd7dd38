package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"culture-quiz-service/internal/app"
	"culture-quiz-service/internal/config"
	"culture-quiz-service/internal/infra/memory"
	pgsource "culture-quiz-service/internal/infra/postgres"
	"culture-quiz-service/internal/infra/rabbit"
	redisinfra "culture-quiz-service/internal/infra/redis"
	"culture-quiz-service/internal/logger"
	"culture-quiz-service/internal/metrics"
	"culture-quiz-service/internal/seed"
	transport "culture-quiz-service/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	log := logger.New("quiz-service", cfg.Log.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
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
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	var source memory.QuestionSource
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		source = pgsource.NewQuestionSource(pool)
	} else {
		bank, err := seed.Questions()
		if err != nil {
			return err
		}
		source = memory.NewStaticSource(bank)
	}

	var (
		bank  app.QuestionBank
		store app.SessionRepository
	)
	if redisClient != nil {
		bank = redisinfra.NewQuestionBank(redisClient, source, cfg.BankTTL())
		store = redisinfra.NewSessionStore(redisClient, cfg.RedisTTL())
	} else {
		bank = memory.NewQuestionBank(source, cfg.BankTTL())
		store = memory.NewSessionStore()
	}

	m := metrics.New()
	opts := []app.Option{app.WithLogger(log), app.WithMetrics(m)}
	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbit.NewResultsPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, app.WithPublisher(publisher))
	}

	service := app.NewQuizService(store, bank, cfg.Settings(), opts...)
	defer service.Close()

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go service.RunJanitor(janitorCtx, cfg.SweepInterval())

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.NewRouter(service, transport.RouterConfig{
		AllowedOrigins: cfg.Origins(),
		RedactAnswers:  cfg.Quiz.RedactAnswers,
		Logger:         log,
		Metrics:        m,
	})

	// No WriteTimeout: websocket connections are long lived.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":     finalPort,
			"postgres": cfg.Postgres.URL != "",
			"redis":    redisClient != nil,
			"rabbitmq": cfg.RabbitMQ.URL != "",
		}).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
