package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"event-quiz-service/internal/app"
	"event-quiz-service/internal/config"
	"event-quiz-service/internal/infra/memory"
	"event-quiz-service/internal/infra/postgres"
	infraredis "event-quiz-service/internal/infra/redis"
	"event-quiz-service/internal/telemetry"
	transport "event-quiz-service/internal/transport/http"
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

type backends struct {
	sessions     app.SessionRepository
	participants interface {
		app.ParticipantDirectory
		app.ParticipantStats
	}
	questions interface {
		app.QuestionBank
		app.QuestionStats
	}
	health []func(ctx context.Context) error
	close  []func()
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	policy, err := app.ParseAbandonPolicy(cfg.Quiz.AbandonPolicy)
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

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range b.close {
			c()
		}
	}()

	metrics, err := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	service := app.NewQuizService(app.Config{
		Sessions:     b.sessions,
		Participants: b.participants,
		Questions:    b.questions,
		Sampler:      app.NewQuestionSampler(b.questions, cfg.Quiz.Seed),
		Durations: app.Durations{
			Default:  config.TTLDuration(cfg.Quiz.DefaultDuration, app.DefaultQuizDuration),
			PerEvent: cfg.EventDurations(),
		},
		QuestionCount: cfg.Quiz.QuestionCount,
		Policy:        policy,
		Logger:        log.Named("quiz"),
		Metrics:       metrics,
	})
	stats := app.NewStatsService(b.participants, b.questions)

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(transport.RouterConfig{
		Quiz:          service,
		Stats:         stats,
		Logger:        log,
		AdminAccounts: adminAccounts(cfg),
		Health: func(ctx context.Context) error {
			for _, h := range b.health {
				if err := h(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info("starting quiz service", zap.String("addr", server.Addr), zap.String("policy", string(policy)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

// openBackends picks stores from config: Postgres when a URL is set, Redis
// for sessions when only Redis is set, in-memory demo data otherwise. Redis
// always fronts the question bank when configured.
func openBackends(ctx context.Context, cfg config.Config, log *zap.Logger) (*backends, error) {
	b := &backends{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		telemetry.MonitorRedis(redisClient, log)
		b.health = append(b.health, func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		b.close = append(b.close, func() { _ = redisClient.Close() })
	}

	var bank interface {
		app.QuestionBank
		app.QuestionStats
	}
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.health = append(b.health, pool.Ping)
		b.close = append(b.close, pool.Close)

		b.participants = postgres.NewParticipantDirectory(pool)
		b.sessions = postgres.NewSessionStore(pool)
		bank = postgres.NewQuestionBank(pool)
		log.Info("using postgres stores")
	} else {
		participants, questions := demoData()
		b.participants = memory.NewParticipantDirectory(participants...)
		bank = memory.NewQuestionBank(questions...)
		if redisClient != nil {
			b.sessions = infraredis.NewSessionStore(redisClient)
		} else {
			b.sessions = memory.NewSessionStore()
		}
		log.Warn("postgres not configured, serving in-memory demo data",
			zap.Int("participants", len(participants)),
			zap.Int("questions", len(questions)),
		)
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	if redisClient != nil {
		b.questions = withStats{
			QuestionBank:  infraredis.NewQuestionCache(redisClient, bank, config.TTLDuration(cfg.Redis.TTL, cacheTTL)),
			QuestionStats: bank,
		}
	} else {
		b.questions = withStats{
			QuestionBank:  memory.NewQuestionCache(bank, cacheTTL),
			QuestionStats: bank,
		}
	}
	return b, nil
}

// withStats pairs a cached bank with the uncached counter.
type withStats struct {
	app.QuestionBank
	app.QuestionStats
}

func adminAccounts(cfg config.Config) gin.Accounts {
	if cfg.Server.AdminUser == "" || cfg.Server.AdminPassword == "" {
		return nil
	}
	return gin.Accounts{cfg.Server.AdminUser: cfg.Server.AdminPassword}
}
