package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"event-quiz-service/internal/app"
	"event-quiz-service/internal/domain"
	"event-quiz-service/internal/infra/postgres"
	pgmigrations "event-quiz-service/internal/infra/postgres/migrations"
	infraredis "event-quiz-service/internal/infra/redis"
)

type stack struct {
	service      *app.QuizService
	participants *postgres.ParticipantDirectory
	sessions     *postgres.SessionStore
	questions    *postgres.QuestionBank
}

func TestQuizLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	started, err := s.service.Start(ctx, "ALICE@example.com", string(domain.EventSensorShowDown))
	require.NoError(t, err)
	require.Len(t, started.Questions, 10)

	// Resume hands back the same attempt.
	again, err := s.service.Start(ctx, "alice@example.com", string(domain.EventSensorShowDown))
	require.NoError(t, err)
	require.True(t, again.Resumed)
	require.Equal(t, started.SessionID, again.SessionID)

	answers := make([]domain.AnswerSubmission, 0, len(started.Questions))
	for i, pq := range started.Questions {
		q, err := s.questions.GetQuestion(ctx, pq.ID)
		require.NoError(t, err)
		selected := q.CorrectOption
		if i%2 == 1 {
			selected = (q.CorrectOption + 1) % 4
		}
		answers = append(answers, domain.AnswerSubmission{QuestionID: q.ID, SelectedOption: selected, TimeSpent: 3})
	}

	res, err := s.service.Submit(ctx, started.SessionID, answers)
	require.NoError(t, err)
	require.Equal(t, 5, res.CorrectAnswers)
	require.Equal(t, 50, res.RawScore)
	require.Equal(t, 50, res.PercentageScore)

	p, err := s.participants.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.True(t, p.QuizTaken)
	require.NotNil(t, p.QuizScore)
	require.Equal(t, 50, *p.QuizScore)
	require.Len(t, p.QuizAnswers, 10)

	_, err = s.service.Submit(ctx, started.SessionID, answers)
	require.ErrorIs(t, err, domain.ErrAlreadySubmitted)
	_, err = s.service.Start(ctx, "alice@example.com", string(domain.EventSensorShowDown))
	require.ErrorIs(t, err, domain.ErrAlreadyAttempted)
}

func TestConcurrentSubmitAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	started, err := s.service.Start(ctx, "bob@example.com", string(domain.EventSensorShowDown))
	require.NoError(t, err)

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		conflict int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Submit(ctx, started.SessionID, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrAlreadySubmitted):
				conflict++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
	require.Equal(t, callers-1, conflict)

	session, err := s.sessions.Get(ctx, started.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, session.Status)
}

func TestLiveSessionIndexRejectsSecondSession(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, ctx)

	base := domain.QuizSession{
		ParticipantID:  "p-bob",
		Event:          domain.EventSensorShowDown,
		QuestionIDs:    []string{"sensor-01"},
		Status:         domain.StatusInProgress,
		StartTime:      time.Now(),
		Duration:       10 * time.Minute,
		TotalQuestions: 1,
	}
	first, second := base, base
	first.ID, second.ID = "live-1", "live-2"

	require.NoError(t, s.sessions.Insert(ctx, first))
	require.ErrorIs(t, s.sessions.Insert(ctx, second), domain.ErrSessionCollision)

	require.NoError(t, s.sessions.Abandon(ctx, first.ID, time.Now()))
	require.ErrorIs(t, s.sessions.Abandon(ctx, first.ID, time.Now()), domain.ErrStaleTransition)
	require.NoError(t, s.sessions.Insert(ctx, second))
}

func newStack(t *testing.T, ctx context.Context) *stack {
	t.Helper()
	requireDocker(t)

	pgURL := startPostgres(t, ctx)
	redisURL := startRedis(t, ctx)
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	s := &stack{
		participants: postgres.NewParticipantDirectory(pool),
		sessions:     postgres.NewSessionStore(pool),
		questions:    postgres.NewQuestionBank(pool),
	}
	seed(t, ctx, s)

	cache := infraredis.NewQuestionCache(redisClient, s.questions, 5*time.Minute)
	s.service = app.NewQuizService(app.Config{
		Sessions:     s.sessions,
		Participants: s.participants,
		Questions:    cache,
		Sampler:      app.NewQuestionSampler(cache, 42),
	})
	return s
}

func seed(t *testing.T, ctx context.Context, s *stack) {
	t.Helper()
	for _, p := range []domain.Participant{
		{ID: "p-alice", Email: "alice@example.com", Event: domain.EventSensorShowDown, TeamLeadName: "Alice"},
		{ID: "p-bob", Email: "bob@example.com", Event: domain.EventSensorShowDown, TeamLeadName: "Bob"},
	} {
		require.NoError(t, s.participants.Register(ctx, p))
	}
	for i := 1; i <= 12; i++ {
		require.NoError(t, s.questions.Put(ctx, domain.Question{
			ID:            fmt.Sprintf("sensor-%02d", i),
			Event:         domain.EventSensorShowDown,
			Text:          fmt.Sprintf("Sensor question %d", i),
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: i % 4,
			Difficulty:    "medium",
			Points:        10,
			Active:        true,
		}))
	}
	require.NoError(t, s.questions.Put(ctx, domain.Question{
		ID:      "sensor-retired",
		Event:   domain.EventSensorShowDown,
		Text:    "Retired",
		Options: []string{"a", "b", "c", "d"},
		Active:  false,
	}))
}

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
}

func startRedis(t *testing.T, ctx context.Context) string {
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
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)
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
		t.Skip("integration test skipped in short mode")
	}
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
