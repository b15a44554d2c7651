package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"event-quiz-service/internal/app"
	"event-quiz-service/internal/domain"
	qerrors "event-quiz-service/internal/errors"
	"event-quiz-service/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	service      *app.QuizService
	sessions     *memory.SessionStore
	participants *memory.ParticipantDirectory
	bank         *memory.QuestionBank
	clock        *fakeClock
}

func newFixture(t *testing.T, policy app.AbandonPolicy) *fixture {
	t.Helper()

	questions := make([]domain.Question, 0, 12)
	for i := 0; i < 12; i++ {
		questions = append(questions, domain.Question{
			ID:            fmt.Sprintf("q%02d", i),
			Event:         domain.EventInnovWEB,
			Text:          fmt.Sprintf("Question %d", i),
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: i % 4,
			Explanation:   "secret",
			Points:        10,
			Active:        true,
		})
	}
	bank := memory.NewQuestionBank(questions...)
	participants := memory.NewParticipantDirectory(
		domain.Participant{ID: "p1", Email: "alice@example.com", Event: domain.EventInnovWEB, TeamLeadName: "Alice"},
		domain.Participant{ID: "p2", Email: "bob@example.com", Event: domain.EventInnovWEB, TeamLeadName: "Bob", QuizTaken: true},
	)
	sessions := memory.NewSessionStore()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	var seq atomic.Int64
	service := app.NewQuizService(app.Config{
		Sessions:      sessions,
		Participants:  participants,
		Questions:     bank,
		Sampler:       app.NewQuestionSampler(bank, 99),
		Durations:     app.Durations{Default: 600 * time.Second},
		QuestionCount: 10,
		Policy:        policy,
		Now:           clock.Now,
		NewID: func() (string, error) {
			return fmt.Sprintf("session-%d", seq.Add(1)), nil
		},
	})
	return &fixture{service: service, sessions: sessions, participants: participants, bank: bank, clock: clock}
}

// answersFor answers the first n questions of a session correctly and the rest wrong.
func (f *fixture) answersFor(t *testing.T, res app.StartResult, n int) []domain.AnswerSubmission {
	t.Helper()
	out := make([]domain.AnswerSubmission, 0, len(res.Questions))
	for i, pq := range res.Questions {
		q, err := f.bank.GetQuestion(context.Background(), pq.ID)
		require.NoError(t, err)
		sel := q.CorrectOption
		if i >= n {
			sel = (sel + 1) % 4
		}
		out = append(out, domain.AnswerSubmission{QuestionID: q.ID, SelectedOption: sel, TimeSpent: 5})
	}
	return out
}

func TestStart(t *testing.T) {
	f := newFixture(t, app.PolicyResume)
	ctx := context.Background()

	res, err := f.service.Start(ctx, "  Alice@Example.com ", "InnovWEB")
	require.NoError(t, err)
	require.Equal(t, "Alice", res.ParticipantName)
	require.Len(t, res.Questions, 10)
	require.Equal(t, 10, res.TotalQuestions)
	require.Equal(t, 600, res.TotalTimeSeconds)
	require.Equal(t, 600, res.RemainingSeconds)
	require.False(t, res.Resumed)

	session, err := f.sessions.Get(ctx, res.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInProgress, session.Status)
	require.Len(t, session.QuestionIDs, 10)
}

func TestStartErrors(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		email, event string
		want         error
		code         qerrors.Code
	}{
		"unknown event":            {"alice@example.com", "Hackathon", domain.ErrInvalidEvent, qerrors.CodeInvalidArgument},
		"blank email":              {"   ", "InnovWEB", domain.ErrInvalidEmail, qerrors.CodeInvalidArgument},
		"unregistered participant": {"nobody@example.com", "InnovWEB", domain.ErrParticipantNotFound, qerrors.CodeNotFound},
		"quiz already taken":       {"bob@example.com", "InnovWEB", domain.ErrAlreadyAttempted, qerrors.CodeAlreadyExists},
		"no questions for event":   {"alice@example.com", "IdeaArena", domain.ErrNoQuestionsAvailable, qerrors.CodeUnavailable},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, app.PolicyResume)
			_, err := f.service.Start(ctx, tc.email, tc.event)
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, tc.code, qerrors.CodeOf(err))
		})
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newFixture(t, app.PolicyResume)
	ctx := context.Background()

	res, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
	require.NoError(t, err)

	f.clock.Advance(125 * time.Second)
	out, err := f.service.Submit(ctx, res.SessionID, f.answersFor(t, res, 4))
	require.NoError(t, err)
	require.Equal(t, 40, out.RawScore)
	require.Equal(t, 100, out.MaxPossibleScore)
	require.Equal(t, 40, out.PercentageScore)
	require.Equal(t, 4, out.CorrectAnswers)
	require.Equal(t, 10, out.QuestionsAttempted)
	require.Equal(t, 125, out.TimeTakenSeconds)

	before, err := f.participants.FindByID(ctx, "p1")
	require.NoError(t, err)
	require.True(t, before.QuizTaken)
	require.Equal(t, 40, *before.QuizScore)
	require.Len(t, before.QuizAnswers, 10)

	// A retried or different payload must not rescore or touch the record.
	f.clock.Advance(time.Second)
	_, err = f.service.Submit(ctx, res.SessionID, f.answersFor(t, res, 10))
	require.ErrorIs(t, err, domain.ErrAlreadySubmitted)
	require.Equal(t, qerrors.CodeAlreadyExists, qerrors.CodeOf(err))

	after, err := f.participants.FindByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, before, after)

	session, err := f.sessions.Get(ctx, res.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, session.Status)
	require.Equal(t, 40, session.PercentageScore)
}

func TestSubmitUnknownSessionIsNotFound(t *testing.T) {
	f := newFixture(t, app.PolicyResume)
	_, err := f.service.Submit(context.Background(), "missing", nil)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	require.Equal(t, qerrors.CodeNotFound, qerrors.CodeOf(err))
}

func TestSubmitRejectsForeignQuestion(t *testing.T) {
	f := newFixture(t, app.PolicyResume)
	ctx := context.Background()

	res, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
	require.NoError(t, err)

	sampled := make(map[string]bool)
	for _, q := range res.Questions {
		sampled[q.ID] = true
	}
	var foreign string
	for i := 0; i < 12; i++ {
		if id := fmt.Sprintf("q%02d", i); !sampled[id] {
			foreign = id
			break
		}
	}
	require.NotEmpty(t, foreign)

	answers := append(f.answersFor(t, res, 10), domain.AnswerSubmission{QuestionID: foreign, SelectedOption: 0})
	_, err = f.service.Submit(ctx, res.SessionID, answers)
	require.ErrorIs(t, err, domain.ErrForeignQuestion)
	require.Equal(t, qerrors.CodeInvalidArgument, qerrors.CodeOf(err))

	// The rejected payload leaves the session open for a valid one.
	session, _ := f.sessions.Get(ctx, res.SessionID)
	require.Equal(t, domain.StatusInProgress, session.Status)
	p, _ := f.participants.FindByID(ctx, "p1")
	require.False(t, p.QuizTaken)
}

func TestLateSubmitScoresNormally(t *testing.T) {
	f := newFixture(t, app.PolicyResume)
	ctx := context.Background()

	res, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
	require.NoError(t, err)

	f.clock.Advance(650 * time.Second)
	out, err := f.service.Submit(ctx, res.SessionID, f.answersFor(t, res, 10))
	require.NoError(t, err)
	require.Equal(t, 650, out.TimeTakenSeconds)
	require.Equal(t, 100, out.PercentageScore)
	require.True(t, out.Overtime)
}

func TestStartAfterCompletionIsAlreadyAttempted(t *testing.T) {
	f := newFixture(t, app.PolicyRestart)
	ctx := context.Background()

	res, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, res.SessionID, nil)
	require.NoError(t, err)

	_, err = f.service.Start(ctx, "alice@example.com", "InnovWEB")
	require.ErrorIs(t, err, domain.ErrAlreadyAttempted)

	live, err := f.sessions.FindLive(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, res.SessionID, live.ID, "no new session may be persisted")
}

func TestAbandonPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("resume returns the live session", func(t *testing.T) {
		f := newFixture(t, app.PolicyResume)
		first, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
		require.NoError(t, err)

		f.clock.Advance(100 * time.Second)
		second, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
		require.NoError(t, err)
		require.True(t, second.Resumed)
		require.Equal(t, first.SessionID, second.SessionID)
		require.Equal(t, first.Questions, second.Questions)
		require.Equal(t, 500, second.RemainingSeconds)
	})

	t.Run("resume restarts after expiry", func(t *testing.T) {
		f := newFixture(t, app.PolicyResume)
		first, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
		require.NoError(t, err)

		f.clock.Advance(601 * time.Second)
		second, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
		require.NoError(t, err)
		require.False(t, second.Resumed)
		require.NotEqual(t, first.SessionID, second.SessionID)

		old, _ := f.sessions.Get(ctx, first.SessionID)
		require.Equal(t, domain.StatusAbandoned, old.Status)
	})

	t.Run("restart abandons immediately", func(t *testing.T) {
		f := newFixture(t, app.PolicyRestart)
		first, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
		require.NoError(t, err)
		second, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
		require.NoError(t, err)
		require.NotEqual(t, first.SessionID, second.SessionID)

		_, err = f.service.Submit(ctx, first.SessionID, nil)
		require.ErrorIs(t, err, domain.ErrSessionAbandoned)
	})

	t.Run("reject refuses a second start", func(t *testing.T) {
		f := newFixture(t, app.PolicyReject)
		_, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
		require.NoError(t, err)
		_, err = f.service.Start(ctx, "alice@example.com", "InnovWEB")
		require.ErrorIs(t, err, domain.ErrSessionInProgress)
		require.Equal(t, qerrors.CodeAlreadyExists, qerrors.CodeOf(err))
	})
}

func TestConcurrentSubmitHasOneWinner(t *testing.T) {
	f := newFixture(t, app.PolicyResume)
	ctx := context.Background()

	res, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []app.SubmitResult
		conflicts int
	)
	payloads := make([][]domain.AnswerSubmission, callers)
	for i := range payloads {
		payloads[i] = f.answersFor(t, res, i)
	}
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := f.service.Submit(ctx, res.SessionID, payloads[i])
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, out)
			case errors.Is(err, domain.ErrAlreadySubmitted):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Equal(t, callers-1, conflicts)

	p, err := f.participants.FindByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, winners[0].PercentageScore, *p.QuizScore)

	session, _ := f.sessions.Get(ctx, res.SessionID)
	require.Equal(t, winners[0].PercentageScore, session.PercentageScore)
}

func TestConcurrentStartCreatesOneSession(t *testing.T) {
	f := newFixture(t, app.PolicyReject)
	ctx := context.Background()

	const callers = 8
	var (
		wg  sync.WaitGroup
		ok  atomic.Int32
		bad atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
			if err == nil {
				ok.Add(1)
				return
			}
			if qerrors.CodeOf(err) == qerrors.CodeAlreadyExists {
				bad.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, ok.Load())
	require.EqualValues(t, callers-1, bad.Load())
}

func TestFinalizeConflictDoesNotOverwrite(t *testing.T) {
	f := newFixture(t, app.PolicyResume)
	ctx := context.Background()

	res, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
	require.NoError(t, err)

	// Another path already finalized the record (for example an admin override).
	now := f.clock.Now()
	require.NoError(t, f.participants.UpdateQuizOutcome(ctx, "p1", domain.QuizOutcome{Score: 77, StartTime: now, EndTime: now}))

	_, err = f.service.Submit(ctx, res.SessionID, f.answersFor(t, res, 10))
	require.ErrorIs(t, err, domain.ErrAlreadyFinalized)

	p, _ := f.participants.FindByID(ctx, "p1")
	require.Equal(t, 77, *p.QuizScore)
}

func TestReconcileFinalizesCompletedSession(t *testing.T) {
	f := newFixture(t, app.PolicyResume)
	ctx := context.Background()

	res, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
	require.NoError(t, err)

	// Simulate a crash between the session write and the participant write.
	require.NoError(t, f.sessions.Complete(ctx, res.SessionID, domain.Completion{
		EndTime:         f.clock.Now().Add(time.Minute),
		PercentageScore: 70,
	}))

	require.NoError(t, f.service.Reconcile(ctx, res.SessionID))
	p, _ := f.participants.FindByID(ctx, "p1")
	require.True(t, p.QuizTaken)
	require.Equal(t, 70, *p.QuizScore)

	require.ErrorIs(t, f.service.Reconcile(ctx, res.SessionID), domain.ErrAlreadyFinalized)
}

func TestAdminAbandon(t *testing.T) {
	f := newFixture(t, app.PolicyReject)
	ctx := context.Background()

	res, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
	require.NoError(t, err)

	require.NoError(t, f.service.Abandon(ctx, res.SessionID))
	require.ErrorIs(t, f.service.Abandon(ctx, res.SessionID), domain.ErrSessionAbandoned)

	// The participant is free to try again.
	again, err := f.service.Start(ctx, "alice@example.com", "InnovWEB")
	require.NoError(t, err)
	require.NotEqual(t, res.SessionID, again.SessionID)
}
