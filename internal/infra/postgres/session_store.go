package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"event-quiz-service/internal/domain"
)

const sessionColumns = `id, participant_id, event, question_ids, status, start_time, end_time,
	duration_seconds, total_questions, questions_attempted, correct_answers, score,
	max_possible_score, percentage_score, time_taken, answers`

// SessionStore keeps quiz sessions in the quiz_sessions table. The partial
// unique index on participant_id enforces one live session per participant;
// status changes are conditional UPDATEs on status = 'in_progress'.
type SessionStore struct {
	db querier
}

func NewSessionStore(db querier) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Insert(ctx context.Context, session domain.QuizSession) error {
	ids, err := json.Marshal(session.QuestionIDs)
	if err != nil {
		return fmt.Errorf("encode question ids: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO quiz_sessions (id, participant_id, event, question_ids, status, start_time,
			duration_seconds, total_questions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, session.ParticipantID, string(session.Event), ids, string(session.Status),
		session.StartTime, int(session.Duration/time.Second), session.TotalQuestions,
	)
	if isUniqueViolation(err) {
		return domain.ErrSessionCollision.Wrap(err)
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (domain.QuizSession, error) {
	return scanSession(s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = $1`, id))
}

func (s *SessionStore) FindLive(ctx context.Context, participantID string) (domain.QuizSession, error) {
	return scanSession(s.db.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM quiz_sessions
		WHERE participant_id = $1 AND status IN ('in_progress', 'completed')`, participantID))
}

func (s *SessionStore) Complete(ctx context.Context, id string, c domain.Completion) error {
	answers, err := json.Marshal(c.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE quiz_sessions
		SET status = 'completed', end_time = $2, time_taken = $3, questions_attempted = $4,
			correct_answers = $5, score = $6, max_possible_score = $7, percentage_score = $8, answers = $9
		WHERE id = $1 AND status = 'in_progress'`,
		id, c.EndTime, c.TimeTakenSeconds, c.QuestionsAttempted,
		c.CorrectAnswers, c.RawScore, c.MaxPossibleScore, c.PercentageScore, answers,
	)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return s.checkTransition(ctx, id, tag.RowsAffected())
}

func (s *SessionStore) Abandon(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE quiz_sessions SET status = 'abandoned', end_time = $2
		WHERE id = $1 AND status = 'in_progress'`, id, at)
	if err != nil {
		return fmt.Errorf("abandon session: %w", err)
	}
	return s.checkTransition(ctx, id, tag.RowsAffected())
}

// checkTransition tells a lost race from a missing session when no row matched.
func (s *SessionStore) checkTransition(ctx context.Context, id string, affected int64) error {
	if affected == 1 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quiz_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return domain.ErrSessionNotFound
	}
	return domain.ErrStaleTransition
}

func scanSession(row pgx.Row) (domain.QuizSession, error) {
	var (
		s               domain.QuizSession
		event, status   string
		ids, answers    []byte
		durationSeconds int
	)
	err := row.Scan(&s.ID, &s.ParticipantID, &event, &ids, &status, &s.StartTime, &s.EndTime,
		&durationSeconds, &s.TotalQuestions, &s.QuestionsAttempted, &s.CorrectAnswers, &s.RawScore,
		&s.MaxPossibleScore, &s.PercentageScore, &s.TimeTakenSeconds, &answers)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("scan session: %w", err)
	}
	s.Event = domain.Event(event)
	s.Status = domain.SessionStatus(status)
	s.Duration = time.Duration(durationSeconds) * time.Second
	if err := json.Unmarshal(ids, &s.QuestionIDs); err != nil {
		return domain.QuizSession{}, fmt.Errorf("decode question ids: %w", err)
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &s.Answers); err != nil {
			return domain.QuizSession{}, fmt.Errorf("decode answers: %w", err)
		}
	}
	return s, nil
}
