package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"event-quiz-service/internal/domain"
)

const questionColumns = `id, event, question_text, options, correct_option, explanation,
	difficulty, category, points, time_limit, is_active, created_at`

// QuestionBank reads MCQ questions from the questions table.
type QuestionBank struct {
	db querier
}

func NewQuestionBank(db querier) *QuestionBank {
	return &QuestionBank{db: db}
}

// Put upserts a question.
func (b *QuestionBank) Put(ctx context.Context, q domain.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	_, err = b.db.Exec(ctx, `
		INSERT INTO questions (id, event, question_text, options, correct_option, explanation,
			difficulty, category, points, time_limit, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			event = EXCLUDED.event, question_text = EXCLUDED.question_text, options = EXCLUDED.options,
			correct_option = EXCLUDED.correct_option, explanation = EXCLUDED.explanation,
			difficulty = EXCLUDED.difficulty, category = EXCLUDED.category, points = EXCLUDED.points,
			time_limit = EXCLUDED.time_limit, is_active = EXCLUDED.is_active`,
		q.ID, string(q.Event), q.Text, options, q.CorrectOption, q.Explanation,
		q.Difficulty, q.Category, q.PointsValue(), timeLimit(q), q.Active,
	)
	return err
}

func (b *QuestionBank) ActiveQuestions(ctx context.Context, event domain.Event) ([]domain.Question, error) {
	rows, err := b.db.Query(ctx, `SELECT `+questionColumns+` FROM questions WHERE event = $1 AND is_active ORDER BY id`, string(event))
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (b *QuestionBank) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	q, err := scanQuestion(b.db.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, err
}

func (b *QuestionBank) CountByEvent(ctx context.Context) (map[domain.Event]int, error) {
	rows, err := b.db.Query(ctx, `SELECT event, COUNT(*) FROM questions GROUP BY event`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.Event]int)
	for rows.Next() {
		var (
			event string
			n     int
		)
		if err := rows.Scan(&event, &n); err != nil {
			return nil, err
		}
		out[domain.Event(event)] = n
	}
	return out, rows.Err()
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q       domain.Question
		event   string
		options []byte
	)
	err := row.Scan(&q.ID, &event, &q.Text, &options, &q.CorrectOption, &q.Explanation,
		&q.Difficulty, &q.Category, &q.Points, &q.TimeLimit, &q.Active, &q.CreatedAt)
	if err != nil {
		return domain.Question{}, err
	}
	q.Event = domain.Event(event)
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("decode options for %s: %w", q.ID, err)
	}
	return q, nil
}

func timeLimit(q domain.Question) int {
	if q.TimeLimit <= 0 {
		return domain.DefaultTimeLimit
	}
	return q.TimeLimit
}
