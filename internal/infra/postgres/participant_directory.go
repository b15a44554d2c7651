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

const participantColumns = `id, email, event, team_code, team_name, team_lead_name, college_name,
	quiz_taken, quiz_score, quiz_start_time, quiz_end_time, quiz_answers`

// ParticipantDirectory stores registrants in the participants table.
type ParticipantDirectory struct {
	db querier
}

func NewParticipantDirectory(db querier) *ParticipantDirectory {
	return &ParticipantDirectory{db: db}
}

// Register inserts a participant. Registration itself lives outside this
// service; this is used for seeding and tests.
func (d *ParticipantDirectory) Register(ctx context.Context, p domain.Participant) error {
	_, err := d.db.Exec(ctx, `
		INSERT INTO participants (id, email, event, team_code, team_name, team_lead_name, college_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, domain.NormalizeEmail(p.Email), string(p.Event), p.TeamCode, p.TeamName, p.TeamLeadName, p.CollegeName,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("register %s: email already registered", p.Email)
	}
	return err
}

func (d *ParticipantDirectory) FindByEmail(ctx context.Context, email string) (domain.Participant, error) {
	row := d.db.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE lower(email) = $1`,
		domain.NormalizeEmail(email))
	return scanParticipant(row)
}

func (d *ParticipantDirectory) FindByID(ctx context.Context, id string) (domain.Participant, error) {
	row := d.db.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id)
	return scanParticipant(row)
}

// UpdateQuizOutcome applies the outcome only while quiz_taken is false.
func (d *ParticipantDirectory) UpdateQuizOutcome(ctx context.Context, participantID string, outcome domain.QuizOutcome) error {
	answers, err := json.Marshal(outcome.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	tag, err := d.db.Exec(ctx, `
		UPDATE participants
		SET quiz_taken = TRUE, quiz_score = $2, quiz_start_time = $3, quiz_end_time = $4, quiz_answers = $5
		WHERE id = $1 AND quiz_taken = FALSE`,
		participantID, outcome.Score, outcome.StartTime, outcome.EndTime, answers,
	)
	if err != nil {
		return fmt.Errorf("update quiz outcome: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := d.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM participants WHERE id = $1)`, participantID).Scan(&exists); err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !exists {
		return domain.ErrParticipantNotFound
	}
	return domain.ErrAlreadyFinalized
}

func (d *ParticipantDirectory) CountParticipants(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRow(ctx, `SELECT COUNT(*) FROM participants`).Scan(&n)
	return n, err
}

func (d *ParticipantDirectory) QuizScores(ctx context.Context) ([]int, error) {
	rows, err := d.db.Query(ctx, `SELECT quiz_score FROM participants WHERE quiz_taken AND quiz_score IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func scanParticipant(row pgx.Row) (domain.Participant, error) {
	var (
		p          domain.Participant
		event      string
		score      *int32
		start, end *time.Time
		answers    []byte
	)
	err := row.Scan(&p.ID, &p.Email, &event, &p.TeamCode, &p.TeamName, &p.TeamLeadName, &p.CollegeName,
		&p.QuizTaken, &score, &start, &end, &answers)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("scan participant: %w", err)
	}
	p.Event = domain.Event(event)
	if score != nil {
		s := int(*score)
		p.QuizScore = &s
	}
	p.QuizStart, p.QuizEnd = start, end
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &p.QuizAnswers); err != nil {
			return domain.Participant{}, fmt.Errorf("decode quiz answers: %w", err)
		}
	}
	return p, nil
}
