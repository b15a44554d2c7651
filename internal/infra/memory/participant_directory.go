package memory

import (
	"context"
	"sync"

	"event-quiz-service/internal/domain"
)

// ParticipantDirectory is an in-memory participant store. UpdateQuizOutcome
// checks and sets quiz_taken under one lock, the same guarantee a conditional
// UPDATE gives in Postgres.
type ParticipantDirectory struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Participant
	byEmail map[string]string
}

func NewParticipantDirectory(participants ...domain.Participant) *ParticipantDirectory {
	d := &ParticipantDirectory{
		byID:    make(map[string]*domain.Participant, len(participants)),
		byEmail: make(map[string]string, len(participants)),
	}
	for _, p := range participants {
		d.Register(p)
	}
	return d
}

// Register adds a participant, normalizing the email.
func (d *ParticipantDirectory) Register(p domain.Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p.Email = domain.NormalizeEmail(p.Email)
	d.byID[p.ID] = &p
	d.byEmail[p.Email] = p.ID
}

func (d *ParticipantDirectory) FindByEmail(_ context.Context, email string) (domain.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return clone(d.byID[id]), nil
}

func (d *ParticipantDirectory) FindByID(_ context.Context, id string) (domain.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byID[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return clone(p), nil
}

func (d *ParticipantDirectory) UpdateQuizOutcome(_ context.Context, participantID string, outcome domain.QuizOutcome) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.byID[participantID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if p.QuizTaken {
		return domain.ErrAlreadyFinalized
	}
	score := outcome.Score
	start, end := outcome.StartTime, outcome.EndTime
	p.QuizTaken = true
	p.QuizScore = &score
	p.QuizStart = &start
	p.QuizEnd = &end
	p.QuizAnswers = append([]domain.AnswerOutcome(nil), outcome.Answers...)
	return nil
}

func (d *ParticipantDirectory) CountParticipants(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID), nil
}

func (d *ParticipantDirectory) QuizScores(_ context.Context) ([]int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	scores := make([]int, 0, len(d.byID))
	for _, p := range d.byID {
		if p.QuizTaken && p.QuizScore != nil {
			scores = append(scores, *p.QuizScore)
		}
	}
	return scores, nil
}

func clone(p *domain.Participant) domain.Participant {
	out := *p
	out.QuizAnswers = append([]domain.AnswerOutcome(nil), p.QuizAnswers...)
	return out
}
