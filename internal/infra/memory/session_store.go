package memory

import (
	"context"
	"sync"
	"time"

	"event-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// live indexes each participant's in_progress or completed session, which is
// the uniqueness constraint Insert enforces.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.QuizSession
	live     map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.QuizSession),
		live:     make(map[string]string),
	}
}

func (s *SessionStore) Insert(_ context.Context, session domain.QuizSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[session.ParticipantID]; ok {
		return domain.ErrSessionCollision
	}
	if _, ok := s.sessions[session.ID]; ok {
		return domain.ErrSessionCollision
	}
	s.sessions[session.ID] = copySession(session)
	s.live[session.ParticipantID] = session.ID
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return copySession(session), nil
}

func (s *SessionStore) FindLive(_ context.Context, participantID string) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.live[participantID]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return copySession(s.sessions[id]), nil
}

func (s *SessionStore) Complete(_ context.Context, id string, c domain.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Status != domain.StatusInProgress {
		return domain.ErrStaleTransition
	}
	c.Apply(&session)
	s.sessions[id] = session
	return nil
}

func (s *SessionStore) Abandon(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Status != domain.StatusInProgress {
		return domain.ErrStaleTransition
	}
	session.Status = domain.StatusAbandoned
	session.EndTime = &at
	s.sessions[id] = session
	if s.live[session.ParticipantID] == id {
		delete(s.live, session.ParticipantID)
	}
	return nil
}

func copySession(s domain.QuizSession) domain.QuizSession {
	s.QuestionIDs = append([]string(nil), s.QuestionIDs...)
	s.Answers = append([]domain.AnswerOutcome(nil), s.Answers...)
	if s.EndTime != nil {
		end := *s.EndTime
		s.EndTime = &end
	}
	return s
}
