package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"event-quiz-service/internal/domain"
)

// QuestionBank reads question content (from cache/backing store).
type QuestionBank interface {
	ActiveQuestions(ctx context.Context, event domain.Event) ([]domain.Question, error)
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
}

// ParticipantDirectory looks up registrants and applies the one-time quiz outcome.
type ParticipantDirectory interface {
	FindByEmail(ctx context.Context, email string) (domain.Participant, error)
	// UpdateQuizOutcome must only apply while quiz_taken is false and return
	// ErrAlreadyFinalized otherwise.
	UpdateQuizOutcome(ctx context.Context, participantID string, outcome domain.QuizOutcome) error
}

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, Postgres).
// Every mutation is conditional; implementations must not rely on callers for mutual exclusion.
type SessionRepository interface {
	// Insert stores a new in_progress session, failing with ErrSessionCollision
	// when the participant already has an in_progress or completed session.
	Insert(ctx context.Context, session domain.QuizSession) error
	Get(ctx context.Context, id string) (domain.QuizSession, error)
	// FindLive returns the participant's in_progress or completed session, or ErrSessionNotFound.
	FindLive(ctx context.Context, participantID string) (domain.QuizSession, error)
	// Complete moves an in_progress session to completed, or returns ErrStaleTransition.
	Complete(ctx context.Context, id string, c domain.Completion) error
	// Abandon moves an in_progress session to abandoned, or returns ErrStaleTransition.
	Abandon(ctx context.Context, id string, at time.Time) error
}

// Metrics receives lifecycle signals. The zero value of Config uses a no-op.
type Metrics interface {
	SessionStarted(event domain.Event, resumed bool)
	SessionSubmitted(event domain.Event, expired bool)
	SessionAbandoned(event domain.Event)
	Conflict(op string, err error)
}

type nopMetrics struct{}

func (nopMetrics) SessionStarted(domain.Event, bool)   {}
func (nopMetrics) SessionSubmitted(domain.Event, bool) {}
func (nopMetrics) SessionAbandoned(domain.Event)       {}
func (nopMetrics) Conflict(string, error)              {}

// AbandonPolicy decides what starting a quiz does while an earlier attempt is still in progress.
type AbandonPolicy string

const (
	// PolicyResume hands back the live session until it expires, then starts over.
	PolicyResume AbandonPolicy = "resume"
	// PolicyRestart always abandons the live session and starts over.
	PolicyRestart AbandonPolicy = "restart"
	// PolicyReject refuses to start while a session is in progress.
	PolicyReject AbandonPolicy = "reject"
)

// ParseAbandonPolicy accepts the config spelling; empty means PolicyResume.
func ParseAbandonPolicy(raw string) (AbandonPolicy, error) {
	switch AbandonPolicy(raw) {
	case "", PolicyResume:
		return PolicyResume, nil
	case PolicyRestart, PolicyReject:
		return AbandonPolicy(raw), nil
	}
	return "", fmt.Errorf("unknown abandon policy %q", raw)
}

const DefaultQuestionCount = 10

type Config struct {
	Sessions      SessionRepository
	Participants  ParticipantDirectory
	Questions     QuestionBank
	Sampler       *QuestionSampler
	Durations     Durations
	QuestionCount int
	Policy        AbandonPolicy
	Logger        *zap.Logger
	Metrics       Metrics
	// Now and NewID exist for deterministic tests.
	Now   func() time.Time
	NewID func() (string, error)
}

// QuizService is the session manager: it starts attempts, accepts exactly one
// submission per attempt and hands the result to RecordSync.
type QuizService struct {
	sessions     SessionRepository
	participants ParticipantDirectory
	questions    QuestionBank
	sampler      *QuestionSampler
	scorer       *ScoringEngine
	records      *RecordSync
	durations    Durations
	count        int
	policy       AbandonPolicy
	log          *zap.Logger
	metrics      Metrics
	now          func() time.Time
	newID        func() (string, error)
}

func NewQuizService(c Config) *QuizService {
	s := &QuizService{
		sessions:     c.Sessions,
		participants: c.Participants,
		questions:    c.Questions,
		sampler:      c.Sampler,
		durations:    c.Durations,
		count:        c.QuestionCount,
		policy:       c.Policy,
		log:          c.Logger,
		metrics:      c.Metrics,
		now:          c.Now,
		newID:        c.NewID,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = newSessionID
	}
	if s.sampler == nil {
		s.sampler = NewQuestionSampler(c.Questions, 0)
	}
	if s.count <= 0 {
		s.count = DefaultQuestionCount
	}
	if s.policy == "" {
		s.policy = PolicyResume
	}
	s.scorer = NewScoringEngine(c.Questions)
	s.records = NewRecordSync(c.Participants, s.log)
	return s
}

func newSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate session ID: %w", err)
	}
	return id.String(), nil
}

// StartResult is what a quiz taker receives on start. Questions never carry
// the correct option or the explanation.
type StartResult struct {
	SessionID        string                  `json:"session_id"`
	ParticipantName  string                  `json:"participant_name"`
	Event            domain.Event            `json:"event"`
	Questions        []domain.PublicQuestion `json:"questions"`
	TotalQuestions   int                     `json:"total_questions"`
	TotalTimeSeconds int                     `json:"total_time"`
	RemainingSeconds int                     `json:"remaining_time"`
	Deadline         time.Time               `json:"deadline"`
	Resumed          bool                    `json:"resumed"`
}

// Start creates (or, under PolicyResume, hands back) the participant's quiz session.
func (s *QuizService) Start(ctx context.Context, email, rawEvent string) (StartResult, error) {
	event, err := domain.ParseEvent(rawEvent)
	if err != nil {
		return StartResult{}, err
	}
	email = domain.NormalizeEmail(email)
	if email == "" {
		return StartResult{}, domain.ErrInvalidEmail
	}

	participant, err := s.participants.FindByEmail(ctx, email)
	if err != nil {
		return StartResult{}, err
	}
	if participant.QuizTaken {
		s.metrics.Conflict("start", domain.ErrAlreadyAttempted)
		return StartResult{}, domain.ErrAlreadyAttempted
	}

	live, err := s.sessions.FindLive(ctx, participant.ID)
	switch {
	case err == nil:
		res, resumed, err := s.handleLive(ctx, participant, live)
		if err != nil || resumed {
			return res, err
		}
	case !stderrors.Is(err, domain.ErrSessionNotFound):
		return StartResult{}, fmt.Errorf("find live session: %w", err)
	}

	questions, err := s.sampler.Sample(ctx, event, s.count)
	if err != nil {
		return StartResult{}, err
	}

	id, err := s.newID()
	if err != nil {
		return StartResult{}, err
	}
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	session := domain.QuizSession{
		ID:             id,
		ParticipantID:  participant.ID,
		Event:          event,
		QuestionIDs:    ids,
		Status:         domain.StatusInProgress,
		StartTime:      s.now(),
		Duration:       s.durations.For(event),
		TotalQuestions: len(ids),
	}
	if err := s.sessions.Insert(ctx, session); err != nil {
		if stderrors.Is(err, domain.ErrSessionCollision) {
			s.metrics.Conflict("start", err)
		}
		return StartResult{}, err
	}

	s.log.Info("quiz started",
		zap.String("session_id", session.ID),
		zap.String("participant_id", participant.ID),
		zap.String("event", string(event)),
		zap.Int("questions", len(ids)),
	)
	s.metrics.SessionStarted(event, false)
	return s.startResult(participant, session, questions, false), nil
}

// handleLive applies the abandon policy to an existing session. It reports
// resumed=true when the caller should return res as is.
func (s *QuizService) handleLive(ctx context.Context, participant domain.Participant, live domain.QuizSession) (StartResult, bool, error) {
	if live.Status == domain.StatusCompleted {
		s.metrics.Conflict("start", domain.ErrAlreadyAttempted)
		return StartResult{}, false, domain.ErrAlreadyAttempted
	}

	now := s.now()
	switch s.policy {
	case PolicyReject:
		s.metrics.Conflict("start", domain.ErrSessionInProgress)
		return StartResult{}, false, domain.ErrSessionInProgress
	case PolicyResume:
		if !GuardFor(live).IsExpired(now) {
			questions, err := s.loadQuestions(ctx, live.QuestionIDs)
			if err != nil {
				return StartResult{}, false, err
			}
			s.log.Info("quiz resumed",
				zap.String("session_id", live.ID),
				zap.String("participant_id", participant.ID),
			)
			s.metrics.SessionStarted(live.Event, true)
			return s.startResult(participant, live, questions, true), true, nil
		}
	}

	if err := s.sessions.Abandon(ctx, live.ID, now); err != nil {
		if stderrors.Is(err, domain.ErrStaleTransition) {
			// Someone else finished or abandoned it first.
			s.metrics.Conflict("start", err)
			return StartResult{}, false, domain.ErrSessionCollision.Wrap(err)
		}
		return StartResult{}, false, fmt.Errorf("abandon stale session: %w", err)
	}
	s.log.Info("stale quiz session abandoned",
		zap.String("session_id", live.ID),
		zap.String("participant_id", participant.ID),
		zap.String("policy", string(s.policy)),
	)
	s.metrics.SessionAbandoned(live.Event)
	return StartResult{}, false, nil
}

func (s *QuizService) loadQuestions(ctx context.Context, ids []string) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		q, err := s.questions.GetQuestion(ctx, id)
		if stderrors.Is(err, domain.ErrQuestionNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load question %s: %w", id, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *QuizService) startResult(p domain.Participant, session domain.QuizSession, questions []domain.Question, resumed bool) StartResult {
	guard := GuardFor(session)
	public := make([]domain.PublicQuestion, len(questions))
	for i, q := range questions {
		public[i] = q.Public()
	}
	return StartResult{
		SessionID:        session.ID,
		ParticipantName:  p.TeamLeadName,
		Event:            session.Event,
		Questions:        public,
		TotalQuestions:   session.TotalQuestions,
		TotalTimeSeconds: int(session.Duration / time.Second),
		RemainingSeconds: guard.RemainingSeconds(s.now()),
		Deadline:         guard.Deadline(),
		Resumed:          resumed,
	}
}

// SubmitResult is returned once per session.
type SubmitResult struct {
	SessionID          string `json:"session_id"`
	RawScore           int    `json:"score"`
	MaxPossibleScore   int    `json:"total_possible_score"`
	PercentageScore    int    `json:"percentage_score"`
	TotalQuestions     int    `json:"total_questions"`
	QuestionsAttempted int    `json:"questions_attempted"`
	CorrectAnswers     int    `json:"correct_answers"`
	TimeTakenSeconds   int    `json:"time_taken"`
	Overtime           bool   `json:"overtime"`
}

// Submit scores the answers and completes the session. Only the caller whose
// conditional in_progress -> completed write succeeds gets a result; every
// other caller gets ErrAlreadySubmitted and the participant record is left alone.
// A late submit is scored normally; Overtime only reports it.
func (s *QuizService) Submit(ctx context.Context, sessionID string, answers []domain.AnswerSubmission) (SubmitResult, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := terminalError(session.Status); err != nil {
		s.metrics.Conflict("submit", err)
		return SubmitResult{}, err
	}

	score, err := s.scorer.Evaluate(ctx, session, answers)
	if err != nil {
		return SubmitResult{}, err
	}

	now := s.now()
	guard := GuardFor(session)
	completion := domain.Completion{
		EndTime:            now,
		TimeTakenSeconds:   guard.ElapsedSeconds(now),
		QuestionsAttempted: score.QuestionsAttempted,
		CorrectAnswers:     score.CorrectAnswers,
		RawScore:           score.RawScore,
		MaxPossibleScore:   score.MaxPossibleScore,
		PercentageScore:    score.PercentageScore,
		Answers:            score.Answers,
	}

	if err := s.sessions.Complete(ctx, session.ID, completion); err != nil {
		if stderrors.Is(err, domain.ErrStaleTransition) {
			return SubmitResult{}, s.lostRace(ctx, session.ID, err)
		}
		return SubmitResult{}, fmt.Errorf("complete session: %w", err)
	}
	completion.Apply(&session)

	overtime := guard.IsExpired(now)
	s.log.Info("quiz submitted",
		zap.String("session_id", session.ID),
		zap.String("participant_id", session.ParticipantID),
		zap.Int("score", score.RawScore),
		zap.Int("possible", score.MaxPossibleScore),
		zap.Int("percentage", score.PercentageScore),
		zap.Int("time_taken", completion.TimeTakenSeconds),
		zap.Bool("overtime", overtime),
	)
	s.metrics.SessionSubmitted(session.Event, overtime)

	if err := s.records.Finalize(ctx, session.ParticipantID, session); err != nil {
		if stderrors.Is(err, domain.ErrAlreadyFinalized) {
			s.metrics.Conflict("finalize", err)
		}
		return SubmitResult{}, err
	}

	return SubmitResult{
		SessionID:          session.ID,
		RawScore:           score.RawScore,
		MaxPossibleScore:   score.MaxPossibleScore,
		PercentageScore:    score.PercentageScore,
		TotalQuestions:     session.TotalQuestions,
		QuestionsAttempted: score.QuestionsAttempted,
		CorrectAnswers:     score.CorrectAnswers,
		TimeTakenSeconds:   completion.TimeTakenSeconds,
		Overtime:           overtime,
	}, nil
}

// lostRace maps a failed conditional transition to the state that won.
func (s *QuizService) lostRace(ctx context.Context, id string, cause error) error {
	current, err := s.sessions.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("reload session after conflict: %w", err)
	}
	terr := terminalError(current.Status)
	if terr == nil {
		terr = domain.ErrAlreadySubmitted
	}
	s.metrics.Conflict("submit", terr)
	s.log.Info("concurrent submit rejected",
		zap.String("session_id", id),
		zap.String("status", string(current.Status)),
		zap.NamedError("cause", cause),
	)
	return terr
}

func terminalError(status domain.SessionStatus) error {
	switch status {
	case domain.StatusCompleted:
		return domain.ErrAlreadySubmitted
	case domain.StatusAbandoned:
		return domain.ErrSessionAbandoned
	}
	return nil
}

// GetSession returns a session including per-question outcomes.
func (s *QuizService) GetSession(ctx context.Context, id string) (domain.QuizSession, error) {
	return s.sessions.Get(ctx, id)
}

// Abandon ends an in_progress session without a score. It is an
// administrative action; the participant stays free to start again.
func (s *QuizService) Abandon(ctx context.Context, id string) error {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := terminalError(session.Status); err != nil {
		return err
	}
	if err := s.sessions.Abandon(ctx, id, s.now()); err != nil {
		if stderrors.Is(err, domain.ErrStaleTransition) {
			return s.lostRace(ctx, id, err)
		}
		return err
	}
	s.log.Info("quiz session abandoned by admin", zap.String("session_id", id))
	s.metrics.SessionAbandoned(session.Event)
	return nil
}

// Reconcile re-runs finalize for a completed session whose participant record
// was never updated (for example after a store outage between the two writes).
// It never rescores.
func (s *QuizService) Reconcile(ctx context.Context, id string) error {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	switch session.Status {
	case domain.StatusInProgress:
		return domain.ErrSessionInProgress
	case domain.StatusAbandoned:
		return domain.ErrSessionAbandoned
	}
	return s.records.Finalize(ctx, session.ParticipantID, session)
}
