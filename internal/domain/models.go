package domain

import (
	"strings"
	"time"
)

// Event partitions questions and participants into independent quiz pools.
type Event string

const (
	EventInnovWEB       Event = "InnovWEB"
	EventSensorShowDown Event = "SensorShowDown"
	EventIdeaArena      Event = "IdeaArena"
	EventErrorErase     Event = "Error Erase"
)

// Events lists every recognized event in display order.
var Events = []Event{EventInnovWEB, EventSensorShowDown, EventIdeaArena, EventErrorErase}

// ParseEvent returns the event named raw or ErrInvalidEvent.
func ParseEvent(raw string) (Event, error) {
	for _, e := range Events {
		if string(e) == raw {
			return e, nil
		}
	}
	return "", ErrInvalidEvent
}

// Valid reports whether e is one of the known events.
func (e Event) Valid() bool {
	_, err := ParseEvent(string(e))
	return err == nil
}

// NormalizeEmail lowercases and trims an email the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DefaultPoints applies when a question has no points value.
const DefaultPoints = 10

// DefaultTimeLimit applies when a question has no per-question time limit.
const DefaultTimeLimit = 30

// Question models an MCQ question with four options and one correct index.
type Question struct {
	ID            string    `json:"id"`
	Event         Event     `json:"event"`
	Text          string    `json:"question_text"`
	Options       []string  `json:"options"`
	CorrectOption int       `json:"correct_option"`
	Explanation   string    `json:"explanation,omitempty"`
	Difficulty    string    `json:"difficulty"`
	Category      string    `json:"category,omitempty"`
	Points        int       `json:"points"`
	TimeLimit     int       `json:"time_limit"` // seconds
	Active        bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// PointsValue returns the points awarded for a correct answer.
func (q Question) PointsValue() int {
	if q.Points <= 0 {
		return DefaultPoints
	}
	return q.Points
}

// Public strips the correct option and explanation.
func (q Question) Public() PublicQuestion {
	limit := q.TimeLimit
	if limit <= 0 {
		limit = DefaultTimeLimit
	}
	return PublicQuestion{
		ID:         q.ID,
		Text:       q.Text,
		Options:    append([]string(nil), q.Options...),
		Difficulty: q.Difficulty,
		Category:   q.Category,
		Points:     q.PointsValue(),
		TimeLimit:  limit,
	}
}

// PublicQuestion is what a quiz taker sees before scoring.
type PublicQuestion struct {
	ID         string   `json:"id"`
	Text       string   `json:"question_text"`
	Options    []string `json:"options"`
	Difficulty string   `json:"difficulty,omitempty"`
	Category   string   `json:"category,omitempty"`
	Points     int      `json:"points"`
	TimeLimit  int      `json:"time_limit"`
}

// Participant is the durable record of one registrant.
type Participant struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	Event        Event           `json:"event"`
	TeamCode     string          `json:"team_code"`
	TeamName     string          `json:"team_name"`
	TeamLeadName string          `json:"team_lead_name"`
	CollegeName  string          `json:"college_name"`
	QuizTaken    bool            `json:"quiz_taken"`
	QuizScore    *int            `json:"quiz_score,omitempty"`
	QuizStart    *time.Time      `json:"quiz_start_time,omitempty"`
	QuizEnd      *time.Time      `json:"quiz_end_time,omitempty"`
	QuizAnswers  []AnswerOutcome `json:"quiz_answers,omitempty"`
}

// QuizOutcome is the single update written onto a participant record.
type QuizOutcome struct {
	Score     int
	StartTime time.Time
	EndTime   time.Time
	Answers   []AnswerOutcome
}

// SessionStatus is the lifecycle state of a quiz session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusAbandoned  SessionStatus = "abandoned"
)

// Terminal reports whether no further transition is allowed.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// AnswerSubmission is one answer sent by the client.
type AnswerSubmission struct {
	QuestionID     string `json:"question_id"`
	SelectedOption int    `json:"selected_option"`
	TimeSpent      int    `json:"time_spent"`
}

// AnswerOutcome records how one submitted answer was judged. Resolved is false
// when the question could not be loaded; such answers never count as correct.
type AnswerOutcome struct {
	QuestionID     string `json:"question_id"`
	SelectedOption int    `json:"selected_option"`
	Correct        bool   `json:"is_correct"`
	Resolved       bool   `json:"resolved"`
	TimeSpent      int    `json:"time_spent"`
}

// QuizSession is one attempt. QuestionIDs is fixed at creation.
type QuizSession struct {
	ID                 string          `json:"id"`
	ParticipantID      string          `json:"participant_id"`
	Event              Event           `json:"event"`
	QuestionIDs        []string        `json:"question_ids"`
	Status             SessionStatus   `json:"status"`
	StartTime          time.Time       `json:"start_time"`
	EndTime            *time.Time      `json:"end_time,omitempty"`
	Duration           time.Duration   `json:"duration"`
	TotalQuestions     int             `json:"total_questions"`
	QuestionsAttempted int             `json:"questions_attempted"`
	CorrectAnswers     int             `json:"correct_answers"`
	RawScore           int             `json:"score"`
	MaxPossibleScore   int             `json:"max_possible_score"`
	PercentageScore    int             `json:"percentage_score"`
	TimeTakenSeconds   int             `json:"time_taken"`
	Answers            []AnswerOutcome `json:"answers,omitempty"`
}

// HasQuestion reports whether id was sampled into this session.
func (s QuizSession) HasQuestion(id string) bool {
	for _, qid := range s.QuestionIDs {
		if qid == id {
			return true
		}
	}
	return false
}

// Completion carries the fields written on the in_progress -> completed transition.
type Completion struct {
	EndTime            time.Time
	TimeTakenSeconds   int
	QuestionsAttempted int
	CorrectAnswers     int
	RawScore           int
	MaxPossibleScore   int
	PercentageScore    int
	Answers            []AnswerOutcome
}

// Apply copies c onto s and marks it completed.
func (c Completion) Apply(s *QuizSession) {
	end := c.EndTime
	s.Status = StatusCompleted
	s.EndTime = &end
	s.TimeTakenSeconds = c.TimeTakenSeconds
	s.QuestionsAttempted = c.QuestionsAttempted
	s.CorrectAnswers = c.CorrectAnswers
	s.RawScore = c.RawScore
	s.MaxPossibleScore = c.MaxPossibleScore
	s.PercentageScore = c.PercentageScore
	s.Answers = append([]AnswerOutcome(nil), c.Answers...)
}

// DashboardStats is the admin summary over all participants.
type DashboardStats struct {
	TotalParticipants int           `json:"total_participants"`
	QuizTaken         int           `json:"quiz_taken"`
	AverageScore      int           `json:"average_score"`
	TopScore          int           `json:"top_score"`
	TotalQuestions    int           `json:"total_questions"`
	QuestionsByEvent  map[Event]int `json:"questions_by_event"`
	CompletionRate    int           `json:"completion_rate"`
}
