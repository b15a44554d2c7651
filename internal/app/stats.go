package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"event-quiz-service/internal/domain"
)

// ParticipantStats is the read side of the participant store used for reporting.
type ParticipantStats interface {
	CountParticipants(ctx context.Context) (int, error)
	// QuizScores returns quiz_score for every participant with quiz_taken set.
	QuizScores(ctx context.Context) ([]int, error)
}

// QuestionStats counts questions per event, active or not.
type QuestionStats interface {
	CountByEvent(ctx context.Context) (map[domain.Event]int, error)
}

// StatsService builds the admin dashboard. It only reads.
type StatsService struct {
	participants ParticipantStats
	questions    QuestionStats
}

func NewStatsService(participants ParticipantStats, questions QuestionStats) *StatsService {
	return &StatsService{participants: participants, questions: questions}
}

func (s *StatsService) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	total, err := s.participants.CountParticipants(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count participants: %w", err)
	}
	scores, err := s.participants.QuizScores(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("quiz scores: %w", err)
	}
	byEvent, err := s.questions.CountByEvent(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count questions: %w", err)
	}

	stats := domain.DashboardStats{
		TotalParticipants: total,
		QuizTaken:         len(scores),
		QuestionsByEvent:  byEvent,
	}
	for _, n := range byEvent {
		stats.TotalQuestions += n
	}
	if len(scores) > 0 {
		sum := decimal.Zero
		for _, sc := range scores {
			sum = sum.Add(decimal.NewFromInt(int64(sc)))
			if sc > stats.TopScore {
				stats.TopScore = sc
			}
		}
		stats.AverageScore = int(sum.DivRound(decimal.NewFromInt(int64(len(scores))), 0).IntPart())
	}
	stats.CompletionRate = Percentage(stats.QuizTaken, total)
	return stats, nil
}
