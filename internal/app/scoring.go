package app

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/shopspring/decimal"

	"event-quiz-service/internal/domain"
)

// ScoreResult is the outcome of scoring one submission.
type ScoreResult struct {
	RawScore           int
	MaxPossibleScore   int
	PercentageScore    int
	CorrectAnswers     int
	QuestionsAttempted int
	Answers            []domain.AnswerOutcome
}

// ScoringEngine resolves submitted answers against the question bank and scores them.
type ScoringEngine struct {
	questions QuestionBank
}

func NewScoringEngine(questions QuestionBank) *ScoringEngine {
	return &ScoringEngine{questions: questions}
}

// Evaluate validates answers against the session, loads the authoritative
// questions and scores them. A question missing from the bank is excluded from
// scoring; any other lookup failure aborts.
func (e *ScoringEngine) Evaluate(ctx context.Context, session domain.QuizSession, answers []domain.AnswerSubmission) (ScoreResult, error) {
	if err := ValidateAnswers(session, answers); err != nil {
		return ScoreResult{}, err
	}

	resolved := make(map[string]domain.Question, len(answers))
	for _, a := range answers {
		q, err := e.questions.GetQuestion(ctx, a.QuestionID)
		if stderrors.Is(err, domain.ErrQuestionNotFound) {
			continue
		}
		if err != nil {
			return ScoreResult{}, fmt.Errorf("resolve question %s: %w", a.QuestionID, err)
		}
		resolved[a.QuestionID] = q
	}

	return Score(session, answers, resolved)
}

// ValidateAnswers rejects answers for questions outside the session's sampled
// set and repeated answers for one question.
func ValidateAnswers(session domain.QuizSession, answers []domain.AnswerSubmission) error {
	seen := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		if !session.HasQuestion(a.QuestionID) {
			return domain.ErrForeignQuestion.Wrap(fmt.Errorf("question %q", a.QuestionID))
		}
		if _, dup := seen[a.QuestionID]; dup {
			return domain.ErrDuplicateAnswer.Wrap(fmt.Errorf("question %q", a.QuestionID))
		}
		seen[a.QuestionID] = struct{}{}
	}
	return nil
}

// Score is the pure scoring step over already resolved questions. Outcomes
// follow the order of answers.
func Score(session domain.QuizSession, answers []domain.AnswerSubmission, questions map[string]domain.Question) (ScoreResult, error) {
	if err := ValidateAnswers(session, answers); err != nil {
		return ScoreResult{}, err
	}

	res := ScoreResult{
		QuestionsAttempted: len(answers),
		Answers:            make([]domain.AnswerOutcome, 0, len(answers)),
	}
	for _, a := range answers {
		out := domain.AnswerOutcome{
			QuestionID:     a.QuestionID,
			SelectedOption: a.SelectedOption,
			TimeSpent:      a.TimeSpent,
		}
		if a.TimeSpent < 0 {
			out.TimeSpent = 0
		}

		q, ok := questions[a.QuestionID]
		if ok {
			points := q.PointsValue()
			out.Resolved = true
			out.Correct = a.SelectedOption == q.CorrectOption
			res.MaxPossibleScore += points
			if out.Correct {
				res.RawScore += points
				res.CorrectAnswers++
			}
		}
		res.Answers = append(res.Answers, out)
	}
	res.PercentageScore = Percentage(res.RawScore, res.MaxPossibleScore)
	return res, nil
}

var hundred = decimal.NewFromInt(100)

// Percentage returns raw/possible*100 rounded half away from zero, or 0 when
// nothing was possible.
func Percentage(raw, possible int) int {
	if possible <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(raw)).Mul(hundred).DivRound(decimal.NewFromInt(int64(possible)), 0).IntPart())
}
