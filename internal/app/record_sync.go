package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"event-quiz-service/internal/domain"
)

// RecordSync projects a completed session onto the participant record.
type RecordSync struct {
	participants ParticipantDirectory
	log          *zap.Logger
}

func NewRecordSync(participants ParticipantDirectory, log *zap.Logger) *RecordSync {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecordSync{participants: participants, log: log}
}

// Finalize writes the session outcome in one conditional update. The store
// applies it only while quiz_taken is false and reports ErrAlreadyFinalized
// otherwise.
func (r *RecordSync) Finalize(ctx context.Context, participantID string, session domain.QuizSession) error {
	if session.Status != domain.StatusCompleted || session.EndTime == nil {
		return fmt.Errorf("finalize: session %s is %s, not completed", session.ID, session.Status)
	}

	outcome := domain.QuizOutcome{
		Score:     session.PercentageScore,
		StartTime: session.StartTime,
		EndTime:   *session.EndTime,
		Answers:   append([]domain.AnswerOutcome(nil), session.Answers...),
	}
	if err := r.participants.UpdateQuizOutcome(ctx, participantID, outcome); err != nil {
		r.log.Warn("finalize participant record failed",
			zap.String("participant_id", participantID),
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return err
	}

	r.log.Info("participant record finalized",
		zap.String("participant_id", participantID),
		zap.String("session_id", session.ID),
		zap.Int("quiz_score", outcome.Score),
	)
	return nil
}
