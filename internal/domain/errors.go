package domain

import (
	"event-quiz-service/internal/errors"
)

var (
	// ErrParticipantNotFound is returned when no participant is registered under an email or id.
	ErrParticipantNotFound = errors.New(errors.CodeNotFound, errors.WithMessage("participant not found"))
	// ErrSessionNotFound is returned when a quiz session id does not exist.
	ErrSessionNotFound = errors.New(errors.CodeNotFound, errors.WithMessage("quiz session not found"))
	// ErrQuestionNotFound indicates a question id could not be resolved in the bank.
	ErrQuestionNotFound = errors.New(errors.CodeNotFound, errors.WithMessage("question not found"))

	// ErrAlreadyAttempted is returned by create when the participant already took the quiz.
	ErrAlreadyAttempted = errors.New(errors.CodeAlreadyExists, errors.WithMessage("quiz already taken for this participant"))
	// ErrAlreadySubmitted is returned by submit when the session is no longer in progress.
	ErrAlreadySubmitted = errors.New(errors.CodeAlreadyExists, errors.WithMessage("quiz already submitted"))
	// ErrAlreadyFinalized is returned when the participant record was already finalized.
	ErrAlreadyFinalized = errors.New(errors.CodeAlreadyExists, errors.WithMessage("participant record already finalized"))
	// ErrSessionCollision is returned when a live session already exists for the participant.
	ErrSessionCollision = errors.New(errors.CodeAlreadyExists, errors.WithMessage("participant already has a live session"))
	// ErrSessionInProgress is returned by create under the reject policy.
	ErrSessionInProgress = errors.New(errors.CodeAlreadyExists, errors.WithMessage("quiz session already in progress"))
	// ErrSessionAbandoned is returned by submit against an abandoned session.
	ErrSessionAbandoned = errors.New(errors.CodeAlreadyExists, errors.WithMessage("quiz session was abandoned"))
	// ErrStaleTransition is returned by stores when a conditional status change lost the race.
	ErrStaleTransition = errors.New(errors.CodeAlreadyExists, errors.WithMessage("session status changed concurrently"))

	// ErrInvalidEvent indicates an event outside the fixed enumeration.
	ErrInvalidEvent = errors.New(errors.CodeInvalidArgument, errors.WithMessage("unknown event"))
	// ErrInvalidCount indicates a non-positive sample size.
	ErrInvalidCount = errors.New(errors.CodeInvalidArgument, errors.WithMessage("question count must be positive"))
	// ErrInvalidEmail indicates a blank email.
	ErrInvalidEmail = errors.New(errors.CodeInvalidArgument, errors.WithMessage("email is required"))
	// ErrForeignQuestion indicates an answer for a question that was not part of the session.
	ErrForeignQuestion = errors.New(errors.CodeInvalidArgument, errors.WithMessage("answer references a question outside the session"))
	// ErrDuplicateAnswer indicates two answers for the same question in one submission.
	ErrDuplicateAnswer = errors.New(errors.CodeInvalidArgument, errors.WithMessage("duplicate answer for question"))

	// ErrNoQuestionsAvailable is returned when an event has no active questions.
	ErrNoQuestionsAvailable = errors.New(errors.CodeUnavailable, errors.WithMessage("no quiz questions available for this event"))
)
