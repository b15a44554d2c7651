package http

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"event-quiz-service/internal/domain"
	"event-quiz-service/internal/errors"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	QuizTaken bool   `json:"quiz_taken,omitempty"`
}

func newErrorBody(err error) (int, errorBody) {
	e := errors.Convert(err)
	body := errorBody{Code: e.GRPCStatus().Code().String(), Message: e.Message}
	if e.Code == errors.CodeInternal {
		body.Message = "internal error"
	}
	if quizTaken(err) {
		body.QuizTaken = true
	}
	return e.HTTPStatusCode(), body
}

// quizTaken reports conflicts that mean the participant's one attempt is used up.
func quizTaken(err error) bool {
	return stderrors.Is(err, domain.ErrAlreadyAttempted) ||
		stderrors.Is(err, domain.ErrAlreadySubmitted) ||
		stderrors.Is(err, domain.ErrAlreadyFinalized)
}

// ErrorHandler renders the last handler error as JSON and recovers panics.
func ErrorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered", zap.Any("panic", r), zap.String("path", c.FullPath()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Code: "Internal", Message: "internal error"})
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status, body := newErrorBody(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		} else {
			log.Debug("request rejected", zap.String("path", c.FullPath()), zap.Error(err))
		}
		c.JSON(status, body)
	}
}
