package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"event-quiz-service/internal/app"
	"event-quiz-service/internal/domain"
	"event-quiz-service/internal/errors"
)

type RESTHandler struct {
	quiz  *app.QuizService
	stats *app.StatsService
}

func NewRESTHandler(quiz *app.QuizService, stats *app.StatsService) *RESTHandler {
	return &RESTHandler{quiz: quiz, stats: stats}
}

type startRequest struct {
	Email string `json:"email" binding:"required"`
	Event string `json:"event" binding:"required"`
}

type submitRequest struct {
	SessionID string                    `json:"session_id" binding:"required"`
	Answers   []domain.AnswerSubmission `json:"answers" binding:"required"`
}

func (h *RESTHandler) StartQuiz(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(badRequest(err))
		return
	}
	res, err := h.quiz.Start(c.Request.Context(), req.Email, req.Event)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RESTHandler) SubmitQuiz(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(badRequest(err))
		return
	}
	res, err := h.quiz.Submit(c.Request.Context(), req.SessionID, req.Answers)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RESTHandler) GetSession(c *gin.Context) {
	session, err := h.quiz.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *RESTHandler) AbandonSession(c *gin.Context) {
	if err := h.quiz.Abandon(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("id"), "status": domain.StatusAbandoned})
}

func (h *RESTHandler) ReconcileSession(c *gin.Context) {
	if err := h.quiz.Reconcile(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("id"), "quiz_taken": true})
}

func (h *RESTHandler) Dashboard(c *gin.Context) {
	stats, err := h.stats.Dashboard(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func badRequest(err error) error {
	return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request body: %v", err))
}
