package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"event-quiz-service/internal/app"
)

type RouterConfig struct {
	Quiz   *app.QuizService
	Stats  *app.StatsService
	Logger *zap.Logger
	// AdminAccounts guards /api/admin. Admin routes are not mounted when empty.
	AdminAccounts gin.Accounts
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Health is polled by /healthz; nil always reports ok.
	Health func(ctx context.Context) error
}

// NewRouter wires REST, websocket, health and metrics endpoints.
func NewRouter(c RouterConfig) *gin.Engine {
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}
	gatherer := c.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET("/healthz", func(ctx *gin.Context) {
		if c.Health != nil {
			if err := c.Health(ctx.Request.Context()); err != nil {
				log.Warn("health check failed", zap.Error(err))
				ctx.String(http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		ctx.String(http.StatusOK, "ok")
	})

	ws := NewWSHandler(c.Quiz, log)
	e.GET("/ws", gin.WrapF(ws.ServeWS))

	rest := NewRESTHandler(c.Quiz, c.Stats)
	api := e.Group("/api", ErrorHandler(log))
	api.POST("/quiz/start", rest.StartQuiz)
	api.POST("/quiz/submit", rest.SubmitQuiz)

	if len(c.AdminAccounts) > 0 {
		admin := api.Group("/admin", gin.BasicAuth(c.AdminAccounts))
		admin.GET("/sessions/:id", rest.GetSession)
		admin.POST("/sessions/:id/abandon", rest.AbandonSession)
		admin.POST("/sessions/:id/reconcile", rest.ReconcileSession)
		admin.GET("/stats", rest.Dashboard)
	}
	return e
}
