package http

import (
	"net/http"

	"culture-quiz-service/internal/app"
	"culture-quiz-service/internal/logger"
	"culture-quiz-service/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RouterConfig carries what the HTTP surface needs besides the service.
type RouterConfig struct {
	AllowedOrigins []string
	RedactAnswers  bool
	Logger         logrus.FieldLogger
	Metrics        *metrics.Metrics
}

// NewRouter wires the REST routes, the websocket endpoint and the operational probes.
func NewRouter(service *app.QuizService, cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(AccessLog(cfg.Logger))
	router.Use(CORS(cfg.AllowedOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	quiz := NewQuizHandler(service, cfg.RedactAnswers, cfg.Logger)
	router.POST("/quiz", quiz.CreateQuiz)
	router.POST("/quiz/start", quiz.StartQuiz)
	router.GET("/quiz/scoreboard", quiz.Scoreboard)

	ws := NewWSHandler(service, WSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		RedactAnswers:  cfg.RedactAnswers,
		Logger:         cfg.Logger,
		Metrics:        cfg.Metrics,
	})
	router.GET("/ws", ws.ServeWS)
	return router
}
