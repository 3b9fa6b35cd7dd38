package http

import (
	"errors"
	"net/http"

	"culture-quiz-service/internal/app"
	"culture-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// QuizHandler serves the request/response companions of the websocket protocol.
type QuizHandler struct {
	service *app.QuizService
	redact  bool
	log     logrus.FieldLogger
}

func NewQuizHandler(service *app.QuizService, redact bool, log logrus.FieldLogger) *QuizHandler {
	return &QuizHandler{service: service, redact: redact, log: log}
}

type createQuizRequest struct {
	Cats []string `json:"cats" binding:"max=16,dive,max=64"`
	N    int      `json:"n"`
}

type createQuizResponse struct {
	SessionID string `json:"sessionId"`
}

type startQuizRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	var req createQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.service.CreateSession(c.Request.Context(), req.Cats, req.N)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, createQuizResponse{SessionID: id})
}

func (h *QuizHandler) StartQuiz(c *gin.Context) {
	var req startQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.service.Start(c.Request.Context(), req.SessionID)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionStateView(state, h.redact))
}

func (h *QuizHandler) Scoreboard(c *gin.Context) {
	id := c.Query("sessionId")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	board, err := h.service.Scoreboard(c.Request.Context(), id)
	if err != nil {
		h.abort(c, err)
		return
	}
	if board.Entries == nil {
		board.Entries = []domain.ScoreboardEntry{}
	}
	c.JSON(http.StatusOK, board)
}

func (h *QuizHandler) abort(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("quiz request failed")
		msg = "Internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
