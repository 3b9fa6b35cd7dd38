package http

import (
	"encoding/json"

	"culture-quiz-service/internal/domain"
)

// Inbound event names.
const (
	EventJoinSession = "join_session"
	EventStartQuiz   = "start_quiz"
	EventAnswer      = "answer"
)

// Outbound event names.
const (
	EventSessionState = "session_state"
	EventAnswerResult = "answer_result"
	EventError        = "error_msg"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type joinPayload struct {
	SessionID string      `json:"sessionId"`
	Role      domain.Role `json:"role"`
	TeamName  string      `json:"teamName"`
}

type startPayload struct {
	SessionID string `json:"sessionId"`
}

type answerPayload struct {
	SessionID string `json:"sessionId"`
	Choice    *int   `json:"choice"`
}

type errorPayload struct {
	Msg string `json:"msg"`
}

// questionView is the wire form of a question; Answer is omitted while redacted.
type questionView struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   *int     `json:"answer,omitempty"`
}

type sessionStateView struct {
	Status    domain.Status  `json:"status"`
	Teams     map[string]int `json:"teams"`
	Questions []questionView `json:"questions"`
	Idx       int            `json:"idx"`
	// Deadline is in Unix seconds.
	Deadline *float64 `json:"deadline"`
}

func newSessionStateView(state domain.SessionState, redact bool) sessionStateView {
	hide := redact && state.Status != domain.StatusEnded

	questions := make([]questionView, len(state.Questions))
	for i, q := range state.Questions {
		questions[i] = questionView{Question: q.Prompt, Options: q.Options}
		if !hide {
			answer := q.CorrectIndex
			questions[i].Answer = &answer
		}
	}

	teams := state.Teams
	if teams == nil {
		teams = map[string]int{}
	}

	view := sessionStateView{
		Status:    state.Status,
		Teams:     teams,
		Questions: questions,
		Idx:       state.Index,
	}
	if state.Deadline != nil {
		secs := float64(state.Deadline.UnixNano()) / 1e9
		view.Deadline = &secs
	}
	return view
}
