package domain

import "time"

// Status is the lifecycle stage of a quiz session.
type Status string

const (
	StatusLobby   Status = "lobby"
	StatusRunning Status = "running"
	StatusEnded   Status = "ended"
)

// Role identifies which side of the quiz a connection plays.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleHost || r == RolePlayer
}

// Question models an MCQ question; the option position carries meaning.
type Question struct {
	Prompt       string   `json:"question" yaml:"question"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"answer" yaml:"answer"`
}

// Validate checks that the question can be answered by option index.
func (q Question) Validate() error {
	if q.Prompt == "" || len(q.Options) < 2 {
		return ErrMalformedQuestion
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return ErrMalformedQuestion
	}
	return nil
}

// SessionState is an immutable snapshot of a session, broadcast on every change.
type SessionState struct {
	SessionID string
	Status    Status
	Teams     map[string]int
	Questions []Question
	Index     int
	// Deadline is nil unless the session is running.
	Deadline  *time.Time
	UpdatedAt time.Time
}

// AnswerResult summarizes the outcome of an answer for the submitting team.
type AnswerResult struct {
	Correct bool `json:"correct"`
	Score   int  `json:"score"`
}

// ScoreboardEntry is one row of the ordered scoreboard.
type ScoreboardEntry struct {
	Team  string `json:"team"`
	Score int    `json:"score"`
}

// Scoreboard captures the ordered team scores of a session.
type Scoreboard struct {
	SessionID string            `json:"sessionId"`
	Status    Status            `json:"status"`
	Entries   []ScoreboardEntry `json:"scoreboard"`
}

// Results is published once when a session ends.
type Results struct {
	SessionID     string            `json:"sessionId"`
	Scoreboard    []ScoreboardEntry `json:"scoreboard"`
	QuestionCount int               `json:"questionCount"`
	EndedAt       time.Time         `json:"endedAt"`
}
