package domain

import "errors"

// Error kinds. Every error surfaced to a client matches exactly one of them via errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Error is a client-facing error classified under one of the kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

var (
	// ErrSessionNotFound is returned when no session exists for an id.
	ErrSessionNotFound = &Error{Kind: ErrNotFound, Msg: "Session not found"}
	// ErrCategoryNotFound indicates the question bank has no such category.
	ErrCategoryNotFound = &Error{Kind: ErrInvalidRequest, Msg: "Unknown category"}
	// ErrNoCategories is returned when a quiz is requested without categories.
	ErrNoCategories = &Error{Kind: ErrInvalidRequest, Msg: "At least one category required"}
	// ErrQuestionCount is returned when the requested question count is out of bounds.
	ErrQuestionCount = &Error{Kind: ErrInvalidRequest, Msg: "Question count out of range"}
	// ErrMalformedQuestion rejects bank entries that cannot be answered by index.
	ErrMalformedQuestion = &Error{Kind: ErrInvalidRequest, Msg: "Malformed question"}
	// ErrTeamNameRequired is returned when a player joins without a team name.
	ErrTeamNameRequired = &Error{Kind: ErrInvalidRequest, Msg: "Team name required"}
	// ErrInvalidRole is returned for roles other than host or player.
	ErrInvalidRole = &Error{Kind: ErrInvalidRequest, Msg: "Role must be host or player"}
	// ErrNotJoined is returned when a connection acts on a session it never joined.
	ErrNotJoined = &Error{Kind: ErrInvalidRequest, Msg: "Join the session first"}
	// ErrChoiceOutOfRange rejects answers that do not name an option.
	ErrChoiceOutOfRange = &Error{Kind: ErrInvalidRequest, Msg: "Choice out of range"}
	// ErrMalformedMessage is returned for undecodable or unknown inbound events.
	ErrMalformedMessage = &Error{Kind: ErrInvalidRequest, Msg: "Malformed message"}

	// ErrNotHost is returned when a non-host connection tries to start a quiz.
	ErrNotHost = &Error{Kind: ErrInvalidTransition, Msg: "Only the host can start the quiz"}
	// ErrAlreadyStarted is returned by start on a session that left the lobby.
	ErrAlreadyStarted = &Error{Kind: ErrInvalidTransition, Msg: "Quiz already started"}
	// ErrNoTeams is returned by start while nobody has joined.
	ErrNoTeams = &Error{Kind: ErrInvalidTransition, Msg: "No teams have joined"}
	// ErrNotRunning is returned for answers outside a running quiz.
	ErrNotRunning = &Error{Kind: ErrInvalidTransition, Msg: "Quiz is not running"}
	// ErrDeadlinePassed is returned for answers that arrive after the question closed.
	ErrDeadlinePassed = &Error{Kind: ErrInvalidTransition, Msg: "Question closed"}
)
