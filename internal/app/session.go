package app

import (
	"sort"
	"sync"
	"time"

	"culture-quiz-service/internal/clock"
	"culture-quiz-service/internal/domain"
)

// Session is the in-memory state of one live quiz. All mutations go through its mutex,
// which serializes joins, starts, answers and deadline expiries for that session only.
type Session struct {
	id           string
	questions    []domain.Question
	perQuestion  time.Duration
	earlyAdvance bool
	clock        clock.Clock

	mu        sync.Mutex
	status    domain.Status
	idx       int
	deadline  time.Time
	teams     map[string]int
	answered  map[string]bool // team -> correctness of its first answer to the current question
	members   map[string]int  // open player connections per team
	hosts     int
	timer     clock.Timer
	round     int
	createdAt time.Time
	updatedAt time.Time
	endedAt   time.Time
	closed    bool

	subscribers map[chan domain.SessionState]struct{}
}

// NewSession builds a session with no watcher attached. Only QuizService.CreateSession
// should create live sessions; repository packages use this to test against real values.
func NewSession(id string, questions []domain.Question, settings Settings, clk clock.Clock) *Session {
	return newSession(id, questions, settings, clk)
}

func newSession(id string, questions []domain.Question, settings Settings, clk clock.Clock) *Session {
	now := clk.Now()
	return &Session{
		id:           id,
		questions:    questions,
		perQuestion:  settings.PerQuestion,
		earlyAdvance: settings.AdvanceWhenAllAnswered,
		clock:        clk,
		status:       domain.StatusLobby,
		teams:        make(map[string]int),
		answered:     make(map[string]bool),
		members:      make(map[string]int),
		createdAt:    now,
		updatedAt:    now,
		subscribers:  make(map[chan domain.SessionState]struct{}),
	}
}

// ID returns the public session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current state.
func (s *Session) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// hostCount returns the number of attached host connections.
func (s *Session) hostCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hosts
}

func (s *Session) join(role domain.Role, team string) domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role == domain.RoleHost {
		s.hosts++
	} else {
		if _, ok := s.teams[team]; !ok {
			s.teams[team] = 0
		}
		s.members[team]++
	}
	s.touchLocked()
	return s.broadcastLocked()
}

// leave detaches one connection. A team whose last connection leaves while the quiz is
// still in the lobby is dropped from the roster.
func (s *Session) leave(role domain.Role, team string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role == domain.RoleHost {
		if s.hosts > 0 {
			s.hosts--
		}
		return
	}
	if s.members[team] > 1 {
		s.members[team]--
		return
	}
	delete(s.members, team)
	if s.status == domain.StatusLobby {
		if _, ok := s.teams[team]; ok {
			delete(s.teams, team)
			s.touchLocked()
			s.broadcastLocked()
		}
	}
}

func (s *Session) start() (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusLobby {
		return domain.SessionState{}, domain.ErrAlreadyStarted
	}
	if len(s.teams) == 0 {
		return domain.SessionState{}, domain.ErrNoTeams
	}

	now := s.clock.Now()
	s.status = domain.StatusRunning
	s.idx = 0
	s.answered = make(map[string]bool)
	s.deadline = now.Add(s.perQuestion)
	s.armLocked(s.perQuestion)
	s.touchLocked()
	return s.broadcastLocked(), nil
}

// answer scores the team's first answer to the current question. Repeated answers return the
// recorded outcome and report first=false.
func (s *Session) answer(team string, choice int) (result domain.AnswerResult, first bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusRunning {
		return domain.AnswerResult{}, false, domain.ErrNotRunning
	}
	now := s.clock.Now()
	if !now.Before(s.deadline) {
		return domain.AnswerResult{}, false, domain.ErrDeadlinePassed
	}
	score, ok := s.teams[team]
	if !ok {
		return domain.AnswerResult{}, false, domain.ErrNotJoined
	}
	question := s.questions[s.idx]
	if choice < 0 || choice >= len(question.Options) {
		return domain.AnswerResult{}, false, domain.ErrChoiceOutOfRange
	}

	if correct, answered := s.answered[team]; answered {
		return domain.AnswerResult{Correct: correct, Score: score}, false, nil
	}

	correct := choice == question.CorrectIndex
	s.answered[team] = correct
	if correct {
		score++
		s.teams[team] = score
	}
	s.touchLocked()

	if s.earlyAdvance && len(s.answered) >= len(s.teams) {
		s.advanceLocked(now)
	} else {
		s.broadcastLocked()
	}
	return domain.AnswerResult{Correct: correct, Score: score}, true, nil
}

// armLocked schedules the deadline check. Each arm bumps the round so a timer that fires
// after being superseded is ignored.
func (s *Session) armLocked(d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.round++
	round := s.round
	s.timer = s.clock.AfterFunc(d, func() { s.expire(round) })
}

func (s *Session) expire(round int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.status != domain.StatusRunning || round != s.round {
		return
	}
	now := s.clock.Now()
	if now.Before(s.deadline) {
		s.armLocked(s.deadline.Sub(now))
		return
	}
	s.advanceLocked(now)
}

func (s *Session) advanceLocked(now time.Time) {
	if s.idx+1 < len(s.questions) {
		s.idx++
		s.answered = make(map[string]bool)
		s.deadline = now.Add(s.perQuestion)
		s.armLocked(s.perQuestion)
	} else {
		s.status = domain.StatusEnded
		s.deadline = time.Time{}
		s.endedAt = now
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
	}
	s.touchLocked()
	s.broadcastLocked()
}

// expired reports whether the janitor may drop the session.
func (s *Session) expired(now time.Time, retention, lobbyTTL time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case domain.StatusEnded:
		return !now.Before(s.endedAt.Add(retention))
	case domain.StatusLobby:
		return lobbyTTL > 0 && !now.Before(s.updatedAt.Add(lobbyTTL))
	default:
		return false
	}
}

// close stops the timer and closes every subscription.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) touchLocked() {
	s.updatedAt = s.clock.Now()
}

func (s *Session) broadcastLocked() domain.SessionState {
	state := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// Slow subscriber: drop its oldest snapshot, the newest one supersedes it.
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
	return state
}

func (s *Session) snapshotLocked() domain.SessionState {
	teams := make(map[string]int, len(s.teams))
	for name, score := range s.teams {
		teams[name] = score
	}
	state := domain.SessionState{
		SessionID: s.id,
		Status:    s.status,
		Teams:     teams,
		Questions: s.questions,
		Index:     s.idx,
		UpdatedAt: s.updatedAt,
	}
	if s.status == domain.StatusRunning {
		deadline := s.deadline
		state.Deadline = &deadline
	}
	return state
}

// rankTeams orders teams by score descending, then by name.
func rankTeams(teams map[string]int) []domain.ScoreboardEntry {
	entries := make([]domain.ScoreboardEntry, 0, len(teams))
	for name, score := range teams {
		entries = append(entries, domain.ScoreboardEntry{Team: name, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Team < entries[j].Team
	})
	return entries
}
