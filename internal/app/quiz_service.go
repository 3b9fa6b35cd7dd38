package app

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"culture-quiz-service/internal/clock"
	"culture-quiz-service/internal/domain"
	"culture-quiz-service/internal/logger"
	"culture-quiz-service/internal/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionRepository abstracts where live sessions are registered (in-memory, Redis-mirrored).
type SessionRepository interface {
	Add(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	List() []*Session
	// Save records the latest snapshot of a session; implementations may treat it as best effort.
	Save(ctx context.Context, state domain.SessionState) error
}

// QuestionBank returns the question pool of a category.
type QuestionBank interface {
	Questions(ctx context.Context, category string) ([]domain.Question, error)
}

// ResultPublisher announces final results once a session ends.
type ResultPublisher interface {
	PublishResults(ctx context.Context, results domain.Results) error
}

// Settings are the coordinator-wide quiz parameters.
type Settings struct {
	PerQuestion  time.Duration
	MaxQuestions int
	// Retention is how long an ended session stays addressable.
	Retention time.Duration
	// LobbyTTL drops lobbies idle for that long; zero keeps them forever.
	LobbyTTL               time.Duration
	AdvanceWhenAllAnswered bool
}

// DefaultSettings mirrors the behaviour the web clients expect.
func DefaultSettings() Settings {
	return Settings{
		PerQuestion:  20 * time.Second,
		MaxQuestions: 10,
		Retention:    30 * time.Minute,
		LobbyTTL:     2 * time.Hour,
	}
}

// Option customizes a QuizService.
type Option func(*QuizService)

func WithClock(clk clock.Clock) Option {
	return func(s *QuizService) { s.clock = clk }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *QuizService) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *QuizService) { s.metrics = m }
}

func WithPublisher(p ResultPublisher) Option {
	return func(s *QuizService) { s.publisher = p }
}

// WithRand fixes the question shuffle source, for tests.
func WithRand(rnd *rand.Rand) Option {
	return func(s *QuizService) { s.rnd = rnd }
}

// WithIDGenerator replaces the session id generator, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *QuizService) { s.newID = gen }
}

// QuizService contains the quiz coordination use cases.
type QuizService struct {
	sessions  SessionRepository
	bank      QuestionBank
	settings  Settings
	clock     clock.Clock
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	publisher ResultPublisher
	newID     func() string

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizService(store SessionRepository, bank QuestionBank, settings Settings, opts ...Option) *QuizService {
	defaults := DefaultSettings()
	if settings.PerQuestion <= 0 {
		settings.PerQuestion = defaults.PerQuestion
	}
	if settings.MaxQuestions <= 0 {
		settings.MaxQuestions = defaults.MaxQuestions
	}
	if settings.Retention <= 0 {
		settings.Retention = defaults.Retention
	}

	s := &QuizService{
		sessions:  store,
		bank:      bank,
		settings:  settings,
		clock:     clock.Real(),
		log:       logger.Nop(),
		publisher: nopPublisher{},
		newID:     uuid.NewString,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the effective quiz parameters.
func (s *QuizService) Settings() Settings { return s.settings }

// CreateSession draws questions for the categories and registers a new lobby session.
func (s *QuizService) CreateSession(ctx context.Context, categories []string, count int) (string, error) {
	questions, err := s.GenerateQuestions(ctx, categories, count)
	if err != nil {
		return "", err
	}

	id := s.newID()
	session := newSession(id, questions, s.settings, s.clock)
	s.sessions.Add(session)
	s.metrics.SessionCreated()
	go s.watch(session)

	s.log.WithFields(logrus.Fields{
		"session_id": id,
		"categories": categories,
		"questions":  len(questions),
	}).Info("quiz session created")
	return id, nil
}

// GenerateQuestions validates the request and draws up to count questions from the
// pooled categories.
func (s *QuizService) GenerateQuestions(ctx context.Context, categories []string, count int) ([]domain.Question, error) {
	cats := normalizeCategories(categories)
	if len(cats) == 0 {
		return nil, domain.ErrNoCategories
	}
	if count < 1 || count > s.settings.MaxQuestions {
		return nil, domain.ErrQuestionCount
	}

	var pool []domain.Question
	for _, category := range cats {
		questions, err := s.bank.Questions(ctx, category)
		if err != nil {
			return nil, err
		}
		for _, q := range questions {
			if q.Validate() == nil {
				pool = append(pool, q)
			}
		}
	}
	if len(pool) == 0 {
		return nil, domain.ErrCategoryNotFound
	}

	s.rndMu.Lock()
	picked := pickQuestions(pool, count, s.rnd)
	s.rndMu.Unlock()
	return picked, nil
}

// Join attaches a host observer or a player's team to a session.
func (s *QuizService) Join(_ context.Context, sessionID string, role domain.Role, teamName string) (domain.SessionState, error) {
	if !role.Valid() {
		return domain.SessionState{}, domain.ErrInvalidRole
	}
	team := strings.TrimSpace(teamName)
	if role == domain.RolePlayer && team == "" {
		return domain.SessionState{}, domain.ErrTeamNameRequired
	}
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}

	state := session.join(role, team)
	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"role":       role,
		"team":       team,
		"status":     state.Status,
		"hosts":      session.hostCount(),
	}).Debug("joined session")
	return state, nil
}

// Leave detaches a connection from a session; unknown sessions are ignored.
func (s *QuizService) Leave(_ context.Context, sessionID string, role domain.Role, teamName string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	team := strings.TrimSpace(teamName)
	session.leave(role, team)
	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"role":       role,
		"team":       team,
		"hosts":      session.hostCount(),
	}).Debug("left session")
}

// Subscribe returns a channel that receives a snapshot on every change of the session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionState, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Start moves a lobby session with at least one team to its first question.
func (s *QuizService) Start(_ context.Context, sessionID string) (domain.SessionState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	state, err := session.start()
	if err != nil {
		return domain.SessionState{}, err
	}
	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"teams":      len(state.Teams),
	}).Info("quiz started")
	return state, nil
}

// SubmitAnswer scores a team's answer to the current question.
func (s *QuizService) SubmitAnswer(_ context.Context, sessionID, teamName string, choice int) (domain.AnswerResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	result, first, err := session.answer(strings.TrimSpace(teamName), choice)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if first {
		s.metrics.Answer(result.Correct)
	}
	return result, nil
}

// Snapshot returns the current state of a session.
func (s *QuizService) Snapshot(_ context.Context, sessionID string) (domain.SessionState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Scoreboard returns the ranked team scores of a session.
func (s *QuizService) Scoreboard(ctx context.Context, sessionID string) (domain.Scoreboard, error) {
	state, err := s.Snapshot(ctx, sessionID)
	if err != nil {
		return domain.Scoreboard{}, err
	}
	return domain.Scoreboard{
		SessionID: state.SessionID,
		Status:    state.Status,
		Entries:   rankTeams(state.Teams),
	}, nil
}

// Close drops every session, stopping their timers.
func (s *QuizService) Close() {
	for _, session := range s.sessions.List() {
		s.remove(session)
	}
}

func (s *QuizService) remove(session *Session) {
	s.sessions.Delete(session.ID())
	session.close()
	s.metrics.SessionRemoved()
}

// watch mirrors each snapshot to the repository, counts transitions and publishes results
// once. It returns when the session is closed.
func (s *QuizService) watch(session *Session) {
	updates, cancel := session.subscribe()
	defer cancel()

	log := s.log.WithField("session_id", session.ID())
	last := domain.Status("")
	published := false
	for state := range updates {
		ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.sessions.Save(ctx, state); err != nil {
			log.WithError(err).Warn("persist session snapshot")
		}
		if state.Status != last {
			if last != "" {
				s.metrics.Transition(string(state.Status))
			}
			last = state.Status
		}
		if state.Status == domain.StatusEnded && !published {
			published = true
			results := domain.Results{
				SessionID:     state.SessionID,
				Scoreboard:    rankTeams(state.Teams),
				QuestionCount: len(state.Questions),
				EndedAt:       state.UpdatedAt,
			}
			if err := s.publisher.PublishResults(ctx, results); err != nil {
				log.WithError(err).Error("publish quiz results")
			} else {
				log.WithField("teams", len(results.Scoreboard)).Info("quiz ended")
			}
		}
		done()
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishResults(context.Context, domain.Results) error { return nil }

// ErrorKind names the class of a client-facing error for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "internal"
	}
}
