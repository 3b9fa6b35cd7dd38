package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"culture-quiz-service/internal/app"
	"culture-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Sessions stay in a local map: their timers and subscribers are process-local.
//   - Every snapshot is mirrored to quiz:session:{id} with a TTL so dashboards and other
//     instances can read scores without talking to this process.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Add(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	// best-effort cleanup of the mirror
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

func (s *SessionStore) List() []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

// Save mirrors the snapshot; a session removed meanwhile is not resurrected. The read lock
// is held across the write so a concurrent Delete clears the key after it.
func (s *SessionStore) Save(ctx context.Context, state domain.SessionState) error {
	data, err := json.Marshal(toRecord(state))
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[state.SessionID]; !ok {
		return nil
	}
	if err := s.client.Set(ctx, s.key(state.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("mirror session snapshot: %w", err)
	}
	return nil
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}

// Record is the mirrored form of a session snapshot.
type Record struct {
	SessionID     string         `json:"sessionId"`
	Status        domain.Status  `json:"status"`
	Teams         map[string]int `json:"teams"`
	Index         int            `json:"idx"`
	QuestionCount int            `json:"questionCount"`
	Deadline      *time.Time     `json:"deadline,omitempty"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func toRecord(state domain.SessionState) Record {
	return Record{
		SessionID:     state.SessionID,
		Status:        state.Status,
		Teams:         state.Teams,
		Index:         state.Index,
		QuestionCount: len(state.Questions),
		Deadline:      state.Deadline,
		UpdatedAt:     state.UpdatedAt,
	}
}
