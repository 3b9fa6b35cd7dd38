package app

import (
	"context"
	"time"
)

// Sweep removes ended sessions past their retention and lobbies idle past the lobby TTL.
// It returns the number of sessions removed.
func (s *QuizService) Sweep() int {
	now := s.clock.Now()
	removed := 0
	for _, session := range s.sessions.List() {
		if session.expired(now, s.settings.Retention, s.settings.LobbyTTL) {
			s.remove(session)
			removed++
			s.log.WithField("session_id", session.ID()).Debug("session swept")
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done.
func (s *QuizService) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.WithField("removed", n).Info("janitor swept sessions")
			}
		}
	}
}
