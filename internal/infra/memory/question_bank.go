package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"culture-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionSource fetches the question pool of a category from a backing store.
type QuestionSource interface {
	LoadCategory(ctx context.Context, category string) ([]domain.Question, error)
}

// QuestionBank caches category pools with TTL to avoid repeated source hits.
type QuestionBank struct {
	source QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(source QuestionSource, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

func (b *QuestionBank) Questions(ctx context.Context, category string) ([]domain.Question, error) {
	if questions, ok := b.lookup(category); ok {
		return questions, nil
	}

	result, err, _ := b.sf.Do(category, func() (interface{}, error) {
		if questions, ok := b.lookup(category); ok {
			return questions, nil
		}

		questions, err := b.source.LoadCategory(ctx, category)
		if err != nil {
			return nil, err
		}

		expiresAt := b.clock().Add(b.ttlWithJitter())
		b.mu.Lock()
		b.cache[category] = cachedPool{questions: questions, expiresAt: expiresAt}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) lookup(category string) ([]domain.Question, bool) {
	now := b.clock()
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.cache[category]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return entry.questions, true
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticSource is a source backed by an in-memory map (the embedded seed bank, tests).
type StaticSource struct {
	categories map[string][]domain.Question
}

func NewStaticSource(categories map[string][]domain.Question) *StaticSource {
	return &StaticSource{categories: categories}
}

func (s *StaticSource) LoadCategory(_ context.Context, category string) ([]domain.Question, error) {
	if questions, ok := s.categories[category]; ok && len(questions) > 0 {
		return questions, nil
	}
	return nil, domain.ErrCategoryNotFound
}
