package redis

import (
	"context"
	"testing"
	"time"

	"culture-quiz-service/internal/domain"
	"culture-quiz-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestQuestionBankCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := newClient(mr)

	source := &countingSource{
		QuestionSource: memory.NewStaticSource(map[string][]domain.Question{
			"flags": sampleQuestions(),
		}),
	}
	bank := NewQuestionBank(client, source, time.Minute)

	questions, err := bank.Questions(context.Background(), "flags")
	require.NoError(t, err)
	require.Len(t, questions, 2)
	require.Equal(t, 1, source.calls)
	require.True(t, mr.Exists("quiz:bank:flags"))

	// Second call should hit cache, source not incremented.
	cached, err := bank.Questions(context.Background(), "flags")
	require.NoError(t, err)
	require.Equal(t, 1, source.calls)
	require.Equal(t, questions, cached)
}

func TestQuestionBankPropagatesUnknownCategory(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	bank := NewQuestionBank(newClient(mr), memory.NewStaticSource(nil), time.Minute)

	_, err = bank.Questions(context.Background(), "weather")
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)
	require.False(t, mr.Exists("quiz:bank:weather"))
}

type countingSource struct {
	memory.QuestionSource
	calls int
}

func (s *countingSource) LoadCategory(ctx context.Context, category string) ([]domain.Question, error) {
	s.calls++
	return s.QuestionSource.LoadCategory(ctx, category)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Prompt: "Which flag has a red maple leaf?", Options: []string{"Canada", "Japan", "Peru"}, CorrectIndex: 0},
		{Prompt: "Which flag has a cedar tree?", Options: []string{"Cyprus", "Lebanon"}, CorrectIndex: 1},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
