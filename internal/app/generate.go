package app

import (
	"math/rand"
	"strings"

	"culture-quiz-service/internal/domain"
)

// normalizeCategories trims, lowercases and deduplicates category names, keeping order.
func normalizeCategories(categories []string) []string {
	seen := make(map[string]struct{}, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// pickQuestions returns up to count questions drawn without replacement from pool.
// The pool itself is left untouched.
func pickQuestions(pool []domain.Question, count int, rnd *rand.Rand) []domain.Question {
	shuffled := make([]domain.Question, len(pool))
	copy(shuffled, pool)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if count < len(shuffled) {
		shuffled = shuffled[:count]
	}
	for i := range shuffled {
		options := make([]string, len(shuffled[i].Options))
		copy(options, shuffled[i].Options)
		shuffled[i].Options = options
	}
	return shuffled
}
