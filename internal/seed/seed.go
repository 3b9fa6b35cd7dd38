// Package seed holds the built-in question bank shipped with the binary.
package seed

import (
	_ "embed"
	"fmt"

	"culture-quiz-service/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var questionsYAML []byte

// Questions parses the embedded bank into category -> questions.
func Questions() (map[string][]domain.Question, error) {
	return Parse(questionsYAML)
}

// Parse decodes a YAML bank and validates every entry.
func Parse(data []byte) (map[string][]domain.Question, error) {
	bank := map[string][]domain.Question{}
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	for category, questions := range bank {
		for i, q := range questions {
			if err := q.Validate(); err != nil {
				return nil, fmt.Errorf("question bank %s[%d]: %w", category, i, err)
			}
		}
	}
	return bank, nil
}
