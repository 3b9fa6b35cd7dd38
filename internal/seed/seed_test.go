package seed

import (
	"errors"
	"testing"

	"culture-quiz-service/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedBankIsValid(t *testing.T) {
	bank, err := Questions()
	require.NoError(t, err)
	for _, category := range []string{"flags", "food", "fest"} {
		require.NotEmpty(t, bank[category], "category %s", category)
	}
}

func TestParseRejectsOutOfRangeAnswer(t *testing.T) {
	_, err := Parse([]byte(`
flags:
  - question: "Broken"
    options: ["a", "b"]
    answer: 2
`))
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrMalformedQuestion))
}
