package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"culture-quiz-service/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestGenerateCommandPrintsQuestions(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"generate", "--config", filepath.Join(t.TempDir(), "none.yaml"), "--cats", "flags,food", "--n", "4"})
	require.NoError(t, cmd.Execute())

	var questions []domain.Question
	require.NoError(t, json.Unmarshal(out.Bytes(), &questions))
	require.Len(t, questions, 4)
	for _, q := range questions {
		require.NoError(t, q.Validate())
	}
}

func TestGenerateCommandRejectsUnknownCategory(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"generate", "--config", filepath.Join(t.TempDir(), "none.yaml"), "--cats", "weather"})
	err := cmd.Execute()
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)
}

func TestMigrateRequiresPostgres(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"migrate", "--config", filepath.Join(t.TempDir(), "none.yaml")})
	require.ErrorContains(t, cmd.Execute(), "postgres url not configured")
}
