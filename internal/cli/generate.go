package cli

import (
	"encoding/json"
	"strings"

	"culture-quiz-service/internal/app"
	"culture-quiz-service/internal/config"
	"culture-quiz-service/internal/infra/memory"
	"culture-quiz-service/internal/seed"
	"github.com/spf13/cobra"
)

// NewGenerateCmd prints a question set drawn from the built-in bank.
func NewGenerateCmd(configPath *string) *cobra.Command {
	var (
		cats  string
		count int
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a generated question set as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			bank, err := seed.Questions()
			if err != nil {
				return err
			}
			service := app.NewQuizService(memory.NewSessionStore(),
				memory.NewQuestionBank(memory.NewStaticSource(bank), 0), cfg.Settings())

			questions, err := service.GenerateQuestions(cmd.Context(), strings.Split(cats, ","), count)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(questions)
		},
	}
	cmd.Flags().StringVar(&cats, "cats", "flags", "comma separated categories (flags, food, fest)")
	cmd.Flags().IntVar(&count, "n", 5, "number of questions")
	return cmd
}
