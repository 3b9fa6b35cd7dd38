package migrations

import (
	"context"
	"sort"

	"culture-quiz-service/internal/seed"
	"github.com/uptrace/bun"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID       int64    `bun:",pk,autoincrement"`
	Category string   `bun:",notnull"`
	Prompt   string   `bun:",notnull"`
	Options  []string `bun:",array"`
	Answer   int      `bun:",notnull"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			rows, err := seedRows()
			if err != nil {
				return err
			}
			_, err = db.NewInsert().
				Model(&rows).
				ExcludeColumn("id").
				On("CONFLICT (category, prompt) DO NOTHING").
				Returning("NULL").
				Exec(ctx)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			rows, err := seedRows()
			if err != nil {
				return err
			}
			prompts := make([]string, 0, len(rows))
			for _, r := range rows {
				prompts = append(prompts, r.Prompt)
			}
			_, err = db.NewDelete().
				Model((*questionRow)(nil)).
				Where("prompt IN (?)", bun.In(prompts)).
				Exec(ctx)
			return err
		},
	)
}

// seedRows flattens the embedded bank in a stable category order.
func seedRows() ([]questionRow, error) {
	bank, err := seed.Questions()
	if err != nil {
		return nil, err
	}
	categories := make([]string, 0, len(bank))
	for c := range bank {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var rows []questionRow
	for _, c := range categories {
		for _, q := range bank[c] {
			rows = append(rows, questionRow{
				Category: c,
				Prompt:   q.Prompt,
				Options:  q.Options,
				Answer:   q.CorrectIndex,
			})
		}
	}
	return rows, nil
}
