package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, model := range Tables() {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %T: %w", model, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		tables := Tables()
		for i := len(tables) - 1; i >= 0; i-- {
			_, err := db.NewDropTable().
				Model(tables[i]).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %T: %w", tables[i], err)
			}
		}

		return nil
	})
}
