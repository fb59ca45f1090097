package command

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kiosk-system/internal/logging"
	"kiosk-system/internal/repository"
)

func Migrate(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(_ *cobra.Command, args []string) error {
			return runMigrate(ctx, args[0])
		},
	}
}

func runMigrate(ctx context.Context, direction string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New("migrate", cfg.LogLevel)

	db, err := repository.Connect(ctx, cfg.Database)
	if err != nil {
		return errors.Wrap(err, "connect to postgres")
	}
	defer db.Close()

	switch direction {
	case "up":
		err = repository.MigrateUp(db, cfg.Database.Database)
	case "down":
		err = repository.MigrateDown(db, cfg.Database.Database)
	}
	if err != nil {
		return err
	}
	log.WithField("action", "migrations_applied").Info("migrations " + direction + " done")
	return nil
}
