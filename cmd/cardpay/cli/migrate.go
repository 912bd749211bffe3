package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/CedrosPay/cardpay/pkg/cardpay"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the ledger schema in PostgreSQL",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Backend != "postgres" {
		return errors.New("migrate requires storage.backend=postgres")
	}
	// Migrate explicitly even when auto_migrate is off.
	cfg.Storage.AutoMigrate = false

	app, err := cardpay.NewApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Migrate(cmd.Context()); err != nil {
		return err
	}
	app.Logger.Info().
		Str("payments_table", cfg.Storage.SchemaMapping.Payments.TableName).
		Str("refunds_table", cfg.Storage.SchemaMapping.Refunds.TableName).
		Msg("migrate.completed")
	return nil
}
