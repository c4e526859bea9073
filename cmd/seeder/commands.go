package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unclebandit/campaign-service/internal/app"
	"github.com/unclebandit/campaign-service/internal/config"
	"github.com/unclebandit/campaign-service/internal/db"
	"github.com/unclebandit/campaign-service/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema migrations",
	RunE:  runMigrate,
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Upsert contacts from a YAML fixture",
	Long: `Load a YAML fixture of the form

  contacts:
    - id: "1"
      name: John Doe
      phone: "+1234567890"

and upsert every contact into the configured store.`,
	RunE: runContacts,
}

func init() {
	contactsCmd.Flags().StringP("file", "f", "fixtures/contacts.yaml", "YAML contact fixture")
	contactsCmd.Flags().Duration("timeout", 30*time.Second, "give up after this long")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := db.Migrate(cfg.Postgres.Addr); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied successfully!")
	return nil
}

func runContacts(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Driver == config.StoreMemory {
		return errors.New("STORE_DRIVER=memory keeps nothing; set postgres or mongo, or point CONTACTS_FILE at the fixture instead")
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	contacts, err := db.LoadContactsFile(file, time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	if err := store.Contacts.InsertMany(ctx, contacts); err != nil {
		return fmt.Errorf("seed contacts: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d contacts from %s into %s\n", len(contacts), file, cfg.Store.Driver)
	return nil
}
