package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "seeder",
	Short: "Prepare a campaign service database",
	Long: `Prepare the Postgres or MongoDB backend selected by STORE_DRIVER.

Available subcommands:
  migrate  - Apply the embedded Postgres schema migrations
  contacts - Upsert contacts from a YAML fixture`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd, contactsCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
