package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/orgadmin/backend/internal/repository"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	var databaseURL string
	rootCmd := &cobra.Command{
		Use:     "checkoutctl",
		Short:   "Operate the checkout database: schema, catalog and the reconciliation queue",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return errors.New("--database-url or DATABASE_URL is required")
			}
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")

	connect := func(ctx context.Context) (*pgxpool.Pool, error) {
		return repository.NewDB(ctx, databaseURL)
	}

	rootCmd.AddCommand(migrateCmd(connect))
	rootCmd.AddCommand(seedCatalogCmd(connect))
	rootCmd.AddCommand(failuresCmd(connect))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type connectFunc func(ctx context.Context) (*pgxpool.Pool, error)
