package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/repository"
	"github.com/orgadmin/backend/internal/service"
	"github.com/spf13/cobra"
)

func migrateCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.RunMigrations(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func seedCatalogCmd(connect connectFunc) *cobra.Command {
	var currency string
	cmd := &cobra.Command{
		Use:   "seed-catalog",
		Short: "Write the default plans and modules",
		Long: `Write the default plans and modules to the catalog.

Rows with the same ids are replaced, so running it twice is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			subs := service.NewSubscriptionService(
				repository.NewCatalogRepository(db),
				repository.NewSubscriptionRepository(db),
				currency,
			)
			n, err := subs.SeedCatalog(cmd.Context())
			if err != nil {
				return fmt.Errorf("seeded %d items before failing: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d catalog items\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&currency, "currency", "BRL", "currency used for display")
	return cmd
}

func failuresCmd(connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Inspect payments that were charged but not activated",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List unresolved reconciliation failures, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			failures, err := repository.NewFailureRepository(db).ListUnresolved(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printFailures(cmd.OutOrStdout(), failures)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows")

	resolve := &cobra.Command{
		Use:   "resolve [id]",
		Short: "Mark a failure as handled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			ok, err := repository.NewFailureRepository(db).Resolve(cmd.Context(), args[0], time.Now())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no open failure with id %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resolved %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, resolve)
	return cmd
}

func printFailures(out io.Writer, failures []*domain.ReconciliationFailure) error {
	if len(failures) == 0 {
		_, err := fmt.Fprintln(out, "no unresolved failures")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tTRANSACTION\tITEM\tORG\tERROR")
	for _, f := range failures {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %d\t%d\t%s\n",
			f.ID, f.CreatedAt.Format(time.RFC3339), f.TransactionID, f.ItemKind, f.ItemID, f.OrganizationID, f.Error)
	}
	return tw.Flush()
}
