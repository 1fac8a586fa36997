package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"calibtrack/internal/core"
)

func (a *app) locationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Show or change where the SQLite store lives",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the store location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.settings.StoreLocation())
			return nil
		},
	}, &cobra.Command{
		Use:   "set <path>",
		Short: "Point the store at a new database file and save the setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.settings.SetStoreLocation(args[0]); err != nil {
				return err
			}
			a.log.Info().Str("path", a.settings.StoreLocation()).Str("config", a.settings.File()).Msg("store location updated")
			fmt.Fprintln(cmd.OutOrStdout(), a.settings.StoreLocation())
			return nil
		},
	})
	return cmd
}

func (a *app) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the relational schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Repository()
			repo, err := core.OpenRepository(cmd.Context(), cfg, a.log)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := repo.Close(); err != nil {
				return err
			}
			driver := cfg.Driver
			if driver == "" {
				driver = core.StorageSQLite
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", driver)
			return nil
		},
	}
}
