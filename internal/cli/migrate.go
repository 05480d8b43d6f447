package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"trustcore/internal/db/migrate"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate up|down|version",
	Short:     "Apply, roll back or inspect schema migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := ""
		if cfg != nil {
			dsn = cfg.DatabaseURL
		}
		if args[0] != "version" {
			if err := migrate.Run(dsn, args[0]); err != nil {
				return err
			}
		}
		v, dirty, err := migrate.Version(dsn)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", v, dirty)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
