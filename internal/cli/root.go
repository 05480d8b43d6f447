// Package cli implements trustctl, the operator command line for the trust
// subsystem: key generation, password hashing, migrations, audit reporting and
// maintenance sweeps against the Postgres stores.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"trustcore/internal/config"
	"trustcore/internal/db"
	"trustcore/internal/logging"
)

var errNoDatabase = errors.New("DATABASE_URL is required for this command")

var (
	cfg      *config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "trustctl",
	Short: "Operate the trustcore security subsystem",
	Long: `trustctl generates keys, hashes passwords, applies schema migrations and
inspects the audit trail and session store of a trustcore deployment.

Configuration is read from the environment and an optional .env file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		level := c.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		logging.Setup(level, c.Env)
		cfg = c
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

// openDB opens the configured database or fails with errNoDatabase.
func openDB(ctx context.Context) (*sql.DB, error) {
	if cfg == nil || cfg.DatabaseURL == "" {
		return nil, errNoDatabase
	}
	return db.Open(ctx, cfg.DatabaseURL)
}
