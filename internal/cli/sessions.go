package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"trustcore/internal/app"
	"trustcore/internal/session/repository"
	sessionservice "trustcore/internal/session/service"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
}

var sessionsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired sessions and stale revocation entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		tokens, err := app.NewTokenProvider(cfg)
		if err != nil {
			return err
		}
		a := sessionservice.NewAuthority(repository.NewPostgresRepository(d), repository.NewPostgresRevocationStore(d), tokens,
			sessionservice.WithSessionTTL(cfg.SessionTTL()))
		n, err := a.CleanupExpiredSessions(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", n)
		return nil
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list SUBJECT",
	Short: "List the active sessions of a subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		tokens, err := app.NewTokenProvider(cfg)
		if err != nil {
			return err
		}
		a := sessionservice.NewAuthority(repository.NewPostgresRepository(d), repository.NewPostgresRevocationStore(d), tokens)
		sessions, err := a.ListSessions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		t := newTable(cmd.OutOrStdout(), "ID", "CREATED", "EXPIRES", "IP", "USER AGENT")
		for _, s := range sessions {
			t.AppendRow(table.Row{s.ID, s.CreatedAt.Format(time.RFC3339), s.ExpiresAt.Format(time.RFC3339), s.Metadata.IPAddress, s.Metadata.UserAgent})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsCleanupCmd, sessionsListCmd)
}
