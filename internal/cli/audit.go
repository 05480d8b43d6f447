package cli

import (
	"context"

	"github.com/spf13/cobra"

	"trustcore/internal/audit"
	"trustcore/internal/audit/repository"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the security audit trail",
	Long:  `Report on and export the audit events and alerts stored in Postgres.`,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

// openAuditEngine returns an engine over the Postgres audit tables and a
// func that closes the underlying database.
func openAuditEngine(ctx context.Context) (*audit.Engine, func() error, error) {
	d, err := openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	e := audit.NewEngine(repository.NewPostgresEventStore(d), repository.NewPostgresAlertStore(d))
	return e, d.Close, nil
}
