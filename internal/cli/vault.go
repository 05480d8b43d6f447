package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"trustcore/internal/security"
	"trustcore/internal/vault/repository"
	vaultservice "trustcore/internal/vault/service"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Inspect the secrets vault",
}

var vaultStatusCmd = &cobra.Command{
	Use:   "rotation-status",
	Short: "Show days until expiry for every stored secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		engine, err := security.NewEngineFromHex(cfg.VaultEncryptionKey)
		if err != nil {
			return err
		}
		v := vaultservice.New(repository.NewPostgresSecretStore(d), repository.NewPostgresAuditStore(d), engine)
		defer v.Close()
		statuses, err := v.CheckRotationStatus(cmd.Context())
		if err != nil {
			return err
		}
		t := newTable(cmd.OutOrStdout(), "KEY", "DAYS UNTIL EXPIRY", "ROTATE")
		for _, s := range statuses {
			t.AppendRow(table.Row{s.Key, s.DaysUntilExpiry, s.RequiresRotation})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(vaultCmd)
	vaultCmd.AddCommand(vaultStatusCmd)
}
