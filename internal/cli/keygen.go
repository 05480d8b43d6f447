package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"trustcore/internal/security"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a 256-bit encryption key",
	Long: `Prints a random 64-hex-character key suitable for DATA_ENCRYPTION_KEY or
VAULT_ENCRYPTION_KEY. With --jwt, also prints random JWT_SECRET and
REFRESH_TOKEN_SECRET values.`,
	Example: `  trustctl keygen
  trustctl keygen --jwt >> .env`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jwt, err := cmd.Flags().GetBool("jwt")
		if err != nil {
			return err
		}
		key, err := security.GenerateKey()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !jwt {
			fmt.Fprintln(out, key)
			return nil
		}
		fmt.Fprintf(out, "DATA_ENCRYPTION_KEY=%s\n", key)
		for _, name := range []string{"JWT_SECRET", "REFRESH_TOKEN_SECRET"} {
			s, err := security.GenerateToken(32)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s=%s\n", name, s)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().Bool("jwt", false, "Also generate JWT signing secrets, printed as env assignments")
}
