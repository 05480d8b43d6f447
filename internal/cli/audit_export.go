package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"trustcore/internal/audit"
)

var auditExportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export every audit event as JSON or CSV",
	Example: `  trustctl audit export --format csv -o events.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("output")
		f := audit.Format(format)
		if f != audit.FormatJSON && f != audit.FormatCSV {
			return fmt.Errorf("unsupported format %q (want json or csv)", format)
		}

		e, closeDB, err := openAuditEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		var w io.Writer = cmd.OutOrStdout()
		if out != "" && out != "-" {
			file, err := os.Create(out)
			if err != nil {
				return err
			}
			defer file.Close()
			w = file
		}
		return e.Export(cmd.Context(), w, f)
	},
}

func init() {
	auditCmd.AddCommand(auditExportCmd)
	auditExportCmd.Flags().String("format", "json", "Output format: json or csv")
	auditExportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
}
