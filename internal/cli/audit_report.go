package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"trustcore/internal/audit"
	"trustcore/internal/audit/domain"
)

var auditReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise events and alerts over a time window",
	Example: `  trustctl audit report --since 24h
  trustctl audit report --since 168h --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetDuration("since")
		asJSON, _ := cmd.Flags().GetBool("json")

		e, closeDB, err := openAuditEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		end := time.Now().UTC()
		r, err := e.GenerateSecurityReport(cmd.Context(), end.Add(-since), end)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		}
		renderReport(cmd.OutOrStdout(), r)
		return nil
	},
}

func renderReport(w io.Writer, r *audit.Report) {
	fmt.Fprintf(w, "Security report %s .. %s\n", r.Period.Start.Format(time.RFC3339), r.Period.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Events: %d  Alerts: %d (critical %d, high %d)\n\n",
		r.Summary.TotalEvents, r.Summary.TotalAlerts, r.Summary.CriticalAlerts, r.Summary.HighAlerts)

	types := make([]string, 0, len(r.EventsByType))
	for t := range r.EventsByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	byType := newTable(w, "EVENT TYPE", "COUNT")
	for _, t := range types {
		byType.AppendRow(table.Row{t, r.EventsByType[domain.EventType(t)]})
	}
	byType.Render()

	if len(r.TopSubjects) > 0 {
		fmt.Fprintln(w)
		t := newTable(w, "SUBJECT", "EVENTS")
		for _, c := range r.TopSubjects {
			t.AppendRow(table.Row{c.Key, c.Count})
		}
		t.Render()
	}
	if len(r.TopIPAddresses) > 0 {
		fmt.Fprintln(w)
		t := newTable(w, "IP ADDRESS", "EVENTS")
		for _, c := range r.TopIPAddresses {
			t.AppendRow(table.Row{c.Key, c.Count})
		}
		t.Render()
	}
	if len(r.Alerts) > 0 {
		fmt.Fprintln(w)
		t := newTable(w, "TIME", "TYPE", "SEVERITY", "SUBJECT", "IP", "STATUS")
		for _, a := range r.Alerts {
			t.AppendRow(table.Row{a.Timestamp.Format(time.RFC3339), a.Type, a.Severity, a.Subject, a.IPAddress, a.Status})
		}
		t.Render()
	}
}

func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row(header))
	t.SetStyle(table.StyleLight)
	return t
}

func init() {
	auditCmd.AddCommand(auditReportCmd)
	auditReportCmd.Flags().Duration("since", 24*time.Hour, "Report window ending now")
	auditReportCmd.Flags().Bool("json", false, "Print the report as JSON")
}
