package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"trustcore/internal/audit/domain"
)

// Format selects the export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// CSVHeader is the fixed column order of CSV exports.
var CSVHeader = []string{"id", "timestamp", "type", "severity", "subject", "ip"}

// Export writes the full event log to w, oldest first. Details are written as
// they were stored, so masked values stay masked.
func (e *Engine) Export(ctx context.Context, w io.Writer, format Format) error {
	events, err := e.events.List(ctx, domain.EventFilter{})
	if err != nil {
		return err
	}
	slices.Reverse(events)
	switch format {
	case FormatJSON, "":
		return writeJSON(w, events)
	case FormatCSV:
		return writeCSV(w, events)
	default:
		return fmt.Errorf("audit: unsupported export format %q", format)
	}
}

func writeJSON(w io.Writer, events []*domain.Event) error {
	if events == nil {
		events = []*domain.Event{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

func writeCSV(w io.Writer, events []*domain.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, ev := range events {
		if err := cw.Write([]string{
			ev.ID,
			ev.Timestamp.Format(time.RFC3339Nano),
			string(ev.Type),
			string(ev.Severity),
			ev.Subject,
			ev.IPAddress,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
