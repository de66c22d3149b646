package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/grafana-toolbox/grafana-wtf/internal/catalog"
	"github.com/grafana-toolbox/grafana-wtf/internal/wtf"
)

// CatalogHits renders keyword search hits, best first.
func CatalogHits(w io.Writer, f Format, hits []catalog.Hit) error {
	if f.Kind != Tabular {
		return Write(w, f, hits)
	}
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []string{h.UID, h.Title, strconv.FormatFloat(h.Score, 'f', 3, 64), h.URL})
	}
	renderTable(w, f.Style, []string{"UID", "Title", "Score", "URL"}, rows)
	return nil
}

// PluginStatuses renders plugin health checks.
func PluginStatuses(w io.Writer, f Format, statuses []wtf.PluginStatus) error {
	if f.Kind != Tabular {
		return Write(w, f, statuses)
	}
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		status, message := "", s.Error
		if s.Health != nil {
			status, message = s.Health.Status, s.Health.Message
		}
		rows = append(rows, []string{s.ID, s.Type, s.Version, strconv.FormatBool(s.Enabled), status, message})
	}
	renderTable(w, f.Style, []string{"ID", "Type", "Version", "Enabled", "Status", "Message"}, rows)
	return nil
}

// ReplaceOutcomes renders the result of a replace run.
func ReplaceOutcomes(w io.Writer, f Format, outcomes []wtf.ReplaceOutcome) error {
	switch f.Kind {
	case Tabular:
		rows := make([][]string, 0, len(outcomes))
		for _, o := range outcomes {
			rows = append(rows, []string{o.UID, o.Title, strconv.Itoa(o.Occurrences), outcomeStatus(o), o.URL})
		}
		renderTable(w, f.Style, []string{"UID", "Title", "Occurrences", "Status", "URL"}, rows)
		return nil
	case Text:
		for _, o := range outcomes {
			if _, err := fmt.Fprintf(w, "%s %q: %d occurrence(s), %s\n", o.UID, o.Title, o.Occurrences, outcomeStatus(o)); err != nil {
				return err
			}
		}
		return nil
	}
	return Write(w, f, outcomes)
}

func outcomeStatus(o wtf.ReplaceOutcome) string {
	switch {
	case o.Error != "":
		return "failed: " + o.Error
	case o.DryRun:
		return "dry run"
	default:
		return "saved as version " + strconv.FormatInt(o.Version, 10)
	}
}
