package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/grafana-toolbox/grafana-wtf/internal/wtf"
)

// HistoryReport renders dashboard edit records.
type HistoryReport struct {
	Color bool
	// Now anchors the relative dates. Defaults to time.Now.
	Now func() time.Time
}

func (r *HistoryReport) Render(w io.Writer, f Format, records []wtf.EditRecord) error {
	switch f.Kind {
	case Tabular:
		r.tabular(w, f.Style, records)
		return nil
	case Text:
		r.text(w, records)
		return nil
	}
	return Write(w, f, records)
}

func (r *HistoryReport) tabular(w io.Writer, style string, records []wtf.EditRecord) {
	sep := "\n"
	if style == StylePipe {
		sep = "<br/>"
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		name := recordName(rec)
		link := "Name: " + name + sep + "URL: " + rec.URL
		if style == StylePipe {
			link = fmt.Sprintf("[%s](%s)", name, rec.URL)
		}
		rows = append(rows, []string{
			"Notes: " + notes(rec.Message) + sep + link,
			"User: " + rec.User + sep + "Date: " + r.date(rec.Datetime),
		})
	}
	renderTable(w, style, []string{"Dashboard", "Update"}, rows)
}

func (r *HistoryReport) text(w io.Writer, records []wtf.EditRecord) {
	p := newPainter(r.Color)
	for _, rec := range records {
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			p.paint(styleValue, r.date(rec.Datetime)),
			p.paint(styleKey, rec.User),
			p.paint(styleTitle, recordName(rec)),
			notes(rec.Message))
	}
}

func (r *HistoryReport) date(datetime string) string {
	t, err := time.Parse(time.RFC3339, datetime)
	if err != nil {
		return datetime
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return datetime + " (" + humanize.RelTime(t, now(), "ago", "from now") + ")"
}

func recordName(rec wtf.EditRecord) string {
	name := strings.TrimSpace(rec.Title)
	if folder := strings.TrimSpace(rec.Folder); folder != "" {
		name = folder + " » " + name
	}
	return strings.Trim(name, " 🤓")
}

func notes(message string) string {
	if message == "" {
		return "n/a"
	}
	runes := []rune(message)
	return strings.ToUpper(string(runes[:1])) + strings.ToLower(string(runes[1:]))
}
