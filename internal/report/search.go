package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grafana-toolbox/grafana-wtf/internal/index"
	"github.com/grafana-toolbox/grafana-wtf/internal/wtf"
	"github.com/grafana-toolbox/grafana-wtf/pkg/finder"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

const rule = "=========================================="

// SearchReport renders the result of a find run as text or table.
type SearchReport struct {
	GrafanaURL string
	Verbose    bool
	Color      bool
}

func (r *SearchReport) Render(w io.Writer, f Format, expression string, result wtf.SearchResult) error {
	switch f.Kind {
	case Text:
		return r.text(w, expression, result)
	case Tabular:
		return r.tabular(w, f.Style, result)
	}
	return Write(w, f, result)
}

func (r *SearchReport) text(w io.Writer, expression string, result wtf.SearchResult) error {
	p := newPainter(r.Color)
	if expression == "" {
		expression = "*"
	}
	fmt.Fprintf(w, "Searching for expression \"%s\" at Grafana instance %s\n",
		p.paint(styleMatch, expression), r.GrafanaURL)

	if err := r.section(w, p, "Data Sources", result.Datasources); err != nil {
		return err
	}
	return r.section(w, p, "Dashboards", result.Dashboards)
}

func (r *SearchReport) section(w io.Writer, p painter, label string, items []wtf.SearchItem) error {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%s: %s hits.\n", p.paint(styleSection, label), p.paint(styleMatch, len(items)))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	for _, item := range items {
		if r.Verbose {
			fmt.Fprintln(w)
			if err := highlightJSON(w, item.Data, r.Color); err != nil {
				return err
			}
		}
		switch data := item.Data.(type) {
		case *types.Dashboard:
			r.dashboard(w, p, data, item.Meta.Matches)
		case types.DataSource:
			r.datasource(w, p, data, item.Meta.Matches)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w)
	}
	return nil
}

func (r *SearchReport) datasource(w io.Writer, p painter, ds types.DataSource, matches []finder.Match) {
	heading(w, p, "Datasource »"+ds.Name()+"«", styleTitle, "=")
	fmt.Fprintln(w)
	fmt.Fprint(w, bibliography(p, [][2]string{
		{"Name", ds.Name()},
		{"Type", ds.Type()},
		{"UID", ds.UID()},
		{"URL", r.datasourceURL(ds)},
	}))
	writeMatches(w, p, matches, "")
}

func (r *SearchReport) dashboard(w io.Writer, p painter, d *types.Dashboard, matches []finder.Match) {
	url := index.JoinURL(r.GrafanaURL, d.URL())
	heading(w, p, "Dashboard »"+itemName(d)+"«", styleTitle, "=")
	fmt.Fprintln(w)
	fmt.Fprint(w, bibliography(p, [][2]string{
		{"Title", d.Title()},
		{"Folder", d.FolderTitle()},
		{"UID", d.UID()},
		{"Created", fmt.Sprintf("at %s by %s", d.Created(), d.CreatedBy())},
		{"Updated", fmt.Sprintf("at %s by %s", d.Updated(), d.UpdatedBy())},
		{"Dashboard", url},
		{"Variables", url + "?editview=templating"},
	}))

	// Matches below a panel are grouped by that panel, everything else is global.
	var global []finder.Match
	var order []string
	byPanel := map[string][]finder.Match{}
	panels := map[string]map[string]any{}
	tree := d.Tree()
	for _, m := range matches {
		prefix, panel := enclosingPanel(tree, m.Path)
		if panel == nil {
			global = append(global, m)
			continue
		}
		if _, seen := byPanel[prefix]; !seen {
			order = append(order, prefix)
			panels[prefix] = panel
		}
		byPanel[prefix] = append(byPanel[prefix], m)
	}

	fmt.Fprintln(w)
	heading(w, p, "Global", styleSubsection, "-")
	writeMatches(w, p, global, "")

	for _, prefix := range order {
		panel := panels[prefix]
		id := panelID(panel)
		fmt.Fprintln(w)
		heading(w, p, "Panel »"+str(panel["title"])+"«", styleSubsection, "-")
		fmt.Fprint(w, bibliography(p, [][2]string{
			{"Id", id},
			{"Title", str(panel["title"])},
			{"Description", strings.TrimSpace(str(panel["description"]))},
			{"View", url + "?viewPanel=" + id},
			{"Edit", url + "?editPanel=" + id},
		}))
		fmt.Fprintln(w, "      Matches")
		writeMatches(w, p, byPanel[prefix], strings.Repeat(" ", 14))
	}
}

func (r *SearchReport) datasourceURL(ds types.DataSource) string {
	return index.JoinURL(r.GrafanaURL, "/datasources/edit/"+strconv.FormatInt(ds.ID(), 10))
}

func (r *SearchReport) tabular(w io.Writer, style string, result wtf.SearchResult) error {
	dsRows := make([][]string, 0, len(result.Datasources))
	for _, item := range result.Datasources {
		ds, ok := item.Data.(types.DataSource)
		if !ok {
			continue
		}
		dsRows = append(dsRows, []string{"Data Sources", ds.Name(), ds.Type(), r.datasourceURL(ds)})
	}
	renderTable(w, style, []string{"Type", "Name", "Data source type", "URL"}, dsRows)

	dbRows := make([][]string, 0, len(result.Dashboards))
	for _, item := range result.Dashboards {
		d, ok := item.Data.(*types.Dashboard)
		if !ok {
			continue
		}
		dbRows = append(dbRows, []string{
			"Dashboards", itemName(d), d.Title(), d.FolderTitle(), d.UID(),
			d.Created(), d.Updated(), d.CreatedBy(), d.UpdatedBy(),
			strings.Join(datasourceRefs(d), ","),
			index.JoinURL(r.GrafanaURL, d.URL()),
		})
	}
	renderTable(w, style, []string{
		"Type", "Name", "Title", "Folder", "UID", "Created", "Updated",
		"Created by", "Updated by", "Datasources", "URL",
	}, dbRows)
	return nil
}

func heading(w io.Writer, p painter, title, style, underline string) {
	fmt.Fprintln(w, p.paint(style, title))
	fmt.Fprintln(w, strings.Repeat(underline, len([]rune(title))))
}

func writeMatches(w io.Writer, p painter, matches []finder.Match, indent string) {
	for _, m := range matches {
		fmt.Fprintf(w, "%s- %s: %s\n", indent, p.paint(styleKey, m.Path), p.paint(styleMatch, strings.TrimSpace(matchText(m.Value))))
	}
}

func matchText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// enclosingPanel finds the innermost panel containing path.
func enclosingPanel(tree any, path finder.Path) (string, map[string]any) {
	for i := len(path) - 2; i >= 0; i-- {
		if path[i].IsIndex || path[i].Field != "panels" || !path[i+1].IsIndex {
			continue
		}
		prefix := path[:i+2]
		node, ok := finder.Resolve(tree, prefix)
		if !ok {
			return "", nil
		}
		panel, ok := node.(map[string]any)
		if !ok {
			return "", nil
		}
		return prefix.String(), panel
	}
	return "", nil
}

func itemName(d *types.Dashboard) string {
	if slug := d.Slug(); slug != "" {
		return slug
	}
	return "unknown"
}

func panelID(panel map[string]any) string {
	switch id := panel["id"].(type) {
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// datasourceRefs lists the distinct data source references anywhere in the dashboard.
func datasourceRefs(d *types.Dashboard) []string {
	seen := map[string]bool{}
	var refs []string
	var walk func(node any)
	walk = func(node any) {
		switch v := node.(type) {
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if k == "datasource" {
					if item, err := types.ParseDatasourceItem(v[k]); err == nil {
						if ref := item.String(); !seen[ref] {
							seen[ref] = true
							refs = append(refs, ref)
						}
					}
					continue
				}
				walk(v[k])
			}
		case []any:
			for _, c := range v {
				walk(c)
			}
		}
	}
	walk(d.Dashboard)
	return refs
}
