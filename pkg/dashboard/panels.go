// Package dashboard navigates the panel structure of Grafana dashboards.
package dashboard

import (
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

// PanelKey is attached to every collected query and describes the panel
// the query belongs to.
const PanelKey = "_panel"

// QueryKeys are the attribute names various data source plugins use for
// the query expression of a target.
var QueryKeys = []string{
	"expr",
	"expression",
	"query",
	"queryText",
	"rawSql",
	"rawQuery",
	"target",
	"measurement",
	"jql",
	"logQuery",
	"metric",
	"metricQuery",
	"sql",
	"statement",
}

// Panels flattens the panels of a dashboard depth first. Rows of the legacy
// schema and collapsed row panels contribute their nested panels.
func Panels(d *types.Dashboard) []map[string]any {
	var out []map[string]any
	for _, row := range rows(d) {
		out = flatten(out, getList(row, "panels"))
	}
	return flatten(out, d.Panels())
}

func rows(d *types.Dashboard) []map[string]any {
	var out []map[string]any
	if raw, ok := d.Dashboard["rows"].([]any); ok {
		for _, r := range raw {
			if m, ok := r.(map[string]any); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

func flatten(out []map[string]any, panels []any) []map[string]any {
	for _, p := range panels {
		panel, ok := p.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, panel)
		out = flatten(out, getList(panel, "panels"))
	}
	return out
}

// PanelInfo is the compact descriptor stored under PanelKey.
func PanelInfo(panel map[string]any) map[string]any {
	return map[string]any{
		"id":    panel["id"],
		"title": panel["title"],
		"type":  panel["type"],
	}
}

// Queries returns a copy of every target of every panel, annotated with
// the descriptor of its panel.
func Queries(d *types.Dashboard) []map[string]any {
	var out []map[string]any
	for _, panel := range Panels(d) {
		for _, t := range getList(panel, "targets") {
			target, ok := t.(map[string]any)
			if !ok {
				continue
			}
			query := make(map[string]any, len(target)+1)
			for k, v := range target {
				query[k] = v
			}
			if _, ok := query["datasource"]; !ok && panel["datasource"] != nil {
				query["datasource"] = panel["datasource"]
			}
			query[PanelKey] = PanelInfo(panel)
			out = append(out, query)
		}
	}
	return out
}

// WithDatasource returns the entries of list which carry a data source
// reference, e.g. annotations.list or templating.list.
func WithDatasource(list []any) []map[string]any {
	var out []map[string]any
	for _, e := range list {
		entry, ok := e.(map[string]any)
		if !ok || entry["datasource"] == nil {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// QueryFields keeps the query expression attributes of node and the panel
// descriptor. It returns nil if node carries no query expression.
func QueryFields(node map[string]any) map[string]any {
	var out map[string]any
	for _, key := range QueryKeys {
		v, ok := node[key]
		if !ok || empty(v) {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[key] = v
	}
	if out != nil {
		if panel, ok := node[PanelKey]; ok {
			out[PanelKey] = panel
		}
	}
	return out
}

// empty reports values which do not carry an expression. InfluxQL targets
// use a boolean rawQuery flag, which is dropped here.
func empty(v any) bool {
	switch x := v.(type) {
	case nil, bool:
		return true
	case string:
		return x == ""
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

func getList(m map[string]any, key string) []any {
	v, _ := m[key].([]any)
	return v
}
