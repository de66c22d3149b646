package wtf

import (
	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/pkg/finder"
)

type SearchMeta struct {
	Matches []finder.Match `json:"matches,omitempty"`
}

type SearchItem struct {
	Meta SearchMeta `json:"meta"`
	Data any        `json:"data"`
}

type SearchResult struct {
	Datasources []SearchItem `json:"datasources"`
	Dashboards  []SearchItem `json:"dashboards"`
}

// Search looks for expression in all data sources and dashboards. An empty
// expression selects every item without match annotations.
func (e *Engine) Search(expression string) SearchResult {
	e.logger.Info("Searching Grafana", zap.String("url", e.grafanaURL), zap.String("expression", expression))
	data := e.Data()

	result := SearchResult{Datasources: []SearchItem{}, Dashboards: []SearchItem{}}

	e.logger.Debug("Searching data sources")
	for _, ds := range data.Datasources {
		if item, ok := e.searchItem(expression, map[string]any(ds), ds); ok {
			result.Datasources = append(result.Datasources, item)
		}
	}

	e.logger.Debug("Searching dashboards")
	for _, d := range data.Dashboards {
		if item, ok := e.searchItem(expression, d.Tree(), d); ok {
			result.Dashboards = append(result.Dashboards, item)
		}
	}
	return result
}

func (e *Engine) searchItem(expression string, tree any, data any) (SearchItem, bool) {
	if expression == "" {
		return SearchItem{Data: data}, true
	}
	matches := e.finder.Find(expression, tree)
	if len(matches) == 0 {
		return SearchItem{}, false
	}
	return SearchItem{Meta: SearchMeta{Matches: matches}, Data: data}, true
}
