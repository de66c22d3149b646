// Package index correlates dashboards with the data sources they use.
package index

import (
	"errors"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/pkg/dashboard"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

const allValue = "$__all"

// Indexer holds the cross-reference indexes of one scan. It is read-only
// once built.
type Indexer struct {
	logger     *zap.Logger
	grafanaURL string

	dashboards  []*types.Dashboard
	datasources []types.DataSource

	DashboardByUID    map[string]*types.Dashboard
	DatasourceByUID   map[string]types.DataSource
	DatasourceByName  map[string]types.DataSource
	DatasourceByIdent map[string]types.DataSource

	// DashboardDatasourceIndex maps a dashboard uid to the data source
	// references found in it, in first seen order.
	DashboardDatasourceIndex map[string][]types.DatasourceItem

	// DatasourceDashboardIndex maps a data source ident to the uids of the
	// dashboards using it.
	DatasourceDashboardIndex map[string][]string
}

type Option func(*Indexer)

// WithGrafanaURL is used to render absolute dashboard links.
func WithGrafanaURL(u string) Option {
	return func(ix *Indexer) { ix.grafanaURL = u }
}

func New(log *zap.Logger, dashboards []*types.Dashboard, datasources []types.DataSource, opts ...Option) *Indexer {
	ix := &Indexer{
		logger:                   log,
		datasources:              datasources,
		DashboardByUID:           make(map[string]*types.Dashboard, len(dashboards)),
		DatasourceByUID:          make(map[string]types.DataSource, len(datasources)),
		DatasourceByName:         make(map[string]types.DataSource, len(datasources)),
		DatasourceByIdent:        make(map[string]types.DataSource, len(datasources)),
		DashboardDatasourceIndex: make(map[string][]types.DatasourceItem, len(dashboards)),
		DatasourceDashboardIndex: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.indexDatasources()
	ix.indexDashboards(dashboards)
	return ix
}

func (ix *Indexer) indexDatasources() {
	for _, ds := range ix.datasources {
		if uid := ds.UID(); uid != "" {
			ix.DatasourceByUID[uid] = ds
		}
		if name := ds.Name(); name != "" {
			if _, exists := ix.DatasourceByName[name]; exists {
				ix.logger.Warn("Duplicate datasource name, keeping the first one", zap.String("name", name))
			} else {
				ix.DatasourceByName[name] = ds
			}
		}
		if ident := ds.Ident(); ident != "" {
			if prev, exists := ix.DatasourceByIdent[ident]; exists {
				ix.logger.Warn("Duplicate datasource identifier, keeping the first one",
					zap.String("ident", ident),
					zap.String("kept", prev.Name()),
					zap.String("dropped", ds.Name()))
			} else {
				ix.DatasourceByIdent[ident] = ds
			}
		}
	}
}

func (ix *Indexer) indexDashboards(dashboards []*types.Dashboard) {
	for _, d := range dashboards {
		uid := d.UID()
		if uid == "" {
			ix.logger.Warn("Skipping dashboard without uid", zap.String("title", d.Title()))
			continue
		}
		if _, exists := ix.DashboardByUID[uid]; !exists {
			ix.dashboards = append(ix.dashboards, d)
		}
		ix.DashboardByUID[uid] = d
	}
	sort.SliceStable(ix.dashboards, func(i, j int) bool {
		return ix.dashboards[i].UID() < ix.dashboards[j].UID()
	})

	for _, d := range ix.dashboards {
		uid := d.UID()
		items := ix.collectItems(ix.DashboardByUID[uid])
		ix.DashboardDatasourceIndex[uid] = items
		for _, item := range items {
			if item.IsBuiltin() {
				continue
			}
			ident := ix.identOf(item)
			if !slices.Contains(ix.DatasourceDashboardIndex[ident], uid) {
				ix.DatasourceDashboardIndex[ident] = append(ix.DatasourceDashboardIndex[ident], uid)
			}
		}
	}
}

// itemSet is an ordered set of data source references.
type itemSet struct {
	seen  map[types.DatasourceItem]struct{}
	items []types.DatasourceItem
}

func (s *itemSet) add(item types.DatasourceItem) {
	if s.seen == nil {
		s.seen = make(map[types.DatasourceItem]struct{})
	}
	if _, ok := s.seen[item]; ok {
		return
	}
	s.seen[item] = struct{}{}
	s.items = append(s.items, item)
}

func (ix *Indexer) collectItems(d *types.Dashboard) []types.DatasourceItem {
	set := &itemSet{}
	for _, panel := range dashboard.Panels(d) {
		ix.addRaw(set, d, panel["datasource"])
		for _, t := range asList(panel["targets"]) {
			if target, ok := t.(map[string]any); ok {
				ix.addRaw(set, d, target["datasource"])
			}
		}
	}
	for _, a := range d.Annotations() {
		if annotation, ok := a.(map[string]any); ok {
			ix.addRaw(set, d, annotation["datasource"])
		}
	}
	for _, v := range d.Templating() {
		variable, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if variable["type"] == "datasource" {
			for _, item := range ix.resolveVariable(d, variable) {
				set.add(item)
			}
			continue
		}
		ix.addRaw(set, d, variable["datasource"])
	}
	if set.items == nil {
		return []types.DatasourceItem{}
	}
	return set.items
}

func (ix *Indexer) addRaw(set *itemSet, d *types.Dashboard, raw any) {
	if raw == nil {
		return
	}
	item, err := types.ParseDatasourceItem(raw)
	if err != nil {
		if !errors.Is(err, types.ErrEmptyDatasource) {
			ix.logger.Warn("Skipping datasource reference", zap.String("dashboard", d.UID()), zap.Error(err))
		}
		return
	}
	// Variables are resolved through the templating section.
	if item.IsVariable() {
		return
	}
	set.add(item)
}

// resolveVariable returns the data sources selected by a template variable
// of type "datasource".
func (ix *Indexer) resolveVariable(d *types.Dashboard, variable map[string]any) []types.DatasourceItem {
	current, _ := variable["current"].(map[string]any)
	var idents []string
	switch v := current["value"].(type) {
	case string:
		idents = append(idents, v)
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				idents = append(idents, s)
			}
		}
	}

	pluginID, _ := variable["query"].(string)
	var items []types.DatasourceItem
	for _, ident := range idents {
		switch {
		case ident == "":
			continue
		case ident == allValue || ident == "__all":
			for _, ds := range ix.datasources {
				if pluginID != "" && ds.Type() == pluginID {
					items = append(items, itemOf(ds))
				}
			}
			continue
		}

		ds, ok := ix.DatasourceByUID[ident]
		if !ok {
			ds, ok = ix.DatasourceByName[ident]
		}
		if !ok {
			ix.logger.Warn("Unable to resolve datasource of template variable",
				zap.String("dashboard", d.UID()),
				zap.Any("variable", variable["name"]),
				zap.String("value", ident))
			continue
		}
		items = append(items, itemOf(ds))
	}
	return items
}

// Resolve looks up the data source a reference points to. The uid is tried
// as uid, then as name. The name is tried as name, then as uid.
func (ix *Indexer) Resolve(item types.DatasourceItem) (types.DataSource, bool) {
	if item.UID != "" {
		if ds, ok := ix.DatasourceByUID[item.UID]; ok {
			return ds, true
		}
		if ds, ok := ix.DatasourceByName[item.UID]; ok {
			return ds, true
		}
	}
	if item.Name != "" {
		if ds, ok := ix.DatasourceByName[item.Name]; ok {
			return ds, true
		}
		if ds, ok := ix.DatasourceByUID[item.Name]; ok {
			return ds, true
		}
	}
	return nil, false
}

// identOf is the bucket key of a reference in DatasourceDashboardIndex.
func (ix *Indexer) identOf(item types.DatasourceItem) string {
	if ds, ok := ix.Resolve(item); ok {
		return ds.Ident()
	}
	return item.Ident()
}

// Dashboards returns the indexed dashboards ordered by uid.
func (ix *Indexer) Dashboards() []*types.Dashboard {
	return ix.dashboards
}

func itemOf(ds types.DataSource) types.DatasourceItem {
	return types.DatasourceItem{UID: ds.UID(), Name: ds.Name(), Type: ds.Type(), URL: ds.URL()}
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}
