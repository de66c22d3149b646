package index

import (
	"net/url"
	"sort"

	"github.com/grafana-toolbox/grafana-wtf/pkg/dashboard"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

type DatasourceInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
	UID  string `json:"uid"`
	URL  string `json:"url"`
}

type DashboardInfo struct {
	Title string `json:"title"`
	UID   string `json:"uid"`
	Path  string `json:"path"`
	URL   string `json:"url"`
}

type DatasourceBreakdown struct {
	Datasource DatasourceInfo  `json:"datasource"`
	Dashboards []DashboardInfo `json:"dashboards,omitempty"`
}

type DatasourceExploration struct {
	Used   []DatasourceBreakdown `json:"used"`
	Unused []DatasourceBreakdown `json:"unused"`
}

type Details struct {
	Queries     []map[string]any `json:"queries,omitempty"`
	Annotations []map[string]any `json:"annotations,omitempty"`
	Templating  []map[string]any `json:"templating,omitempty"`
}

func (d *Details) empty() bool {
	return len(d.Queries) == 0 && len(d.Annotations) == 0 && len(d.Templating) == 0
}

type DashboardExploration struct {
	Dashboard          DashboardInfo         `json:"dashboard"`
	Datasources        []DatasourceInfo      `json:"datasources,omitempty"`
	DatasourcesMissing []types.DatasourceRef `json:"datasources_missing,omitempty"`
	Details            *Details              `json:"details,omitempty"`
}

type ExploreOptions struct {
	// Details collects the nodes carrying data source references.
	Details bool
	// QueriesOnly reduces the details to query expressions.
	QueriesOnly bool
}

// ExploreDatasources partitions the data sources into used and unused
// ones, each sorted by name.
func (ix *Indexer) ExploreDatasources() DatasourceExploration {
	datasources := make([]types.DataSource, len(ix.datasources))
	copy(datasources, ix.datasources)
	sort.SliceStable(datasources, func(i, j int) bool {
		a, b := datasources[i], datasources[j]
		if a.SortKey() != b.SortKey() {
			return a.SortKey() < b.SortKey()
		}
		return a.UID() < b.UID()
	})

	result := DatasourceExploration{Used: []DatasourceBreakdown{}, Unused: []DatasourceBreakdown{}}
	for _, ds := range datasources {
		breakdown := DatasourceBreakdown{Datasource: datasourceInfo(ds)}
		for _, uid := range ix.DatasourceDashboardIndex[ds.Ident()] {
			breakdown.Dashboards = append(breakdown.Dashboards, ix.dashboardInfo(ix.DashboardByUID[uid]))
		}
		if len(breakdown.Dashboards) == 0 {
			result.Unused = append(result.Unused, breakdown)
		} else {
			result.Used = append(result.Used, breakdown)
		}
	}
	return result
}

// ExploreDashboards reports the data sources of every dashboard, split into
// existing and missing ones. Grafana's built-in data sources are never
// missing.
func (ix *Indexer) ExploreDashboards(opts ExploreOptions) []DashboardExploration {
	results := []DashboardExploration{}
	for _, d := range ix.dashboards {
		entry := DashboardExploration{Dashboard: ix.dashboardInfo(d)}

		seen := map[string]struct{}{}
		for _, item := range ix.DashboardDatasourceIndex[d.UID()] {
			ds, ok := ix.Resolve(item)
			if !ok {
				if !item.IsBuiltin() {
					entry.DatasourcesMissing = append(entry.DatasourcesMissing, item.Ref())
				}
				continue
			}
			if _, dup := seen[ds.Ident()]; dup {
				continue
			}
			seen[ds.Ident()] = struct{}{}
			entry.Datasources = append(entry.Datasources, datasourceInfo(ds))
		}

		if opts.Details {
			details := collectDetails(d, opts.QueriesOnly)
			if details.empty() {
				continue
			}
			entry.Details = details
		}
		results = append(results, entry)
	}
	return results
}

func collectDetails(d *types.Dashboard, queriesOnly bool) *Details {
	details := &Details{
		Queries:     dashboard.Queries(d),
		Annotations: dashboard.WithDatasource(d.Annotations()),
		Templating:  dashboard.WithDatasource(d.Templating()),
	}
	if queriesOnly {
		details.Queries = onlyQueries(details.Queries)
		details.Annotations = onlyQueries(details.Annotations)
		details.Templating = onlyQueries(details.Templating)
	}
	return details
}

func onlyQueries(nodes []map[string]any) []map[string]any {
	var out []map[string]any
	for _, node := range nodes {
		if q := dashboard.QueryFields(node); q != nil {
			out = append(out, q)
		}
	}
	return out
}

func datasourceInfo(ds types.DataSource) DatasourceInfo {
	return DatasourceInfo{Name: ds.Name(), Type: ds.Type(), UID: ds.UID(), URL: ds.URL()}
}

func (ix *Indexer) dashboardInfo(d *types.Dashboard) DashboardInfo {
	return DashboardInfo{
		Title: d.Title(),
		UID:   d.UID(),
		Path:  d.URL(),
		URL:   JoinURL(ix.grafanaURL, d.URL()),
	}
}

// JoinURL resolves path against base like a browser would.
func JoinURL(base, path string) string {
	if base == "" {
		return path
	}
	b, err := url.Parse(base)
	if err != nil {
		return path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return b.ResolveReference(ref).String()
}
