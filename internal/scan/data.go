package scan

import (
	"sort"
	"sync"

	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

// Data is the in-memory model one scan produces. Dashboards may be
// appended from several goroutines.
type Data struct {
	mu sync.Mutex

	Datasources   []types.DataSource
	DashboardList []types.DashboardSummary
	Dashboards    []*types.Dashboard
}

func (d *Data) AppendDashboard(dashboard *types.Dashboard) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Dashboards = append(d.Dashboards, dashboard)
}

// Sort orders dashboards and summaries by uid and data sources by name.
func (d *Data) Sort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	sort.SliceStable(d.Dashboards, func(i, j int) bool {
		return d.Dashboards[i].UID() < d.Dashboards[j].UID()
	})
	sort.SliceStable(d.DashboardList, func(i, j int) bool {
		return d.DashboardList[i].UID < d.DashboardList[j].UID
	})
}
