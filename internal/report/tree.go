package report

import (
	"fmt"
	"io"

	"github.com/xlab/treeprint"

	"github.com/grafana-toolbox/grafana-wtf/internal/index"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

// DashboardTree renders explore dashboards output as a tree of dashboards,
// their data sources and the references that could not be resolved.
func DashboardTree(w io.Writer, grafanaURL string, explorations []index.DashboardExploration) error {
	tree := treeprint.NewWithRoot(grafanaURL)
	for _, ex := range explorations {
		branch := tree.AddMetaBranch(ex.Dashboard.UID, ex.Dashboard.Title)
		branch.AddMetaNode("url", ex.Dashboard.URL)
		if len(ex.Datasources) > 0 {
			used := branch.AddBranch("datasources")
			for _, ds := range ex.Datasources {
				used.AddMetaNode(ds.Type, fmt.Sprintf("%s (%s)", ds.Name, ds.UID))
			}
		}
		if len(ex.DatasourcesMissing) > 0 {
			missing := branch.AddBranch("datasources_missing")
			for _, ref := range ex.DatasourcesMissing {
				missing.AddNode(refString(ref))
			}
		}
		if ex.Details != nil {
			details := branch.AddBranch("details")
			details.AddMetaNode("queries", len(ex.Details.Queries))
			details.AddMetaNode("annotations", len(ex.Details.Annotations))
			details.AddMetaNode("templating", len(ex.Details.Templating))
		}
	}
	_, err := io.WriteString(w, tree.String())
	return err
}

// DatasourceTree renders explore datasources output, used ones with the
// dashboards referencing them.
func DatasourceTree(w io.Writer, grafanaURL string, exploration index.DatasourceExploration) error {
	tree := treeprint.NewWithRoot(grafanaURL)
	used := tree.AddBranch("used")
	for _, b := range exploration.Used {
		branch := used.AddMetaBranch(b.Datasource.Type, b.Datasource.Name)
		for _, d := range b.Dashboards {
			branch.AddMetaNode(d.UID, d.Title)
		}
	}
	unused := tree.AddBranch("unused")
	for _, b := range exploration.Unused {
		unused.AddMetaNode(b.Datasource.Type, b.Datasource.Name)
	}
	_, err := io.WriteString(w, tree.String())
	return err
}

func refString(ref types.DatasourceRef) string {
	deref := func(s *string) string {
		if s == nil {
			return "null"
		}
		return *s
	}
	return fmt.Sprintf("name=%s uid=%s type=%s", deref(ref.Name), deref(ref.UID), deref(ref.Type))
}
