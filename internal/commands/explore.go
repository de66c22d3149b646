package commands

import (
	"context"

	"github.com/alecthomas/kingpin/v2"

	"github.com/grafana-toolbox/grafana-wtf/internal/index"
	"github.com/grafana-toolbox/grafana-wtf/internal/report"
)

// ExploreCommand reports the relations between dashboards and data sources.
type ExploreCommand struct {
	global      *GlobalFlags
	dataDetails bool
	queriesOnly bool
}

func (c *ExploreCommand) Register(app *kingpin.Application, global *GlobalFlags) {
	c.global = global
	cmd := app.Command("explore", "Explore data sources and dashboards.")
	cmd.Command("datasources", "Show used and unused data sources.").Action(c.datasources)
	dashboards := cmd.Command("dashboards", "Show data sources of each dashboard, including missing ones.").Action(c.dashboards)
	dashboards.Flag("data-details", "Include annotations, panel targets and template variables.").BoolVar(&c.dataDetails)
	dashboards.Flag("queries-only", "Reduce data details to query expressions.").BoolVar(&c.queriesOnly)
}

func (c *ExploreCommand) datasources(_ *kingpin.ParseContext) error {
	f, err := c.global.Format(report.YAML)
	if err != nil {
		return err
	}
	engine, err := c.global.Engine()
	if err != nil {
		return err
	}
	engine.Scan(context.Background())

	exploration := engine.ExploreDatasources()
	if f.Kind == report.Tree {
		return report.DatasourceTree(c.global.Out, engine.GrafanaURL(), exploration)
	}
	return report.Write(c.global.Out, f, exploration)
}

func (c *ExploreCommand) dashboards(_ *kingpin.ParseContext) error {
	f, err := c.global.Format(report.YAML)
	if err != nil {
		return err
	}
	engine, err := c.global.Engine()
	if err != nil {
		return err
	}
	engine.Scan(context.Background())

	explorations := engine.ExploreDashboards(index.ExploreOptions{
		Details:     c.dataDetails || c.queriesOnly,
		QueriesOnly: c.queriesOnly,
	})
	if f.Kind == report.Tree {
		return report.DashboardTree(c.global.Out, engine.GrafanaURL(), explorations)
	}
	return report.Write(c.global.Out, f, explorations)
}
