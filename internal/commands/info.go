package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/grafana-toolbox/grafana-wtf/internal/report"
	"github.com/grafana-toolbox/grafana-wtf/internal/version"
)

// InfoCommand reports about the Grafana instance as a whole.
type InfoCommand struct {
	global *GlobalFlags
}

func (c *InfoCommand) Register(app *kingpin.Application, global *GlobalFlags) {
	c.global = global
	app.Command("info", "Display version and statistics of the Grafana instance.").Action(c.run)
}

func (c *InfoCommand) run(_ *kingpin.ParseContext) error {
	f, err := c.global.Format(report.YAML)
	if err != nil {
		return err
	}
	engine, err := c.global.Engine()
	if err != nil {
		return err
	}
	ctx := context.Background()
	engine.Scan(ctx)

	info, err := engine.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to inquire Grafana: %w", err)
	}
	return report.Write(c.global.Out, f, info)
}

// PluginsCommand lists the installed plugins.
type PluginsCommand struct {
	global *GlobalFlags
}

func (c *PluginsCommand) Register(app *kingpin.Application, global *GlobalFlags) {
	c.global = global
	cmd := app.Command("plugins", "Inspect installed plugins.")
	cmd.Command("list", "List installed plugins.").Default().Action(c.list)
	cmd.Command("status", "Run the health check of each plugin.").Action(c.status)
}

func (c *PluginsCommand) list(_ *kingpin.ParseContext) error {
	f, err := c.global.Format(report.YAML)
	if err != nil {
		return err
	}
	engine, err := c.global.Engine()
	if err != nil {
		return err
	}
	plugins, err := engine.Plugins(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list plugins: %w", err)
	}
	return report.Write(c.global.Out, f, plugins)
}

func (c *PluginsCommand) status(_ *kingpin.ParseContext) error {
	f, err := c.global.Format(report.YAML)
	if err != nil {
		return err
	}
	engine, err := c.global.Engine()
	if err != nil {
		return err
	}
	statuses, err := engine.PluginsStatus(context.Background())
	if err != nil {
		return fmt.Errorf("failed to check plugins: %w", err)
	}
	return report.PluginStatuses(c.global.Out, f, statuses)
}

// ChannelsCommand lists notification channels and the dashboards using them.
type ChannelsCommand struct {
	global *GlobalFlags
	uid    string
}

func (c *ChannelsCommand) Register(app *kingpin.Application, global *GlobalFlags) {
	c.global = global
	cmd := app.Command("channels", "List notification channels and the dashboards referencing them.").Action(c.run)
	cmd.Arg("uid", "Show only the channel with this UID.").StringVar(&c.uid)
}

func (c *ChannelsCommand) run(_ *kingpin.ParseContext) error {
	f, err := c.global.Format(report.YAML)
	if err != nil {
		return err
	}
	engine, err := c.global.Engine()
	if err != nil {
		return err
	}
	ctx := context.Background()
	engine.ScanDashboards(ctx, c.global.Config.Dashboards)

	channels, err := engine.Channels(ctx, c.uid)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}
	return report.Write(c.global.Out, f, channels)
}

// CatalogCommand ranks dashboards by keywords.
type CatalogCommand struct {
	global *GlobalFlags
	query  string
	limit  int
}

func (c *CatalogCommand) Register(app *kingpin.Application, global *GlobalFlags) {
	c.global = global
	cmd := app.Command("catalog", "Find dashboards by keywords, ranked by relevance.").Action(c.run)
	cmd.Arg("query", "Keywords matched against title, tags, panel titles and descriptions.").Required().StringVar(&c.query)
	cmd.Flag("limit", "Maximum number of hits.").Default("10").IntVar(&c.limit)
}

func (c *CatalogCommand) run(_ *kingpin.ParseContext) error {
	f, err := c.global.Format(report.YAML)
	if err != nil {
		return err
	}
	engine, err := c.global.Engine()
	if err != nil {
		return err
	}
	engine.ScanDashboards(context.Background(), c.global.Config.Dashboards)

	hits, err := engine.Catalog(c.query, c.limit)
	if err != nil {
		return fmt.Errorf("catalog search failed: %w", err)
	}
	return report.CatalogHits(c.global.Out, f, hits)
}

// VersionCommand prints build information.
type VersionCommand struct {
	global *GlobalFlags
}

func (c *VersionCommand) Register(app *kingpin.Application, global *GlobalFlags) {
	c.global = global
	app.Command("version", "Get the version of the tool.").Action(c.run)
}

func (c *VersionCommand) run(_ *kingpin.ParseContext) error {
	_, err := fmt.Fprintln(c.global.Out, version.Print("grafana-wtf"))
	return err
}
