package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/grafana-toolbox/grafana-wtf/internal/report"
	"github.com/grafana-toolbox/grafana-wtf/internal/wtf"
)

// FindCommand searches data sources and dashboards for an expression.
type FindCommand struct {
	global     *GlobalFlags
	expression string
}

func (c *FindCommand) Register(app *kingpin.Application, global *GlobalFlags) {
	c.global = global
	cmd := app.Command("find", "Find dashboards and data sources containing an expression. Without an expression, list everything.").Action(c.run)
	cmd.Arg("expression", "Search expression, matched as a case sensitive substring.").StringVar(&c.expression)
}

func (c *FindCommand) run(_ *kingpin.ParseContext) error {
	f, err := c.global.Format(report.Text)
	if err != nil {
		return err
	}
	engine, err := c.global.Engine()
	if err != nil {
		return err
	}
	engine.Scan(context.Background())

	result := engine.Search(c.expression)
	r := &report.SearchReport{GrafanaURL: engine.GrafanaURL(), Verbose: c.global.verbose, Color: c.global.colored()}
	return r.Render(c.global.Out, f, c.expression, result)
}

// ReplaceCommand substitutes an expression within all selected dashboards.
type ReplaceCommand struct {
	global      *GlobalFlags
	expression  string
	replacement string
	dryRun      bool
}

func (c *ReplaceCommand) Register(app *kingpin.Application, global *GlobalFlags) {
	c.global = global
	cmd := app.Command("replace", "Replace an expression within the JSON of all selected dashboards.").Action(c.run)
	cmd.Arg("expression", "Text to search for.").Required().StringVar(&c.expression)
	cmd.Arg("replacement", "Text to substitute.").Required().StringVar(&c.replacement)
	cmd.Flag("dry-run", "Report what would change without saving dashboards.").BoolVar(&c.dryRun)
}

func (c *ReplaceCommand) run(_ *kingpin.ParseContext) error {
	f, err := c.global.Format(report.Text)
	if err != nil {
		return err
	}
	engine, err := c.global.Engine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	// Dashboards must be current before they are rewritten.
	engine.ClearCache()
	engine.ScanDashboards(ctx, c.global.Config.Dashboards)

	if f.Kind == report.Text {
		r := &report.SearchReport{GrafanaURL: engine.GrafanaURL(), Verbose: c.global.verbose, Color: c.global.colored()}
		if err := r.Render(c.global.Out, f, c.expression, engine.Search(c.expression)); err != nil {
			return err
		}
		fmt.Fprintln(c.global.Out)
	}

	outcomes, err := engine.Replace(ctx, c.expression, c.replacement, c.dryRun)
	if err != nil {
		return fmt.Errorf("replace failed: %w", err)
	}
	engine.ClearCache()

	c.global.Logger.Info("Replace finished",
		zap.String("message", wtf.ReplaceMessage(c.expression, c.replacement)),
		zap.Int("dashboards", len(outcomes)),
		zap.Bool("dry_run", c.dryRun))
	return report.ReplaceOutcomes(c.global.Out, f, outcomes)
}
