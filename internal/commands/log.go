package commands

import (
	"context"

	"github.com/alecthomas/kingpin/v2"

	"github.com/grafana-toolbox/grafana-wtf/internal/report"
)

// LogCommand lists dashboard edits, newest first.
type LogCommand struct {
	global *GlobalFlags
	uid    string
	number int
}

func (c *LogCommand) Register(app *kingpin.Application, global *GlobalFlags) {
	c.global = global
	cmd := app.Command("log", "Show the edit history of dashboards.").Action(c.run)
	cmd.Arg("uid", "Restrict to the dashboard with this UID.").StringVar(&c.uid)
	cmd.Flag("number", "Number of entries to show, 0 shows all.").Short('n').Default("0").IntVar(&c.number)
}

func (c *LogCommand) run(_ *kingpin.ParseContext) error {
	f, err := c.global.Format(report.JSON)
	if err != nil {
		return err
	}
	engine, err := c.global.Engine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	uids := c.global.Config.Dashboards
	if c.uid != "" {
		uids = []string{c.uid}
	}
	engine.ScanDashboards(ctx, uids)

	records := engine.Log(ctx, c.uid)
	if c.number > 0 && len(records) > c.number {
		records = records[:c.number]
	}
	r := &report.HistoryReport{Color: c.global.colored()}
	return r.Render(c.global.Out, f, records)
}
