package commands

import (
	"github.com/alecthomas/kingpin/v2"

	"github.com/grafana-toolbox/grafana-wtf/internal/version"
)

type command interface {
	Register(app *kingpin.Application, global *GlobalFlags)
}

// NewApplication assembles the command line interface around global.
func NewApplication(global *GlobalFlags) *kingpin.Application {
	app := kingpin.New("grafana-wtf", "Grafana WTF: search, explore and rewrite Grafana resources.")
	app.Version(version.Print("grafana-wtf"))
	app.HelpFlag.Short('h')
	global.Register(app)

	for _, c := range []command{
		&FindCommand{},
		&ReplaceCommand{},
		&LogCommand{},
		&ExploreCommand{},
		&InfoCommand{},
		&PluginsCommand{},
		&ChannelsCommand{},
		&CatalogCommand{},
		&VersionCommand{},
	} {
		c.Register(app, global)
	}
	return app
}
