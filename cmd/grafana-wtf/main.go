package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/grafana-toolbox/grafana-wtf/internal/commands"
)

func main() {
	global := &commands.GlobalFlags{Out: os.Stdout}
	app := commands.NewApplication(global)

	kingpin.MustParse(app.Parse(os.Args[1:]))

	if global.Logger != nil {
		_ = global.Logger.Sync()
	}
}
