package version

import "fmt"

// Set at build time via -ldflags "-X ...version.Version=...".
var (
	Version  = "dev"
	Revision = "unknown"
)

func Print(app string) string {
	return fmt.Sprintf("%s, version %s (revision: %s)", app, Version, Revision)
}

func UserAgent() string {
	return "grafana-wtf/" + Version
}
