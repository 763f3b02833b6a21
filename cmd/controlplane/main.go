package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/thedatagata/control-plane/internal/errkind"
)

func main() {
	parser := flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	addCmd(parser, "onboard", "Onboard a tenant through the push pipeline", `
Land a tenant's enabled sources, scaffold their blueprint-backed relations,
and materialize every intermediate and star-schema model the tenant's
enabled analytics domains require.
`, &cmdOnboard{})

	addCmd(parser, "init-registry", "Initialize the Connector Blueprint Registry", `
Load the built-in connector catalog into the blueprint registry table,
failing on any fingerprint collision between blueprints.
`, &cmdInitRegistry{})

	addCmd(parser, "serve", "Serve the onboarding and readiness HTTP API", `
Serve the control plane's HTTP surface: tenant onboarding and readiness
lookups, until signaled to exit.
`, &cmdServe{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.WithError(err).Error("command failed")
		os.Exit(errkind.ExitCode(err))
	}
}

func addCmd(to interface {
	AddCommand(string, string, string, interface{}) (*flags.Command, error)
}, name, short, long string, iface interface{}) *flags.Command {
	cmd, err := to.AddCommand(name, short, long, iface)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to add command %s: %v\n", name, err)
		os.Exit(1)
	}
	return cmd
}
