package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"

	"github.com/thedatagata/control-plane/internal/orchestrator"
)

// cmdOnboard runs one tenant through the full Registry-Driven Push pipeline:
// ingest each enabled source, scaffold its landed relations, build and
// compile the model DAG, and materialize it in two passes.
type cmdOnboard struct {
	Log      LogConfig    `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Target   TargetConfig `group:"Warehouse" namespace:"warehouse" env-namespace:"WAREHOUSE"`
	Tenant   string       `long:"tenant" required:"true" description:"Tenant slug to onboard"`
	Days     int          `long:"days" default:"7" description:"Number of days of history to ingest"`
	FailFast bool         `long:"fail-fast" description:"Abort remaining model levels as soon as any model fails"`
	Fanout   int          `long:"fanout" default:"4" description:"Maximum number of models materialized concurrently per dependency level"`
}

func (cmd *cmdOnboard) Execute(_ []string) error {
	initLog(cmd.Log)
	ctx := context.Background()

	platform, err := buildPlatform(ctx, cmd.Target)
	if err != nil {
		return err
	}
	defer platform.Warehouse.Close()

	orc := orchestrator.New(platform.Warehouse, platform.Tenants, platform.Scaffolder,
		platform.ModelBuilder(), platform.Observability, platform.Ingestor(), cmd.Fanout)

	run, err := orc.Onboard(ctx, cmd.Tenant, cmd.Days, cmd.FailFast, nil)
	if err != nil {
		log.WithError(err).WithField("tenant_slug", cmd.Tenant).Error("onboarding failed")
		return err
	}

	logger := log.WithFields(log.Fields{
		"tenant_slug":   cmd.Tenant,
		"invocation_id": run.InvocationID,
		"success":       run.Success(),
	})
	printSummary(run)
	if !run.Success() {
		logger.Warn("onboarding run completed with failures")
		return fmt.Errorf("onboarding run %s completed with failures", run.InvocationID)
	}
	logger.Info("onboarding run completed")
	return nil
}

// printSummary writes a one-line-per-node progress summary to stdout,
// colorized when attached to a terminal (color auto-detects and no-ops
// otherwise, e.g. when output is piped to a log aggregator).
func printSummary(run *orchestrator.RunResult) {
	ok := color.New(color.FgGreen).FprintlnFunc()
	fail := color.New(color.FgRed).FprintlnFunc()
	for _, n := range run.Nodes {
		line := fmt.Sprintf("  %-8s %s (%s)", n.Status, n.Name, n.Materialization)
		if n.Status == orchestrator.StatusSuccess {
			ok(os.Stdout, line)
		} else {
			fail(os.Stdout, line)
		}
	}
}
