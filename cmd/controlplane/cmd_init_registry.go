package main

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/thedatagata/control-plane/internal/catalog"
)

// cmdInitRegistry loads the built-in connector catalog into the Blueprint
// Registry table, failing fast on any fingerprint collision.
type cmdInitRegistry struct {
	Log    LogConfig    `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Target TargetConfig `group:"Warehouse" namespace:"warehouse" env-namespace:"WAREHOUSE"`
}

func (cmd *cmdInitRegistry) Execute(_ []string) error {
	initLog(cmd.Log)
	ctx := context.Background()

	platform, err := buildPlatform(ctx, cmd.Target)
	if err != nil {
		return err
	}
	defer platform.Warehouse.Close()

	if err := platform.Registry.Initialize(ctx, catalog.New()); err != nil {
		return err
	}
	log.Info("blueprint registry initialized from built-in catalog")
	return nil
}
