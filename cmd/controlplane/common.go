package main

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/thedatagata/control-plane/internal/engine"
	"github.com/thedatagata/control-plane/internal/factory"
	"github.com/thedatagata/control-plane/internal/ingest"
	"github.com/thedatagata/control-plane/internal/modelbuild"
	"github.com/thedatagata/control-plane/internal/observability"
	"github.com/thedatagata/control-plane/internal/orchestrator"
	"github.com/thedatagata/control-plane/internal/registry"
	"github.com/thedatagata/control-plane/internal/scaffold"
	"github.com/thedatagata/control-plane/internal/sqlgen"
	"github.com/thedatagata/control-plane/internal/tenants"
	"github.com/thedatagata/control-plane/internal/unpack"
	"github.com/thedatagata/control-plane/internal/warehouse"

	"github.com/thedatagata/control-plane/internal/catalog"
)

// TargetConfig selects and configures the warehouse a run materializes
// against, and everything that depends on that choice: where generated SQL
// artifacts land, and where the Tenants Manifest Store lives.
type TargetConfig struct {
	Target       string `long:"target" env:"CONTROL_PLANE_TARGET" default:"sandbox" choice:"sandbox" choice:"dev" description:"Warehouse target to materialize against"`
	SandboxPath  string `long:"sandbox-path" env:"SANDBOX_PATH" default:"control-plane.sandbox.db" description:"SQLite file path for the sandbox target"`
	EtcdEndpoint string `long:"etcd-endpoint" env:"ETCD_ENDPOINT" default:"127.0.0.1:2379" description:"Tenants Manifest Store etcd endpoint"`
	ArtifactDir  string `long:"artifact-dir" env:"ARTIFACT_DIR" default:"./artifacts" description:"Local directory generated SQL artifacts are persisted to on the sandbox target"`
	GCSBucket    string `long:"gcs-bucket" env:"GCS_ARTIFACT_BUCKET" description:"GCS bucket generated SQL artifacts are persisted to on the dev target"`
}

// Platform is every long-lived component a command needs, built once from
// a TargetConfig.
type Platform struct {
	Warehouse     warehouse.Client
	Tenants       *tenants.Store
	Registry      *registry.Registry
	Scaffolder    *scaffold.Scaffolder
	EngineReg     *engine.Registry
	Factory       *factory.Resolver
	Observability *observability.Collector
	jsonDialect   unpack.Dialect
}

// ModelBuilder builds the production orchestrator.ModelBuilder bound to
// this platform's components.
func (p *Platform) ModelBuilder() orchestrator.ModelBuilder {
	return modelbuild.New(p.Warehouse, p.Registry, p.Factory, p.EngineReg, p.Tenants, p.jsonDialect)
}

// Ingestor builds the production orchestrator.Ingestor: a subprocess
// adapter that looks up each source platform's "{source}-ingest" binary
// on $PATH.
func (p *Platform) Ingestor() orchestrator.Ingestor {
	return ingest.New(nil)
}

func buildPlatform(ctx context.Context, cfg TargetConfig) (*Platform, error) {
	target := warehouse.Target(cfg.Target)
	wc, err := warehouse.OpenTarget(ctx, target, cfg.SandboxPath, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("opening %s warehouse: %w", cfg.Target, err)
	}

	reg, err := registry.New(wc)
	if err != nil {
		return nil, fmt.Errorf("building blueprint registry: %w", err)
	}
	if err := reg.Initialize(ctx, catalog.New()); err != nil {
		return nil, fmt.Errorf("initializing blueprint registry: %w", err)
	}

	sink, err := buildArtifactSink(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sc := scaffold.New(wc, reg, sink)

	etcdClient, err := clientv3.New(clientv3.Config{Endpoints: []string{cfg.EtcdEndpoint}})
	if err != nil {
		return nil, fmt.Errorf("connecting to etcd at %s: %w", cfg.EtcdEndpoint, err)
	}
	store := tenants.NewStore(etcdClient, "")

	var gen *sqlgen.Generator
	var jsonDialect unpack.Dialect
	switch target {
	case warehouse.TargetDev:
		gen = sqlgen.PostgresFamilyDialect()
		jsonDialect = unpack.PostgresJSONDialect()
	default:
		gen = sqlgen.SQLiteDialect()
		jsonDialect = unpack.SQLiteJSONDialect()
	}
	engineReg := engine.NewRegistry()
	resolver := factory.New(engineReg, gen)

	obs := observability.New(wc, prometheus.NewRegistry())
	if err := obs.EnsureTables(ctx); err != nil {
		return nil, fmt.Errorf("ensuring observability tables: %w", err)
	}

	log.WithField("target", cfg.Target).Info("control plane warehouse target ready")
	return &Platform{
		Warehouse: wc, Tenants: store, Registry: reg, Scaffolder: sc,
		EngineReg: engineReg, Factory: resolver, Observability: obs,
		jsonDialect: jsonDialect,
	}, nil
}

func buildArtifactSink(ctx context.Context, cfg TargetConfig) (scaffold.ArtifactSink, error) {
	if cfg.Target != string(warehouse.TargetDev) || cfg.GCSBucket == "" {
		return scaffold.NewLocalArtifactSink(cfg.ArtifactDir)
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("building GCS artifact client: %w", err)
	}
	return scaffold.NewGCSArtifactSink(client, cfg.GCSBucket, ""), nil
}

func must(err error, message string) {
	if err != nil {
		log.WithError(err).Fatal(message)
	}
}
