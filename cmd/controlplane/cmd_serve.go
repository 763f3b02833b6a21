package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/thedatagata/control-plane/internal/httpapi"
	"github.com/thedatagata/control-plane/internal/orchestrator"
)

// cmdServe serves the control plane's onboarding and readiness HTTP API.
type cmdServe struct {
	Log          LogConfig    `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Target       TargetConfig `group:"Warehouse" namespace:"warehouse" env-namespace:"WAREHOUSE"`
	EnvFile      string        `long:"env-file" env:"ENV_FILE" default:".env" description:"Optional .env file loaded before reading configuration (sandbox/dev convenience)"`
	Addr         string        `long:"addr" env:"ADDR" default:":8080" description:"HTTP listen address"`
	RedisAddr    string        `long:"redis-addr" env:"REDIS_ADDR" default:"127.0.0.1:6379" description:"Readiness cache Redis address"`
	TokenSecret  string        `long:"token-secret" env:"PROVISIONING_TOKEN_SECRET" description:"HMAC secret signing provisioning tokens"`
	TokenTTL     time.Duration `long:"token-ttl" default:"24h" description:"Provisioning token lifetime"`
	ReadinessTTL time.Duration `long:"readiness-cache-ttl" default:"30s" description:"Readiness cache entry lifetime"`
	DefaultDays  int           `long:"default-days" default:"7" description:"Default ingestion window when a request omits one"`
	Fanout       int           `long:"fanout" default:"4" description:"Maximum number of models materialized concurrently per dependency level"`
}

func (cmd *cmdServe) Execute(_ []string) error {
	if err := godotenv.Load(cmd.EnvFile); err != nil {
		log.WithError(err).Debug("no .env file loaded")
	}
	initLog(cmd.Log)

	if cmd.TokenSecret == "" {
		return errRequired("--token-secret (or PROVISIONING_TOKEN_SECRET) is required")
	}

	ctx := context.Background()
	platform, err := buildPlatform(ctx, cmd.Target)
	if err != nil {
		return err
	}
	defer platform.Warehouse.Close()

	orc := orchestrator.New(platform.Warehouse, platform.Tenants, platform.Scaffolder,
		platform.ModelBuilder(), platform.Observability, platform.Ingestor(), cmd.Fanout)
	tokens := httpapi.NewTokenIssuer([]byte(cmd.TokenSecret), cmd.TokenTTL)
	rdb := redis.NewClient(&redis.Options{Addr: cmd.RedisAddr})
	cache := httpapi.NewReadinessCache(rdb, cmd.ReadinessTTL)

	server := httpapi.New(platform.Tenants, orc, tokens, cache, cmd.DefaultDays)

	log.WithField("addr", cmd.Addr).Info("serving control plane HTTP API")
	return http.ListenAndServe(cmd.Addr, server)
}

type errRequired string

func (e errRequired) Error() string { return string(e) }
