package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the uxy CLI.
type Config struct {
	BlueprintURL   string `env:"UXY_BLUEPRINT_URL,default=file://.uxy/blueprint.yaml"`
	ArtifactBucket string `env:"UXY_ARTIFACT_BUCKET"`
	GraphAPIURL    string `env:"UXY_GRAPH_API_URL,default=https://graph.facebook.com/v2.6"`
	AgeIdentity    string `env:"UXY_AGE_IDENTITY"`
	LogLevel       string `env:"UXY_LOG_LEVEL,default=info"`
	LogJSON        bool   `env:"UXY_LOG_JSON,default=false"`

	AWSRegion      string `env:"AWS_REGION"`
	NATSURL        string `env:"NATS_URL"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	PushgatewayURL string `env:"PROMETHEUS_PUSHGATEWAY_URL"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
