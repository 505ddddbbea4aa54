package config

import (
	"context"
	"testing"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.BlueprintURL != "file://.uxy/blueprint.yaml" {
		t.Fatalf("BlueprintURL = %q", cfg.BlueprintURL)
	}
	if cfg.GraphAPIURL != "https://graph.facebook.com/v2.6" {
		t.Fatalf("GraphAPIURL = %q", cfg.GraphAPIURL)
	}
	if cfg.LogLevel != "info" || cfg.LogJSON {
		t.Fatalf("unexpected log settings: %q %v", cfg.LogLevel, cfg.LogJSON)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"UXY_BLUEPRINT_URL":   "s3://state/demo.json",
		"UXY_ARTIFACT_BUCKET": "artifacts",
		"UXY_LOG_JSON":        "true",
		"NATS_URL":            "nats://localhost:4222",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.BlueprintURL != "s3://state/demo.json" || cfg.ArtifactBucket != "artifacts" {
		t.Fatalf("unexpected storage settings: %+v", cfg)
	}
	if !cfg.LogJSON || cfg.NATSURL != "nats://localhost:4222" {
		t.Fatalf("unexpected settings: %+v", cfg)
	}
}

func TestLoadRejectsBadBool(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{"UXY_LOG_JSON": "maybe"}))
	if err == nil {
		t.Fatal("expected error for invalid bool")
	}
}
