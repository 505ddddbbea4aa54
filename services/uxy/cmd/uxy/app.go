package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"uxy/pkg/bus"
	gos3 "uxy/pkg/s3"
	"uxy/pkg/telemetry"
	"uxy/services/appconfig"
	"uxy/services/blueprint"
	"uxy/services/chatbot"
	"uxy/services/cloud"
	"uxy/services/deployer"
	"uxy/services/environment"
	"uxy/services/uxy/internal/config"
)

// app holds the process-wide collaborators shared by every command.
type app struct {
	root  string
	stage string

	cfg      config.Config
	logger   zerolog.Logger
	shutdown func(context.Context) error
}

func (a *app) openStore(ctx context.Context) (blueprint.Store, error) {
	store, err := blueprint.Open(ctx, a.cfg.BlueprintURL, a.root)
	if err != nil {
		return nil, fmt.Errorf("open blueprint store: %w", err)
	}
	return store, nil
}

// region prefers AWS_REGION and falls back to aws:config in uxy.json.
func (a *app) region() string {
	if a.cfg.AWSRegion != "" {
		return a.cfg.AWSRegion
	}
	if cfg, err := appconfig.Load(a.root); err == nil {
		return cfg.AWS.Region
	}
	return ""
}

func (a *app) environmentOptions() environment.Options {
	return environment.Options{AgeIdentity: a.cfg.AgeIdentity}
}

func (a *app) chatFactory() deployer.ChatPlatformFactory {
	httpClient := &http.Client{
		Timeout:   15 * time.Second,
		Transport: telemetry.HTTPTransport(nil),
	}
	return func(token string) (deployer.ChatPlatform, error) {
		return chatbot.New(token, chatbot.Options{
			BaseURL:    a.cfg.GraphAPIURL,
			HTTPClient: httpClient,
			Logger:     a.logger,
		})
	}
}

func (a *app) functionUpdater(ctx context.Context, clients *cloud.Clients) (*cloud.FunctionUpdater, error) {
	var uploader cloud.ArtifactUploader
	if a.cfg.ArtifactBucket != "" {
		opts := gos3.OptionsFromEnv()
		if region := a.region(); region != "" {
			opts.Region = region
		}
		client, err := gos3.NewClient(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		uploader = client
	}

	updater, err := cloud.NewFunctionUpdater(clients.Lambda, uploader, a.cfg.ArtifactBucket, a.logger)
	if err != nil {
		return nil, err
	}
	updater.WaitTimeout = 2 * time.Minute
	return updater, nil
}

// publisher connects to NATS when configured. Event delivery is best effort:
// a broker that cannot be reached is logged and skipped.
func (a *app) publisher() (deployer.Publisher, func()) {
	if a.cfg.NATSURL == "" {
		return nil, func() {}
	}

	b, err := bus.New(a.cfg.NATSURL)
	if err != nil {
		a.logger.Warn().Err(err).Msg("connect to nats, deployment events disabled")
		return nil, func() {}
	}
	if err := b.EnsureStream(deployer.EventStream, deployer.EventSubjects()...); err != nil {
		a.logger.Warn().Err(err).Msg("ensure deployment event stream")
	}
	return b, b.Close
}

func (a *app) pushMetrics(ctx context.Context, metrics *telemetry.Metrics) {
	if a.cfg.PushgatewayURL == "" {
		return
	}
	if err := metrics.Push(ctx, a.cfg.PushgatewayURL, serviceName); err != nil {
		a.logger.Warn().Err(err).Msg("push metrics")
	}
}
