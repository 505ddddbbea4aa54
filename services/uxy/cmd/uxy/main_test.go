package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"uxy/internal/testutil"
	"uxy/pkg/render"
	"uxy/services/appconfig"
	"uxy/services/blueprint"
	"uxy/services/changecontrol"
	"uxy/services/cloud"
	"uxy/services/deployer"
	"uxy/services/environment"
	"uxy/services/planner"
)

func TestScaffoldCreatesMissingFiles(t *testing.T) {
	project := testutil.NewProject(t)
	engine, err := render.New()
	require.NoError(t, err)

	settings := render.Project{
		Name:        "demo-bot",
		Description: "A demo bot",
		Runtime:     "python3.12",
		Stage:       "dev",
		Region:      "us-east-1",
		Stages:      []string{"dev", "prod"},
	}
	created, err := scaffold(project.Root, engine, settings, "token-dev")
	require.NoError(t, err)
	require.Equal(t, []string{
		"src/env/environment.cfg",
		"src/env/environment.dev.cfg",
		"src/env/environment.prod.cfg",
		"uxy.json",
	}, created)

	cfg, err := appconfig.Load(project.Root)
	require.NoError(t, err)
	require.NoError(t, appconfig.Validate(cfg, "dev"))
	require.NoError(t, appconfig.ReplaceFiles(project.Root, cfg, "dev", zerolog.Nop()))

	env, err := environment.Load(project.Root, environment.Options{})
	require.NoError(t, err)
	require.Equal(t, "token-dev", env.PageToken)

	created, err = scaffold(project.Root, engine, settings, "other")
	require.NoError(t, err)
	require.Empty(t, created)
}

func TestScaffoldKeepsExistingConfig(t *testing.T) {
	project := testutil.NewProject(t)
	project.WriteFile("uxy.json", testutil.SampleConfig)
	engine, err := render.New()
	require.NoError(t, err)

	created, err := scaffold(project.Root, engine, render.Project{Name: "x", Runtime: "python3.12", Stage: "dev", Stages: []string{"dev"}}, "")
	require.NoError(t, err)
	require.NotContains(t, created, "uxy.json")
	require.Equal(t, testutil.SampleConfig, project.ReadFile("uxy.json"))
}

func TestDefaultHandler(t *testing.T) {
	require.Equal(t, "handler.handler", defaultHandler("python3.12"))
	require.Equal(t, "index.handler", defaultHandler("nodejs20.x"))
	require.Equal(t, "bootstrap", defaultHandler("provided.al2023"))
}

func TestPrintDeployReport(t *testing.T) {
	var buf bytes.Buffer
	printDeployReport(&buf, deployer.Report{
		DeploymentID: "id-1",
		App:          "demo-bot",
		Stage:        "dev",
		Decision:     changecontrol.Decision{Changed: true, Modified: []string{"uxy.json"}},
		Actions:      []planner.UpdateAction{planner.InitMenu, planner.InitURLWhitelist},
		Inert:        []planner.UpdateAction{planner.InitURLWhitelist},
		Count:        4,
		Duration:     1500 * time.Millisecond,
	})

	out := buf.String()
	require.Contains(t, out, "==> Changes: 0 added, 0 removed, 1 modified")
	require.Contains(t, out, "==> Chatbot actions: persistent_menu, url_whitelist")
	require.Contains(t, out, "==> Skipped by configuration: url_whitelist")
	require.Contains(t, out, "==> Deployment #4 finished in 1.5s")
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCommand()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.Subset(t, names, []string{"setup", "deploy", "plan", "status"})
}

type countingUpdater struct{ calls int }

func (c *countingUpdater) Update(context.Context, string, string, cloud.Artifact) (cloud.UpdateResult, error) {
	c.calls++
	return cloud.UpdateResult{Skipped: true}, nil
}

type memoryStore struct{ bp *blueprint.Blueprint }

func (m *memoryStore) Load(context.Context, string) (*blueprint.Blueprint, error) {
	return m.bp.Clone(), nil
}

func (m *memoryStore) Save(_ context.Context, bp *blueprint.Blueprint) error {
	m.bp = bp.Clone()
	return nil
}

type acceptingChat struct{}

func (acceptingChat) ValidateToken(context.Context) error              { return nil }
func (acceptingChat) InitGreeting(context.Context) error               { return nil }
func (acceptingChat) InitMenu(context.Context, any) error              { return nil }
func (acceptingChat) InitDescription(context.Context, string) error    { return nil }
func (acceptingChat) InitURLWhitelist(context.Context, []string) error { return nil }

func TestLazyFunctionsBuildsOnce(t *testing.T) {
	updater := &countingUpdater{}
	builds := 0
	lazy := &lazyFunctions{build: func(context.Context) (deployer.FunctionUpdater, error) {
		builds++
		return updater, nil
	}}
	require.Zero(t, builds)

	for range 2 {
		_, err := lazy.Update(context.Background(), "fn", "key", cloud.Artifact{})
		require.NoError(t, err)
	}
	require.Equal(t, 1, builds)
	require.Equal(t, 2, updater.calls)
}

func TestClientSetupFailureCancelsDeployment(t *testing.T) {
	project := testutil.NewSampleProject(t)
	bp := blueprint.New("demo-bot", "us-east-1")
	bp.LambdaName = "demo-bot-uxy-app-dev"
	store := &memoryStore{bp: bp}

	d, err := deployer.New(deployer.Options{
		Root:  project.Root,
		Stage: "dev",
		Store: store,
		Chat: func(string) (deployer.ChatPlatform, error) {
			return acceptingChat{}, nil
		},
		Functions: &lazyFunctions{build: func(context.Context) (deployer.FunctionUpdater, error) {
			return nil, errors.New("no aws credentials")
		}},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = d.Deploy(context.Background())
	var failure *deployer.Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, deployer.StateUpdateRemoteFunction, failure.State)
	require.Equal(t, deployer.KindRemote, failure.Kind)
	require.Zero(t, store.bp.DeploymentCount)
}
