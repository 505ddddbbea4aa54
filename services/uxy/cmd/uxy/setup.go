package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"uxy/pkg/render"
	"uxy/services/appconfig"
	"uxy/services/blueprint"
	"uxy/services/changecontrol"
	"uxy/services/cloud"
)

type setupOptions struct {
	name          string
	description   string
	runtime       string
	region        string
	handler       string
	pageToken     string
	stages        []string
	skipProvision bool
}

func newSetupCommand(a *app) *cobra.Command {
	var opts setupOptions

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Scaffold a project and provision its cloud resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runSetup(ctx, cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Application name (defaults to the project directory name)")
	cmd.Flags().StringVar(&opts.description, "description", "", "Greeting text shown by the chatbot")
	cmd.Flags().StringVar(&opts.runtime, "runtime", "python3.12", "Function runtime")
	cmd.Flags().StringVar(&opts.region, "region", "us-east-1", "AWS region written to a new uxy.json")
	cmd.Flags().StringVar(&opts.handler, "handler", "", "Function handler (defaults by runtime)")
	cmd.Flags().StringVar(&opts.pageToken, "page-token", "", "Page access token written to new stage environment files")
	cmd.Flags().StringSliceVar(&opts.stages, "stages", []string{"dev", "prod"}, "Stages created in a new uxy.json")
	cmd.Flags().BoolVar(&opts.skipProvision, "skip-provision", false, "Only write missing project files")
	return cmd
}

func runSetup(ctx context.Context, cmd *cobra.Command, a *app, opts setupOptions) error {
	w := cmd.OutOrStdout()

	name := opts.name
	if name == "" {
		abs, err := filepath.Abs(a.root)
		if err != nil {
			return err
		}
		name = filepath.Base(abs)
	}
	if len(opts.stages) == 0 {
		return errors.New("at least one stage is required")
	}
	stage := a.stage
	if stage == "" {
		stage = opts.stages[0]
	}

	engine, err := render.New()
	if err != nil {
		return err
	}
	created, err := scaffold(a.root, engine, render.Project{
		Name:        name,
		Description: opts.description,
		Runtime:     opts.runtime,
		Stage:       stage,
		Region:      opts.region,
		Stages:      opts.stages,
	}, opts.pageToken)
	if err != nil {
		return err
	}
	for _, path := range created {
		fmt.Fprintf(w, "==> Created %s\n", path)
	}
	if opts.skipProvision {
		return nil
	}

	cfg, err := appconfig.Load(a.root)
	if err != nil {
		return err
	}
	stage = cfg.ResolveStage(a.stage)
	if err := appconfig.Validate(cfg, stage); err != nil {
		return err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	existing, err := store.Load(ctx, cfg.Name)
	switch {
	case err == nil:
		return fmt.Errorf("%s is already set up (deployment #%d), use uxy deploy", cfg.Name, existing.DeploymentCount)
	case !errors.Is(err, blueprint.ErrNotFound):
		return err
	}

	if err := appconfig.ReplaceFiles(a.root, cfg, stage, a.logger); err != nil {
		return err
	}

	control, err := changecontrol.New(a.root, changecontrol.DefaultSourceDir)
	if err != nil {
		return err
	}
	files, err := control.TrackedFiles()
	if err != nil {
		return err
	}
	art, err := cloud.Package(ctx, a.root, changecontrol.DefaultSourceDir, files)
	if err != nil {
		return err
	}

	region := a.region()
	clients, err := cloud.LoadClients(ctx, region)
	if err != nil {
		return err
	}
	provisioner, err := cloud.NewProvisioner(clients.DynamoDB, clients.IAM, clients.Lambda, clients.APIGateway, a.logger)
	if err != nil {
		return err
	}

	handler := opts.handler
	if handler == "" {
		handler = defaultHandler(cfg.Runtime)
	}
	fmt.Fprintf(w, "==> Provisioning %s for stage %s\n", cfg.Name, stage)
	res, err := provisioner.Provision(ctx, cloud.ProvisionRequest{
		App:      cfg.Name,
		Stage:    stage,
		Runtime:  cfg.Runtime,
		Handler:  handler,
		Artifact: art,
	})
	if err != nil {
		return err
	}

	bp := blueprint.New(cfg.Name, region)
	bp.Stage = stage
	bp.DynamoDBName = res.TableName
	bp.IAMRoleARN = res.RoleARN
	bp.LambdaName = res.FunctionName
	bp.LambdaARN = res.FunctionARN
	bp.APIID = res.APIID
	bp.InvokeURL = res.InvokeURL
	if err := store.Save(ctx, bp); err != nil {
		return fmt.Errorf("save blueprint: %w", err)
	}

	fmt.Fprintf(w, "==> Setup complete, webhook url: %s\n", res.InvokeURL)
	fmt.Fprintln(w, "==> Run uxy deploy to push the chatbot profile")
	return nil
}
