package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"uxy/pkg/telemetry"
	"uxy/services/cloud"
	"uxy/services/deployer"
	"uxy/services/planner"
)

func newDeployCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the function and push chatbot changes for a stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			publisher, closePublisher := a.publisher()
			defer closePublisher()
			metrics := telemetry.NewMetrics()
			defer a.pushMetrics(context.WithoutCancel(ctx), metrics)

			d, err := deployer.New(deployer.Options{
				Root:        a.root,
				Stage:       a.stage,
				Store:       store,
				Chat:        a.chatFactory(),
				Functions:   &lazyFunctions{build: a.buildFunctionUpdater},
				Publisher:   publisher,
				Metrics:     metrics,
				Environment: a.environmentOptions(),
				Logger:      a.logger,
			})
			if err != nil {
				return err
			}

			report, err := d.Deploy(ctx)
			if err != nil {
				return err
			}
			printDeployReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

// lazyFunctions defers AWS client setup to the first Update, so a setup
// failure cancels the deployment at update_remote_function.
type lazyFunctions struct {
	build   func(ctx context.Context) (deployer.FunctionUpdater, error)
	updater deployer.FunctionUpdater
}

func (l *lazyFunctions) Update(ctx context.Context, name, key string, art cloud.Artifact) (cloud.UpdateResult, error) {
	if l.updater == nil {
		updater, err := l.build(ctx)
		if err != nil {
			return cloud.UpdateResult{}, err
		}
		l.updater = updater
	}
	return l.updater.Update(ctx, name, key, art)
}

func (a *app) buildFunctionUpdater(ctx context.Context) (deployer.FunctionUpdater, error) {
	clients, err := cloud.LoadClients(ctx, a.region())
	if err != nil {
		return nil, err
	}
	return a.functionUpdater(ctx, clients)
}

func printDeployReport(w io.Writer, report deployer.Report) {
	fmt.Fprintf(w, "==> Deploying %s to stage %s (%s)\n", report.App, report.Stage, report.DeploymentID)
	printDecision(w, report)
	if report.Function.Skipped {
		fmt.Fprintln(w, "==> Function code unchanged")
	} else {
		fmt.Fprintf(w, "==> Function code updated (%s)\n", report.Function.CodeSha256)
	}
	fmt.Fprintf(w, "==> Deployment #%d finished in %s\n", report.Count, report.Duration.Round(time.Millisecond))
}

func printDecision(w io.Writer, report deployer.Report) {
	d := report.Decision
	if !d.Changed {
		fmt.Fprintln(w, "==> No changes detected")
	} else {
		fmt.Fprintf(w, "==> Changes: %d added, %d removed, %d modified\n", len(d.Added), len(d.Removed), len(d.Modified))
	}
	fmt.Fprintf(w, "==> Chatbot actions: %s\n", actionList(report.Actions))
	if len(report.Inert) > 0 {
		fmt.Fprintf(w, "==> Skipped by configuration: %s\n", actionList(report.Inert))
	}
}

func actionList(actions []planner.UpdateAction) string {
	if len(actions) == 0 {
		return "none"
	}
	names := make([]string, len(actions))
	for i, action := range actions {
		names[i] = action.String()
	}
	return strings.Join(names, ", ")
}
