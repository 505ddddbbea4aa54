package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"uxy/services/cloud"
	"uxy/services/deployer"
)

// noopFunctions satisfies the deployer for plan runs, which never reach the
// function update step.
type noopFunctions struct{}

func (noopFunctions) Update(context.Context, string, string, cloud.Artifact) (cloud.UpdateResult, error) {
	return cloud.UpdateResult{Skipped: true}, nil
}

func newPlanCommand(a *app) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a deploy would change without applying anything",
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

			d, err := deployer.New(deployer.Options{
				Root:      a.root,
				Stage:     a.stage,
				Store:     store,
				Chat:      a.chatFactory(),
				Functions: noopFunctions{},
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}

			report, err := d.Plan(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "==> Plan for %s, stage %s\n", report.App, report.Stage)
			printDecision(w, report)
			if verbose {
				for _, path := range report.Decision.Added {
					fmt.Fprintf(w, "  + %s\n", path)
				}
				for _, path := range report.Decision.Removed {
					fmt.Fprintf(w, "  - %s\n", path)
				}
				for _, path := range report.Decision.Modified {
					fmt.Fprintf(w, "  ~ %s\n", path)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List changed files")
	return cmd
}
