package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"uxy/services/appconfig"
	"uxy/services/blueprint"
)

type historyStore interface {
	History(ctx context.Context, app string, limit int) ([]blueprint.HistoryEntry, error)
}

func newStatusCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the stored blueprint of the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := appconfig.Load(a.root)
			if err != nil {
				return err
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			bp, err := store.Load(ctx, cfg.Name)
			if err != nil {
				if errors.Is(err, blueprint.ErrNotFound) {
					return fmt.Errorf("%w: run uxy setup first", err)
				}
				return err
			}

			w := cmd.OutOrStdout()
			if err := writeYAML(w, bp); err != nil {
				return err
			}

			hs, ok := store.(historyStore)
			if !ok {
				return nil
			}
			entries, err := hs.History(ctx, cfg.Name, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return nil
			}
			fmt.Fprintln(w, "---")
			return writeYAML(w, map[string]any{"deployments": entries})
		},
	}

	cmd.Flags().IntVar(&limit, "history", 10, "Number of recorded deployments to list when the store keeps history")
	return cmd
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
