package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/sharegraph-go/internal/graphstore"
)

// newInitSchemaCmd returns the init-schema command, which creates the
// uniqueness constraints the merge queries rely on. Run once against a
// fresh database; re-running is a no-op.
func newInitSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-schema",
		Short: "Create graph database constraints and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()
			ctx := cmd.Context()

			store, closeStore, err := graphstore.Connect(ctx,
				resolvedCfg.Neo4j.URI,
				resolvedCfg.Neo4j.User,
				resolvedCfg.Neo4j.Password,
				resolvedCfg.Neo4j.Database,
				logger,
			)
			if err != nil {
				return err
			}
			defer closeStore(context.WithoutCancel(ctx)) //nolint:errcheck

			if err := store.InitSchema(ctx); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Schema initialized.")

			return nil
		},
	}
}
