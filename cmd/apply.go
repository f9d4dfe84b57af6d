package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/tablescout/review-pipeline/internal/reconcile"
)

var applyArtifact string

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply rewritten texts from an artifact back to the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		ctx := cmd.Context()

		records, err := reconcile.ReadArtifact(applyArtifact)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		summary, err := reconcile.Apply(ctx, st, records)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyArtifact, "artifact", "rewrites.json", "artifact path to apply")
	rootCmd.AddCommand(applyCmd)
}
