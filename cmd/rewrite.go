package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tablescout/review-pipeline/internal/reconcile"
	"github.com/tablescout/review-pipeline/internal/rewrite"
	"github.com/tablescout/review-pipeline/pkg/anthropic"
)

var rewriteArtifact string

var rewriteCmd = &cobra.Command{
	Use:   "rewrite",
	Short: "Fill a rewrite artifact's empty slots with model rewrites",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("rewrite"); err != nil {
			return err
		}
		ctx := cmd.Context()

		records, err := reconcile.ReadArtifact(rewriteArtifact)
		if err != nil {
			return err
		}

		rw := rewrite.New(anthropic.NewClient(cfg.Anthropic.Key), rewrite.Options{
			Model:       cfg.Anthropic.Model,
			MaxTokens:   cfg.Anthropic.MaxTokens,
			Concurrency: cfg.Anthropic.Concurrency,
		})

		n, err := rw.Rewrite(ctx, records)
		if err != nil {
			return err
		}
		if err := reconcile.WriteArtifact(rewriteArtifact, records); err != nil {
			return err
		}

		zap.L().Info("rewrote artifact",
			zap.String("path", rewriteArtifact),
			zap.Int("rewritten", n),
			zap.Int("records", len(records)),
		)
		return nil
	},
}

func init() {
	rewriteCmd.Flags().StringVar(&rewriteArtifact, "artifact", "rewrites.json", "artifact path to rewrite in place")
	rootCmd.AddCommand(rewriteCmd)
}
