package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tablescout/review-pipeline/internal/reconcile"
)

var (
	exportOut   string
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export externally sourced reviews to a rewrite artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := reconcile.Export(ctx, st, exportLimit)
		if err != nil {
			return err
		}
		if err := reconcile.WriteArtifact(exportOut, records); err != nil {
			return err
		}

		zap.L().Info("exported rewrite artifact",
			zap.String("path", exportOut),
			zap.Int("reviews", len(records)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "rewrites.json", "artifact output path")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "max reviews to export (0 = all)")
	rootCmd.AddCommand(exportCmd)
}
