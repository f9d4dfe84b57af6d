package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var reviewsLimit int

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Inspect stored reviews",
}

var reviewsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List externally sourced reviews, newest first",
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

		reviews, err := st.ListExternalReviews(ctx, reviewsLimit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reviews)
	},
}

var reviewsCountCmd = &cobra.Command{
	Use:   "count <restaurant-id>",
	Short: "Show total and external review counts for a restaurant",
	Args:  cobra.ExactArgs(1),
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

		counts, err := st.CountReviews(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(counts)
	},
}

func init() {
	reviewsListCmd.Flags().IntVar(&reviewsLimit, "limit", 0, "max rows (0 = all)")
	reviewsCmd.AddCommand(reviewsListCmd, reviewsCountCmd)
	rootCmd.AddCommand(reviewsCmd)
}
