package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tablescout/review-pipeline/internal/model"
	"github.com/tablescout/review-pipeline/internal/store"
)

var (
	restaurantsName  string
	restaurantsArea  string
	restaurantsLimit int
)

var restaurantsCmd = &cobra.Command{
	Use:   "restaurants",
	Short: "Manage the restaurant catalog",
}

var restaurantsImportCmd = &cobra.Command{
	Use:   "import <catalog.json>",
	Short: "Import or update restaurants from a JSON catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read catalog %s", args[0])
		}
		var restaurants []model.Restaurant
		if err := json.Unmarshal(data, &restaurants); err != nil {
			return eris.Wrapf(err, "parse catalog %s", args[0])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		imported := 0
		for _, r := range restaurants {
			if r.Name == "" {
				zap.L().Warn("skipping catalog entry without name")
				continue
			}
			if r.ID == "" {
				r.ID = uuid.New().String()
			}
			if err := st.UpsertRestaurant(ctx, r); err != nil {
				return err
			}
			imported++
		}

		zap.L().Info("catalog imported", zap.Int("restaurants", imported))
		return nil
	},
}

var restaurantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cataloged restaurants",
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

		restaurants, err := st.FindRestaurants(ctx, store.RestaurantFilter{
			Name:  restaurantsName,
			Area:  restaurantsArea,
			Limit: restaurantsLimit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(restaurants)
	},
}

func init() {
	restaurantsListCmd.Flags().StringVar(&restaurantsName, "name", "", "filter by name (exact or substring)")
	restaurantsListCmd.Flags().StringVar(&restaurantsArea, "area", "", "filter by area substring")
	restaurantsListCmd.Flags().IntVar(&restaurantsLimit, "limit", 0, "max rows (0 = all)")
	restaurantsCmd.AddCommand(restaurantsImportCmd, restaurantsListCmd)
	rootCmd.AddCommand(restaurantsCmd)
}
