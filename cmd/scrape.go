package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tablescout/review-pipeline/internal/browser"
	"github.com/tablescout/review-pipeline/internal/classify"
	"github.com/tablescout/review-pipeline/internal/extract"
	"github.com/tablescout/review-pipeline/internal/ingest"
	"github.com/tablescout/review-pipeline/internal/resilience"
	"github.com/tablescout/review-pipeline/internal/runner"
	"github.com/tablescout/review-pipeline/internal/store"
)

var (
	scrapeName    string
	scrapeArea    string
	scrapeLimit   int
	scrapeResults bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape external review sites for cataloged restaurants",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		registry, err := loadRegistry()
		if err != nil {
			return err
		}

		restaurants, err := st.FindRestaurants(ctx, store.RestaurantFilter{
			Name:  scrapeName,
			Area:  scrapeArea,
			Limit: scrapeLimit,
		})
		if err != nil {
			return err
		}
		if len(restaurants) == 0 {
			return eris.New("no restaurants matched; import a catalog with `reviewpipe restaurants import`")
		}

		tasks := runner.BuildTasks(registry, restaurants, siteKinds())
		zap.L().Info("starting scrape run",
			zap.Int("restaurants", len(restaurants)),
			zap.Int("tasks", len(tasks)),
			zap.Strings("sites", cfg.Scrape.Sites),
		)

		mgr := browser.NewManager(ctx, browser.Options{
			Headless:     cfg.Scrape.Headless,
			UserAgent:    cfg.Scrape.UserAgent,
			NavTimeout:   cfg.Scrape.NavTimeout(),
			ReadyTimeout: cfg.Scrape.ReadyTimeout(),
		})
		defer mgr.Close()

		retryCfg := resilience.DefaultRetryConfig()
		retryCfg.MaxAttempts = cfg.Scrape.MaxAttempts

		run := runner.New(
			mgr,
			extract.New(cfg.Scrape.MinTextLen),
			ingest.New(st, classify.New(cfg.Classify.Keywords)),
			st,
			registry,
			runner.Config{
				Concurrency:     cfg.Scrape.Concurrency,
				PerHostInterval: cfg.Scrape.PerHostInterval(),
				Retry:           retryCfg,
			},
		)

		summary, err := run.Run(ctx, tasks)
		if err != nil {
			return eris.Wrap(err, "scrape run interrupted")
		}

		if !scrapeResults {
			summary.Results = nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeName, "name", "", "filter restaurants by name")
	scrapeCmd.Flags().StringVar(&scrapeArea, "area", "", "filter restaurants by area")
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", 0, "max restaurants to scrape (0 = all)")
	scrapeCmd.Flags().BoolVar(&scrapeResults, "results", false, "include per-task results in the summary output")
	rootCmd.AddCommand(scrapeCmd)
}
