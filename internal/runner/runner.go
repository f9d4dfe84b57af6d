// Package runner schedules scrape tasks across a bounded worker pool with
// per-host politeness limits, retries, and run-level accounting.
package runner

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tablescout/review-pipeline/internal/extract"
	"github.com/tablescout/review-pipeline/internal/ingest"
	"github.com/tablescout/review-pipeline/internal/model"
	"github.com/tablescout/review-pipeline/internal/resilience"
	"github.com/tablescout/review-pipeline/internal/site"
	"github.com/tablescout/review-pipeline/internal/store"
)

// Fetcher retrieves the rendered HTML for one task target. Satisfied by
// *browser.Manager.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string, contract site.Contract) (string, error)
}

// Config tunes the worker pool. Zero values fall back to defaults.
type Config struct {
	Concurrency int
	// PerHostInterval is the minimum spacing between requests to the same
	// host across all workers.
	PerHostInterval time.Duration
	Retry           resilience.RetryConfig
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.PerHostInterval <= 0 {
		c.PerHostInterval = 4 * time.Second
	}
	return c
}

// Runner executes scrape tasks end to end: fetch, extract, ingest, record.
type Runner struct {
	fetcher   Fetcher
	extractor *extract.Extractor
	ingestor  *ingest.Ingestor
	store     store.Store
	registry  *site.Registry
	cfg       Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(fetcher Fetcher, extractor *extract.Extractor, ingestor *ingest.Ingestor, st store.Store, registry *site.Registry, cfg Config) *Runner {
	return &Runner{
		fetcher:   fetcher,
		extractor: extractor,
		ingestor:  ingestor,
		store:     st,
		registry:  registry,
		cfg:       cfg.withDefaults(),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// BuildTasks expands restaurants × site kinds into scrape tasks. Kinds without
// a registered contract are skipped with a warning rather than failing the
// whole run.
func BuildTasks(registry *site.Registry, restaurants []model.Restaurant, kinds []site.Kind) []model.ScrapeTask {
	var tasks []model.ScrapeTask
	for _, kind := range kinds {
		contract, err := registry.Get(kind)
		if err != nil {
			zap.L().Warn("skipping unknown site kind", zap.String("kind", string(kind)))
			continue
		}
		for _, r := range restaurants {
			tasks = append(tasks, model.ScrapeTask{
				RestaurantID: r.ID,
				TargetURL:    contract.TargetURL(r.Name),
				SiteKind:     string(kind),
				Status:       model.TaskStatusPending,
			})
		}
	}
	return tasks
}

// Run executes all tasks and always returns a summary, even when every task
// failed. The returned error is non-nil only when the context was canceled
// before the run could finish.
func (r *Runner) Run(ctx context.Context, tasks []model.ScrapeTask) (model.RunSummary, error) {
	summary := model.RunSummary{Tasks: len(tasks)}
	if len(tasks) == 0 {
		return summary, nil
	}

	var mu sync.Mutex
	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			res := r.runTask(runCtx, task)

			if err := r.store.RecordTaskResult(runCtx, res); err != nil {
				zap.L().Warn("failed to record task result",
					zap.String("restaurant_id", task.RestaurantID),
					zap.Error(err),
				)
			}

			mu.Lock()
			defer mu.Unlock()
			summary.Results = append(summary.Results, res)
			summary.Extracted += res.Extracted
			summary.Inserted += res.Inserted
			summary.Skipped += res.Skipped
			if res.Retries > 0 {
				summary.Retried++
			}
			if res.Task.Status == model.TaskStatusSucceeded {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			return nil
		})
	}

	_ = g.Wait()

	zap.L().Info("run finished",
		zap.Int("tasks", summary.Tasks),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("retried", summary.Retried),
		zap.Int("extracted", summary.Extracted),
		zap.Int("inserted", summary.Inserted),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, ctx.Err()
}

func (r *Runner) runTask(ctx context.Context, task model.ScrapeTask) model.TaskResult {
	res := model.TaskResult{Task: task}
	res.Task.Status = model.TaskStatusRunning

	contract, err := r.registry.Get(site.Kind(task.SiteKind))
	if err != nil {
		res.Task.Status = model.TaskStatusFailed
		res.Error = err.Error()
		return res
	}

	retryCfg := r.cfg.Retry
	baseOnRetry := resilience.RetryLogger(task.SiteKind, task.TargetURL)
	retryCfg.OnRetry = func(attempt int, err error) {
		res.Retries++
		baseOnRetry(attempt, err)
	}

	var html string
	err = resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		if err := r.waitHost(ctx, task.TargetURL); err != nil {
			return err
		}
		res.Task.Attempt++
		var fetchErr error
		html, fetchErr = r.fetcher.Fetch(ctx, task.TargetURL, contract)
		return fetchErr
	})
	if err != nil {
		res.Task.Status = model.TaskStatusFailed
		res.Error = err.Error()
		zap.L().Error("scrape task failed",
			zap.String("restaurant_id", task.RestaurantID),
			zap.String("site", task.SiteKind),
			zap.String("target", task.TargetURL),
			zap.Int("attempts", res.Task.Attempt),
			zap.Error(err),
		)
		return res
	}

	records := r.extractor.Extract(html, contract, extract.Target{
		RestaurantID: task.RestaurantID,
		SourceURL:    task.TargetURL,
		ExtractedAt:  time.Now().UTC(),
	})
	res.Extracted = len(records)
	if len(records) == 0 {
		// an empty page is a successful scrape with nothing to ingest
		res.Task.Status = model.TaskStatusSucceeded
		zap.L().Info("no reviews extracted",
			zap.String("restaurant_id", task.RestaurantID),
			zap.String("site", task.SiteKind),
		)
		return res
	}

	ingRes, err := r.ingestor.Ingest(ctx, records)
	res.Inserted = ingRes.Inserted
	res.Skipped = ingRes.Skipped + ingRes.Deduped
	if err != nil {
		res.Task.Status = model.TaskStatusFailed
		res.Error = err.Error()
		return res
	}

	res.Task.Status = model.TaskStatusSucceeded
	return res
}

// waitHost enforces the per-host politeness interval across workers.
func (r *Runner) waitHost(ctx context.Context, targetURL string) error {
	host := targetURL
	if u, err := url.Parse(targetURL); err == nil && u.Host != "" {
		host = u.Host
	}

	r.mu.Lock()
	lim, ok := r.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(r.cfg.PerHostInterval), 1)
		r.limiters[host] = lim
	}
	r.mu.Unlock()

	return lim.Wait(ctx)
}
