package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/tablescout/review-pipeline/internal/site"
	"github.com/tablescout/review-pipeline/internal/store"
)

// openStore opens the configured backend. The caller owns Close.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// loadRegistry loads site contracts from the configured path, falling back to
// the embedded defaults.
func loadRegistry() (*site.Registry, error) {
	return site.LoadRegistry(cfg.Scrape.SitesPath)
}

// siteKinds converts the configured site names.
func siteKinds() []site.Kind {
	kinds := make([]site.Kind, 0, len(cfg.Scrape.Sites))
	for _, s := range cfg.Scrape.Sites {
		kinds = append(kinds, site.Kind(s))
	}
	return kinds
}
