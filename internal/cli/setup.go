// Package cli implements the specforge command set: compile, validate,
// and the pattern review surface.
package cli

import (
	"context"
	"fmt"
	"log"

	"specforge/internal/compiler"
	"specforge/internal/config"
	"specforge/internal/oracle"
	"specforge/internal/pattern"
	"specforge/internal/store"
	"specforge/internal/typecatalog"
)

// runtime bundles everything a command needs, built from the environment
// once per invocation.
type runtime struct {
	cfg      config.Config
	catalog  *typecatalog.Catalog
	store    store.Store
	compiler *compiler.Compiler

	closers []func()
}

// newRuntime connects the configured store and oracle. dbOverride, when
// not empty, wins over the environment's connection string.
func newRuntime(ctx context.Context, dbOverride string) (*runtime, error) {
	cfg := config.Load()
	if dbOverride != "" {
		cfg.ConnectionString = dbOverride
		cfg.StoreType = config.PostgresStore
	}

	rt := &runtime{cfg: cfg, catalog: typecatalog.New()}

	switch cfg.StoreType {
	case config.PostgresStore:
		pg, err := store.NewPostgres(cfg.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to pattern store: %w", err)
		}
		rt.store = pg
		rt.closers = append(rt.closers, func() {
			if err := pg.Close(); err != nil {
				log.Printf("warning: failed to close store: %v", err)
			}
		})
	default:
		rt.store = store.NewMemory()
	}

	var orc pattern.Oracle
	if cfg.APIKey != "" {
		gem, err := oracle.NewGemini(ctx, cfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding oracle: %w", err)
		}
		if gem != nil {
			orc = gem
			rt.closers = append(rt.closers, gem.Close)
		}
	}

	rt.compiler = compiler.New(rt.catalog, rt.store, orc, cfg.Matching)
	return rt, nil
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}
