package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"latexcv/internal/compile"
	"latexcv/internal/config"
	"latexcv/internal/extract"
	"latexcv/internal/redis"
	"latexcv/internal/service/ai"
	"latexcv/internal/service/conversion"
	"latexcv/internal/storage"
	"latexcv/internal/templates"
)

// app owns every long-lived collaborator. Construction order is config,
// store, cache, templates, generator, compilers, service; close runs in reverse.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.Store
	cache    *redis.Client
	compiler compile.Compiler
	remote   *compile.RemoteCompiler
	service  *conversion.Service
}

// newApp wires the pipeline. Without withStore no database connection is
// made and only Draft may be used on the service.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, withStore bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	if withStore {
		store, err := storage.Open(ctx, cfg.Store, logger)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = store
		if cfg.Cache.Addr != "" {
			cache, err := redis.NewClient(ctx, cfg.Cache)
			if err != nil {
				return nil, fmt.Errorf("connect cache: %w", err)
			}
			a.cache = cache
			a.store = storage.NewCachedStore(store, cache, cfg.Cache.TTL, logger)
			logger.Info("record cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	reg, err := templates.New(ctx, cfg.Templates.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	gen, err := ai.NewGenerator(ctx, cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("init generator: %w", err)
	}
	a.compiler, err = compile.New(cfg.Compiler, logger)
	if err != nil {
		return nil, fmt.Errorf("init compiler: %w", err)
	}
	a.remote = compile.NewRemoteCompiler(cfg.Compiler, logger)

	a.service = conversion.NewService(conversion.Deps{
		Extractor: extract.NewExtractor(logger),
		Templates: reg,
		Generator: gen,
		Store:     a.store,
		Compiler:  a.compiler,
		Remote:    a.remote,
		Logger:    logger,
	})
	ok = true
	return a, nil
}

// localCompiler returns the local strategy when it is the configured one.
func (a *app) localCompiler() (*compile.LocalCompiler, bool) {
	lc, ok := a.compiler.(*compile.LocalCompiler)
	return lc, ok
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("close cache", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			a.logger.Warn("close store", "error", err)
		}
	}
}
