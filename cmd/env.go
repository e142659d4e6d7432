package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/assess"
	"github.com/sells-group/leadscore/internal/generate"
	"github.com/sells-group/leadscore/internal/jsonrepair"
	"github.com/sells-group/leadscore/internal/registry"
	"github.com/sells-group/leadscore/internal/retry"
	"github.com/sells-group/leadscore/internal/store"
	anthropicpkg "github.com/sells-group/leadscore/pkg/anthropic"
	"github.com/sells-group/leadscore/pkg/serper"
)

// appEnv holds the initialized store, registries, and pipelines shared
// by the assess/generate/serve commands.
type appEnv struct {
	Store     store.Store
	Registry  *registry.Registry
	Assessor  *assess.Assessor
	Generator *generate.Generator
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "leads.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates config for mode, opens and migrates the store, and
// wires the API clients into both pipelines. Callers defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	reg := registry.Default()
	if cfg.Factors.Path != "" {
		reg, err = registry.Load(cfg.Factors.Path)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load factor registry")
		}
		zap.L().Info("loaded factor overrides", zap.String("path", cfg.Factors.Path))
	}

	searchClient := serper.NewClient(cfg.Serper.Key,
		serper.WithBaseURL(cfg.Serper.BaseURL),
		serper.WithTimeout(time.Duration(cfg.Serper.TimeoutSecs)*time.Second),
		serper.WithRetry(retry.Config{
			MaxAttempts:    cfg.Serper.Retries + 1,
			InitialBackoff: 300 * time.Millisecond,
			OnRetry:        retry.Logger("serper", "search"),
		}),
	)
	cachedSearch := serper.NewCachingClient(searchClient, st,
		time.Duration(cfg.Serper.CacheTTLHours)*time.Hour)

	llm := anthropicpkg.NewClient(cfg.Anthropic.Key)
	repairer := jsonrepair.New(llm, cfg.Anthropic.HaikuModel)

	estimator := assess.NewEstimator(cachedSearch, llm, repairer, reg, assess.EstimatorConfig{
		Model:            cfg.Anthropic.HaikuModel,
		MaxTokens:        cfg.Anthropic.MaxTokens,
		ResultsPerFactor: cfg.Assess.ResultsPerFactor,
		Policy:           assess.EstimatePolicy(cfg.Assess.EstimatePolicy),
	})

	fetcher := generate.NewPageFetcher(
		time.Duration(cfg.Generate.ScrapeTimeoutSecs)*time.Second,
		cfg.Generate.MaxPageBytes,
	)
	generator := generate.NewGenerator(cachedSearch, llm, repairer, fetcher, st, generate.Config{
		Model:             cfg.Anthropic.SonnetModel,
		MaxTokens:         cfg.Anthropic.MaxTokens,
		ResultsPerQuery:   cfg.Generate.ResultsPerQuery,
		MaxConcurrent:     cfg.Generate.MaxConcurrent,
		RequestsPerSecond: cfg.Generate.RequestsPerSecond,
	})

	return &appEnv{
		Store:     st,
		Registry:  reg,
		Assessor:  assess.NewAssessor(estimator, st, reg),
		Generator: generator,
	}, nil
}
