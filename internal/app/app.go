// Package app wires configuration into a ready Pipeline for the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/agenthands/anatomy-eval/internal/cache"
	"github.com/agenthands/anatomy-eval/internal/config"
	"github.com/agenthands/anatomy-eval/internal/core"
	"github.com/agenthands/anatomy-eval/internal/core/prompt"
	"github.com/agenthands/anatomy-eval/internal/driver"
	"github.com/agenthands/anatomy-eval/internal/llm"
	"github.com/agenthands/anatomy-eval/internal/observability"
	"github.com/agenthands/anatomy-eval/internal/retrieval"
)

const defaultConfigPath = "config/config.toml"

// LoadConfig reads CONFIG_PATH (or config/config.toml), falling back to the
// built-in defaults when the default file is absent, then applies env
// overrides and re-validates.
func LoadConfig(logger *slog.Logger) (*config.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	switch {
	case err == nil:
		logger.Info("loaded config", "path", path)
	case !explicit && errors.Is(err, fs.ErrNotExist):
		logger.Warn("no config file found, using defaults", "path", path)
		cfg = config.Default()
	default:
		return nil, err
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type App struct {
	Config   *config.Config
	Pipeline *core.Pipeline
	Registry *prometheus.Registry
	Cache    *cache.Store
	Graph    *driver.GraphStore

	closers []func() error
	logger  *slog.Logger
}

// Build connects the cache, model APIs, graph store and retriever selected by
// cfg. On error everything opened so far has already been released.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Registry: prometheus.NewRegistry(), logger: logger}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	db, err := cache.Open(cache.FromConfig(cfg.Cache, logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	a.Cache = cache.NewStore(db)
	a.closers = append(a.closers, a.Cache.Close)

	clients, err := a.buildClients(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Retrieval.Source == "graph" || cfg.Output.SaveToGraph {
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to memgraph: %w", err)
		}
		a.closers = append(a.closers, func() error { return d.Close(context.Background()) })
		if err := d.BuildIndices(ctx); err != nil {
			logger.Warn("failed to build graph indices", "error", err)
		}
		a.Graph = driver.NewGraphStore(d)
	}

	retriever, err := a.buildRetriever(clients)
	if err != nil {
		a.Close()
		return nil, err
	}

	p := core.NewPipeline(cfg, clients, retriever, logger)
	p.Store = a.Graph
	p.Metrics = observability.NewMetrics(a.Registry)
	a.Pipeline = p
	return a, nil
}

func (a *App) buildClients(ctx context.Context) ([]llm.NamedClient, error) {
	if len(a.Config.Models) == 0 {
		a.logger.Warn("no model apis configured; only offline scoring is available")
		return nil, nil
	}

	system := prompt.NewBuilder(a.Config.Prompts).System()
	clients, err := llm.NewClients(ctx, a.Config.Models, system, a.logger)
	if err != nil {
		return nil, err
	}
	for _, c := range clients {
		if closer, ok := c.Client.(interface{ Close() error }); ok {
			a.closers = append(a.closers, closer.Close)
		}
	}

	if a.Config.Cache.Responses {
		clients = llm.WithResponseCache(clients, cache.NewResponseCache(a.Cache), a.logger)
	}
	return clients, nil
}

func (a *App) buildRetriever(clients []llm.NamedClient) (retrieval.Retriever, error) {
	cfg := a.Config.Retrieval

	var r retrieval.Retriever
	switch cfg.Source {
	case "file":
		files, err := retrieval.LoadFiles(cfg.Files)
		if err != nil {
			return nil, fmt.Errorf("failed to load evidence files: %w", err)
		}
		a.logger.Info("loaded recorded evidence", "pattern", cfg.Files, "symptoms", files.Len())
		r = files
	case "graph":
		r = &retrieval.GraphRetriever{Store: a.Graph, Limit: cfg.Limit}
	default:
		a.logger.Info("evidence retrieval disabled")
		return nil, nil
	}

	if cfg.Rerank != "" {
		for _, c := range clients {
			if c.Name == cfg.Rerank {
				r = &retrieval.RankedRetriever{Inner: r, Reranker: llm.NewSimpleLLMReranker(c.Client), TopK: cfg.TopK}
				break
			}
		}
	}

	return &retrieval.CachedRetriever{Inner: r, Cache: cache.NewEvidenceCache(a.Cache), Logger: a.logger}, nil
}

// Close releases everything Build opened, last opened first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
