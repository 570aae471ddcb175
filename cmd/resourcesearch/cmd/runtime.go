package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/resourcesearch/internal/config"
	"github.com/Aman-CERP/resourcesearch/internal/coordinator"
	"github.com/Aman-CERP/resourcesearch/internal/dataset"
	"github.com/Aman-CERP/resourcesearch/internal/engine"
	"github.com/Aman-CERP/resourcesearch/internal/errors"
	"github.com/Aman-CERP/resourcesearch/internal/output"
	"github.com/Aman-CERP/resourcesearch/internal/store"
)

// runtime wires loaded data files into a store and a coordinator.
type runtime struct {
	data  *dataset.Dataset
	store *store.Store
	coord *coordinator.Coordinator
}

// engineOptions converts the engine section of cfg.
func engineOptions(cfg *config.Config) (engine.Options, error) {
	mode, err := engine.ParseIndexMode(cfg.Engine.IndexMode)
	if err != nil {
		return engine.Options{}, errors.ConfigError(err.Error(), err)
	}
	return engine.Options{
		IndexMode:       mode,
		TokenizePattern: cfg.Engine.TokenizePattern,
		CaseSensitive:   cfg.Engine.CaseSensitive,
		CacheSize:       cfg.Engine.CacheSize,
	}, nil
}

// openRuntime loads paths, fills a new store and registers every resource.
func openRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, paths []string) (*runtime, error) {
	if len(paths) == 0 {
		return nil, errors.ValidationError("at least one --data file is required", nil)
	}

	engineOpts, err := engineOptions(cfg)
	if err != nil {
		return nil, err
	}
	delay, err := cfg.WatchDelay()
	if err != nil {
		return nil, errors.ConfigError(err.Error(), err)
	}

	data, err := dataset.Load(ctx, paths...)
	if err != nil {
		return nil, err
	}

	s := store.New(nil, store.WithLogger(logger))
	data.Apply(s)

	coord, err := coordinator.New(s,
		coordinator.WithNamespace(cfg.Store.Namespace),
		coordinator.WithEngineOptions(engineOpts),
		coordinator.WithResources(data.Configs(delay)),
		coordinator.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("register resources: %w", err)
	}

	logger.Info("resources_registered",
		slog.Int("resources", len(data.Names())),
		slog.Int("files", len(paths)),
		slog.String("index_mode", engineOpts.IndexMode.String()))

	return &runtime{data: data, store: s, coord: coord}, nil
}

// resolve renders matched ids with the indexed fields of the live collection.
func (r *runtime) resolve(name, query string, ids []string) output.ResultSet {
	var fields []string
	if res, ok := r.data.Resource(name); ok {
		fields = res.Index
	}
	docs, _ := r.store.Get(name).(engine.List)
	return output.NewResultSet(name, query, ids, docs, fields)
}

func (r *runtime) Close() error {
	return r.coord.Close()
}
