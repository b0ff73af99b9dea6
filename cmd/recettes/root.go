package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/recettes/internal/logging"
	"github.com/cognicore/recettes/pkg/recettes"
	"github.com/cognicore/recettes/pkg/recettes/config"
	"github.com/cognicore/recettes/pkg/recettes/store"
	"github.com/cognicore/recettes/pkg/recettes/store/badgerstore"
	"github.com/cognicore/recettes/pkg/recettes/store/memstore"
	"github.com/cognicore/recettes/pkg/recettes/store/redisstore"
	"github.com/cognicore/recettes/pkg/recettes/store/sqlite"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "recettes",
		Short:         "Recipe preference and recommendation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newRecommendCmd(),
		newKeywordsCmd(),
		newImportCmd(),
		newTokenCmd(),
		newStopwordsCmd(),
	)
	return root
}

// loadServer reads the environment and configures logging from it.
func loadServer() (*config.Server, error) {
	cfg, err := config.LoadServer()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return cfg, nil
}

// openStore builds the backend selected by RECETTES_STORE.
func openStore(ctx context.Context, cfg *config.Server) (store.Store, error) {
	switch cfg.Store {
	case config.BackendMemory:
		return memstore.New(), nil
	case config.BackendSQLite:
		st, err := sqlite.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendBadger:
		st, err := badgerstore.Open(cfg.BadgerDir)
		if err != nil {
			return nil, err
		}
		return st.WithLogger(logging.With("badger")), nil
	case config.BackendRedis:
		st, err := redisstore.Dial(ctx, redisstore.Options{Addr: cfg.RedisAddr})
		if err != nil {
			return nil, err
		}
		return st.WithLogger(logging.With("redis")), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
}

// openEngine wires the engine over the configured store and tuning file.
func openEngine(ctx context.Context, cfg *config.Server) (*recettes.Engine, error) {
	comp, err := (&config.Loader{TuningPath: cfg.TuningFile}).Load()
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}

	logger := logging.With("engine")
	engine := recettes.New(recettes.Options{
		Store:           st,
		Extractor:       comp.Extractor,
		Weights:         comp.Weights,
		Limit:           comp.Limit,
		AtomicIncrement: comp.AtomicIncrement,
		Logger:          &logger,
	})

	w := engine.Signals().Weights()
	logger.Info().
		Str("store", cfg.Store).
		Int("weight_view", w.View).
		Int("weight_reaction", w.Reaction).
		Int("weight_comment", w.Comment).
		Int("limit", engine.Scorer().Limit()).
		Msg("engine ready")
	return engine, nil
}
