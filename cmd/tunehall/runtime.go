package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tunehall/internal/app/entities"
	"tunehall/internal/app/favorites"
	"tunehall/internal/app/playlists"
	"tunehall/internal/catalog"
	"tunehall/internal/config"
	"tunehall/internal/docstore"
	"tunehall/internal/lifecycle"
	"tunehall/internal/logging"
	"tunehall/internal/metrics"
	"tunehall/internal/relations"
)

// runtime holds the store and everything built on top of it.
type runtime struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    docstore.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	close    func()

	entities   []entities.Service
	byKind     map[docstore.Kind]entities.Service
	engine     *relations.Engine
	reconciler *relations.Reconciler
	playlists  playlists.Service
	favorites  favorites.Service
}

// openStore connects the configured backend.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (docstore.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := openDatabase(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, nil, err
		}
		return docstore.NewPostgres(db), func() { _ = db.Close() }, nil
	case config.DriverMongo:
		store, client, err := docstore.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = client.Disconnect(context.Background()) }, nil
	case config.DriverMemory:
		return docstore.NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*runtime, error) {
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Zerolog().Info().Str("driver", cfg.Store.Driver).Msg("document store ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.New(registry),
		close:    closeStore,
	}
	rt.wire(store)
	return rt, nil
}

// wire builds the lifecycle managers, the relationship engine and the
// application services over store.
func (rt *runtime) wire(store docstore.Store) {
	retries := rt.cfg.Engine.ConflictRetries
	rt.store = store
	rt.byKind = make(map[docstore.Kind]entities.Service, len(catalog.Kinds))
	rt.entities = rt.entities[:0]

	for _, kind := range catalog.Kinds {
		lc := lifecycle.New(store, kind,
			lifecycle.WithMetrics(rt.metrics),
			lifecycle.WithLogger(rt.logger),
			lifecycle.WithConflictRetries(retries),
		)
		svc := entities.New(store, lc, retries)
		rt.entities = append(rt.entities, svc)
		rt.byKind[kind] = svc
	}

	opts := []relations.Option{
		relations.WithMetrics(rt.metrics),
		relations.WithLogger(rt.logger),
		relations.WithConflictRetries(retries),
	}
	rt.engine = relations.New(store, opts...)
	rt.reconciler = relations.NewReconciler(store, opts...)
	rt.playlists = playlists.New(rt.engine)
	rt.favorites = favorites.New(rt.engine)
}
