package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry hands out one shared store per named data source. Stores are
// built and connected on first use; Close shuts down every store that was
// opened. The registry is owned by the caller.
type Registry struct {
	mu      sync.Mutex
	configs map[string]Config
	stores  map[string]Store
	logger  *zap.Logger
}

// NewRegistry creates a registry over named data source configs
func NewRegistry(configs map[string]Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := make(map[string]Config, len(configs))
	for name, cfg := range configs {
		c[name] = cfg
	}
	return &Registry{
		configs: c,
		stores:  make(map[string]Store),
		logger:  logger,
	}
}

// Register adds an already built store under name, replacing any config
func (r *Registry) Register(name string, store Store) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stores[name] = store
}

// Get returns the connected store for name
func (r *Registry) Get(ctx context.Context, name string) (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.stores[name]; ok {
		return store, nil
	}

	cfg, ok := r.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDatasource, name)
	}

	store, err := Open(name, cfg, r.logger)
	if err != nil {
		return nil, err
	}
	if err := store.Connect(ctx); err != nil {
		return nil, err
	}

	r.stores[name] = store
	r.logger.Info("data source opened", zap.String("datasource", name), zap.String("driver", cfg.Driver))
	return store, nil
}

// Names returns the sorted names of every configured or registered store
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool)
	for name := range r.configs {
		seen[name] = true
	}
	for name := range r.stores {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close shuts down every opened store
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, store := range r.stores {
		if err := store.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	r.stores = make(map[string]Store)
	return errors.Join(errs...)
}

// Open builds the store described by cfg: a SQL store, throttled when a
// rate limit is set and cached when a cache address is set. The request
// driver yields an empty RequestStore.
func Open(name string, cfg Config, logger *zap.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("data source %s: %w", name, err)
	}
	if cfg.Driver == DriverRequest {
		return NewRequestStore(nil), nil
	}

	var store Store = NewSQLStore(name, cfg, logger)
	if cfg.RateLimit > 0 {
		store = NewThrottledStore(store, cfg.RateLimit, cfg.Burst)
	}
	if cfg.Cache.Addr != "" {
		prefix := cfg.Cache.Prefix
		if prefix == "" {
			prefix = "recordkit:" + name + ":"
		}
		store = NewCachedStore(store, NewRedisClient(cfg.Cache), prefix, cfg.Cache.TTL, logger)
	}
	return store, nil
}
