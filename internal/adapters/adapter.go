// Package adapters defines the common interface for engine adapters and the
// lazy, sourceId-keyed registry that constructs and evicts them.
//
// Adapters are thin translation layers: given already-rendered SQL and its
// parameter vector (internal/sql has already applied RLS and dialect
// quoting), an adapter's only job is to run it against its engine and
// report results or errors. No silent retries, no hidden fallbacks — a
// connection failure surfaces as a ConnectionError and evicts the cached
// adapter so the next call rebuilds the connection from scratch.
package adapters

import (
	"context"
	"sync"

	"github.com/canonica-labs/semgate/internal/capabilities"
	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/types"
)

// SourceConfig carries whatever an engine adapter needs to connect: DSN-style
// strings for database/sql engines, or structured fields (project, dataset)
// for engines like BigQuery that don't speak a DSN. Engine-specific adapters
// read the fields relevant to them and ignore the rest.
type SourceConfig struct {
	SourceID string
	Engine   string
	DSN      string
	Project  string
	Dataset  string
	Catalog  string
	Extra    map[string]string
}

// EngineAdapter is the contract every engine package implements.
type EngineAdapter interface {
	// Name is the engine tag, matching Dataset.Engine (e.g. "postgres").
	Name() string

	// Capabilities reports what this engine supports, used to reject plans
	// the dataset's bound engine can't execute (e.g. window functions).
	Capabilities() capabilities.CapabilitySet

	// Execute runs rendered SQL with its positional/named parameter vector
	// and returns a QueryResult. Must return errors.NewQueryError or
	// errors.NewConnectionError on failure, never swallow.
	Execute(ctx context.Context, query string, args []interface{}) (*types.QueryResult, error)

	// CheckHealth verifies the adapter can reach its engine.
	CheckHealth(ctx context.Context) error

	// Close releases held resources. Must be idempotent.
	Close() error
}

// Factory constructs an EngineAdapter for a given source. Each engine
// package registers one via RegisterFactory.
type Factory func(cfg SourceConfig) (EngineAdapter, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// RegisterFactory makes an engine's constructor available to the registry
// under its engine tag. Called from each engine package's init().
func RegisterFactory(engine string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[engine] = f
}

func lookupFactory(engine string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	f, ok := factories[engine]
	return f, ok
}

// Registry lazily constructs and caches one adapter per sourceId, rather
// than eagerly connecting to every configured source at startup. A source
// whose adapter errors with ConnectionError is evicted immediately so the
// next call reconnects instead of reusing a half-broken client.
type Registry struct {
	mu       sync.Mutex
	adapters map[string]EngineAdapter
	configs  map[string]SourceConfig
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]EngineAdapter),
		configs:  make(map[string]SourceConfig),
	}
}

// Configure registers a source's connection config without constructing its
// adapter. Construction happens lazily on first Get.
func (r *Registry) Configure(cfg SourceConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.SourceID] = cfg
}

// Get returns the adapter for sourceID, constructing it on first use.
func (r *Registry) Get(sourceID string) (EngineAdapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[sourceID]; ok {
		return a, nil
	}

	cfg, ok := r.configs[sourceID]
	if !ok {
		return nil, errors.NewConfigError("no source configured: " + sourceID)
	}

	factory, ok := lookupFactory(cfg.Engine)
	if !ok {
		return nil, errors.NewConfigError("no adapter registered for engine: " + cfg.Engine)
	}

	adapter, err := factory(cfg)
	if err != nil {
		return nil, errors.NewConnectionError(cfg.SourceID, err)
	}
	r.adapters[sourceID] = adapter
	return adapter, nil
}

// Evict drops a cached adapter, closing it first. Callers invoke this after
// an Execute/CheckHealth call surfaces a ConnectionError so the next Get
// reconstructs the connection rather than retrying a broken one.
func (r *Registry) Evict(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.adapters[sourceID]; ok {
		_ = a.Close()
		delete(r.adapters, sourceID)
	}
}

// CloseAll closes every constructed adapter, e.g. on process shutdown.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var lastErr error
	for id, a := range r.adapters {
		if err := a.Close(); err != nil {
			lastErr = err
		}
		delete(r.adapters, id)
	}
	return lastErr
}

// CheckAllHealth runs CheckHealth against every already-constructed adapter.
// Sources never queried yet are not included — constructing a connection
// purely to health-check it would defeat lazy construction.
func (r *Registry) CheckAllHealth(ctx context.Context) map[string]error {
	r.mu.Lock()
	snapshot := make(map[string]EngineAdapter, len(r.adapters))
	for id, a := range r.adapters {
		snapshot[id] = a
	}
	r.mu.Unlock()

	results := make(map[string]error, len(snapshot))
	for id, a := range snapshot {
		results[id] = a.CheckHealth(ctx)
	}
	return results
}

// ConfiguredSources returns the sourceIds known to the registry, whether or
// not their adapter has been constructed yet.
func (r *Registry) ConfiguredSources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	return ids
}
