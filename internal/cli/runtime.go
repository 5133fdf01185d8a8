package cli

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/auth"
	"github.com/canonica-labs/semgate/internal/bootstrap"
	"github.com/canonica-labs/semgate/internal/cache"
	"github.com/canonica-labs/semgate/internal/config"
	"github.com/canonica-labs/semgate/internal/observability"
	"github.com/canonica-labs/semgate/internal/pipeline"
	"github.com/canonica-labs/semgate/internal/semantic"
)

// Runtime is the fully wired set of collaborators a CLI command needs to
// drive the in-process pipeline. There is no network hop between the CLI
// and C6 — they share a process, so Runtime is built fresh per invocation
// from config and (if configured) a bootstrap document.
type Runtime struct {
	Config        *config.Config
	Registry      *adapters.Registry
	Catalog       *semantic.StaticCatalog
	ERDStore      *semantic.StaticERDStore
	Authenticator *auth.StaticTokenAuthenticator
	Cache         *cache.Cache
	Logger        observability.Logger
	Pipeline      *pipeline.Pipeline
}

// buildRuntime wires a Runtime from cfg, loading and applying the bootstrap
// document at bootstrapPath (falling back to cfg.Bootstrap, then to an
// empty catalog if neither is set).
func buildRuntime(cfg *config.Config, bootstrapPath string) (*Runtime, error) {
	registry := adapters.NewRegistry()
	catalog := semantic.NewStaticCatalog()
	erdStore := semantic.NewStaticERDStore()
	authenticator := auth.NewStaticTokenAuthenticator()

	path := bootstrapPath
	if path == "" {
		path = cfg.Bootstrap
	}
	if path != "" {
		doc, err := bootstrap.Load(path)
		if err != nil {
			return nil, err
		}
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("bootstrap document invalid: %w", err)
		}
		applied, err := doc.Apply()
		if err != nil {
			return nil, err
		}
		catalog = applied.Catalog
		erdStore = applied.ERDStore
		authenticator = applied.Authenticator
		for _, sc := range applied.Sources {
			registry.Configure(sc)
		}
	}

	// Sources declared directly in config.yaml are registered too, so a
	// deployment can mix a bootstrap-declared semantic layer with
	// infra-level source overrides (e.g. swapping a DSN per environment).
	for _, s := range cfg.Sources {
		registry.Configure(adapters.SourceConfig{
			SourceID: s.SourceID,
			Engine:   s.Engine,
			DSN:      s.DSN,
			Project:  s.Project,
			Dataset:  s.Dataset,
			Extra:    s.Extra,
		})
	}

	store, err := buildStore(cfg.Cache)
	if err != nil {
		return nil, err
	}

	ownerID, _ := os.Hostname()
	if ownerID == "" {
		ownerID = "canonic-cli"
	}
	opts := cacheOptions(cfg.Cache)
	if cfg.Guards.CacheValueMax > 0 {
		opts.MaxValueBytes = cfg.Guards.CacheValueMax
	}
	cacheInst := cache.New(store, opts, ownerID+"-cli")

	logger := buildLogger(cfg.Logging)

	p := &pipeline.Pipeline{
		Catalog:  catalog,
		ERDStore: erdStore,
		Adapters: registry,
		Cache:    cacheInst,
		Logger:   logger,
		Authz:    auth.NewAuthorizationService(),
		Limits: pipeline.Limits{
			DimensionsMax:  cfg.Guards.DimensionsMax,
			MetricsMax:     cfg.Guards.MetricsMax,
			FilterDepthMax: cfg.Guards.FilterDepthMax,
			RowMax:         cfg.Guards.RowMax,
			GlobalTimeout:  cfg.Guards.GlobalTimeout,
			CacheValueMax:  cfg.Guards.CacheValueMax,
		},
	}

	return &Runtime{
		Config:        cfg,
		Registry:      registry,
		Catalog:       catalog,
		ERDStore:      erdStore,
		Authenticator: authenticator,
		Cache:         cacheInst,
		Logger:        logger,
		Pipeline:      p,
	}, nil
}

func buildStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("cache.backend is \"redis\" but cache.redisAddr is empty")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return cache.NewRedisStore(client), nil
	case "", "in-process":
		return cache.NewInProcessStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func cacheOptions(cfg config.CacheConfig) cache.Options {
	opts := cache.DefaultOptions()
	if cfg.LockTTL > 0 {
		opts.LockTTL = cfg.LockTTL
	}
	if cfg.WaitTimeout > 0 {
		opts.WaitTimeout = cfg.WaitTimeout
	}
	if cfg.PollInterval > 0 {
		opts.PollInterval = cfg.PollInterval
	}
	switch cfg.FallbackPolicy {
	case string(cache.FallbackFail):
		opts.FallbackPolicy = cache.FallbackFail
	case string(cache.FallbackPromote), "":
		opts.FallbackPolicy = cache.FallbackPromote
	}
	return opts
}

func buildLogger(cfg config.LoggingConfig) observability.Logger {
	switch cfg.Sink {
	case "noop":
		return observability.NewNoopLogger()
	case "json", "":
		target := cfg.Target
		if target == "" || target == "stdout" {
			return observability.NewJSONLogger(os.Stdout)
		}
		if target == "stderr" {
			return observability.NewJSONLogger(os.Stderr)
		}
		f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return observability.NewJSONLogger(os.Stdout)
		}
		return observability.NewJSONLogger(f)
	default:
		return observability.NewJSONLogger(os.Stdout)
	}
}
