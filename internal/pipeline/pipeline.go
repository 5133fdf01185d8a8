// Package pipeline implements C6: the nine-step request orchestration that
// ties guards, dataset resolution, RLS, compilation, caching, and adapter
// dispatch into a single call.
package pipeline

import (
	"context"
	"time"

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/auth"
	"github.com/canonica-labs/semgate/internal/cache"
	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/observability"
	"github.com/canonica-labs/semgate/internal/rls"
	"github.com/canonica-labs/semgate/internal/semantic"
	"github.com/canonica-labs/semgate/internal/sql"
	"github.com/canonica-labs/semgate/internal/types"
)

// Limits bounds request shape and cache-value size.
type Limits struct {
	DimensionsMax int
	MetricsMax    int
	FilterDepthMax int
	RowMax        int
	GlobalTimeout time.Duration
	CacheValueMax int
}

func DefaultLimits() Limits {
	return Limits{
		DimensionsMax:  20,
		MetricsMax:     20,
		FilterDepthMax: 8,
		RowMax:         100_000,
		GlobalTimeout:  30 * time.Second,
		CacheValueMax:  8 << 20, // 8 MiB
	}
}

// Pipeline wires together every collaborator C6 orchestrates.
type Pipeline struct {
	Catalog  semantic.Catalog
	ERDStore semantic.ERDStore
	Adapters *adapters.Registry
	Cache    *cache.Cache
	Logger   observability.Logger
	Authz    *auth.AuthorizationService
	Limits   Limits
}

// Run executes the nine request steps in order and returns the result.
func (p *Pipeline) Run(ctx context.Context, q *types.SemanticQuery, tctx types.TenantContext) (*types.QueryResult, error) {
	start := time.Now()
	stats := types.Stats{Tenant: tctx.Tenant, Dataset: q.Dataset}

	result, err := p.run(ctx, q, tctx, &stats)
	stats.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		stats.Outcome = "error"
		stats.Error = err.Error()
	} else {
		stats.Outcome = "ok"
		stats.Rows = result.RowCount
		stats.CacheHit = result.CacheHit
	}
	p.Logger.EmitStats(stats)
	return result, err
}

func (p *Pipeline) run(ctx context.Context, q *types.SemanticQuery, tctx types.TenantContext, stats *types.Stats) (*types.QueryResult, error) {
	// Step 1: guards.
	if err := p.guard(q); err != nil {
		return nil, err
	}

	// Step 2: resolve dataset.
	ds, err := p.Catalog.GetDataset(ctx, q.Dataset)
	if err != nil {
		return nil, err
	}
	if p.Authz != nil {
		if err := p.Authz.AuthorizeDataset(ds, tctx.Role); err != nil {
			return nil, err
		}
	} else if len(ds.AllowedRoles) > 0 && !roleAllowed(ds.AllowedRoles, tctx.Role) {
		return nil, errors.NewForbidden(string(tctx.Role), ds.ID)
	}
	stats.Engine = ds.Engine
	if q.Limit <= 0 {
		q.Limit = ds.DefaultLimit
		if q.Limit <= 0 {
			q.Limit = p.Limits.RowMax
		}
	} else if q.Limit > p.Limits.RowMax {
		q.Limit = p.Limits.RowMax
	}

	// Step 3: RLS.
	rlsResult, err := rls.Evaluate(ds, tctx)
	if err != nil {
		return nil, err
	}
	stats.RLSApplied = rlsResult.Applied
	stats.RLSBypassed = rlsResult.Bypassed

	// Step 4: compile.
	erd, err := p.ERDStore.GetERD(ctx, ds.SourceID)
	if err != nil {
		return nil, err
	}
	plan, err := semantic.NewCompiler().Compile(q, ds, erd, rlsResult)
	if err != nil {
		return nil, err
	}
	rendered, args, err := sql.Build(plan, ds.Engine)
	if err != nil {
		return nil, err
	}

	// Step 5: fingerprint & cache lookup.
	key := cache.Fingerprint(q, tctx, ds)
	if q.NoCache {
		return p.execute(ctx, ds, rendered, args, key)
	}
	if res, ok := p.Cache.Get(ctx, key); ok {
		return res, nil
	}

	ttl := ds.CacheTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return p.Cache.Execute(ctx, key, ttl, func(ctx context.Context) (*types.QueryResult, error) {
		return p.execute(ctx, ds, rendered, args, key)
	})
}

func (p *Pipeline) execute(ctx context.Context, ds *types.Dataset, query string, args []interface{}, key string) (*types.QueryResult, error) {
	deadline := p.Limits.GlobalTimeout
	if ds.QueryTimeout > 0 && ds.QueryTimeout < deadline {
		deadline = ds.QueryTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < deadline {
			deadline = remaining
		}
	}
	execCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	adapter, err := p.Adapters.Get(ds.SourceID)
	if err != nil {
		return nil, err
	}

	result, err := adapter.Execute(execCtx, query, args)
	if err != nil {
		if kind, ok := errors.KindOf(err); ok && kind == errors.KindConnectionError {
			p.Adapters.Evict(ds.SourceID)
		}
		if execCtx.Err() != nil {
			return nil, errors.NewTimeout(ds.Engine, deadline.String())
		}
		return nil, err
	}
	result.Engine = ds.Engine
	result.Fingerprint = key
	return result, nil
}

func (p *Pipeline) guard(q *types.SemanticQuery) error {
	if len(q.Dimensions) > p.Limits.DimensionsMax {
		return errors.NewValidation("too many dimensions")
	}
	if len(q.Metrics) > p.Limits.MetricsMax {
		return errors.NewValidation("too many metrics")
	}
	if depth(q.Filters, 0) > p.Limits.FilterDepthMax {
		return errors.NewValidation("filter tree too deep")
	}
	if q.Limit > p.Limits.RowMax {
		return errors.NewValidation("limit exceeds row max")
	}
	return nil
}

func depth(n *types.FilterNode, cur int) int {
	if n == nil {
		return cur
	}
	max := cur
	for i := range n.And {
		if d := depth(&n.And[i], cur+1); d > max {
			max = d
		}
	}
	for i := range n.Or {
		if d := depth(&n.Or[i], cur+1); d > max {
			max = d
		}
	}
	if n.Not != nil {
		if d := depth(n.Not, cur+1); d > max {
			max = d
		}
	}
	return max
}

func roleAllowed(allowed []types.Role, role types.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
