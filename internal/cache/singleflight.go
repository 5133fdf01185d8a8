package cache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/types"
)

// FallbackPolicy selects what a follower does when WAIT_TIMEOUT elapses
// without a result. Defaults to promote, but both policies are exposed as
// configuration since deployments disagree on the right default.
type FallbackPolicy string

const (
	FallbackPromote FallbackPolicy = "promote"
	FallbackFail    FallbackPolicy = "fail"
)

// Options configures the single-flight coalescer's timing.
type Options struct {
	LockTTL        time.Duration
	WaitTimeout    time.Duration
	PollInterval   time.Duration
	FallbackPolicy FallbackPolicy

	// MaxValueBytes caps the marshaled result size eligible for storage
	// (the CACHE_VALUE_MAX guard). A result over this size is
	// still returned to the caller, just never written to the store.
	MaxValueBytes int
}

func DefaultOptions() Options {
	return Options{
		LockTTL:        30 * time.Second,
		WaitTimeout:    10 * time.Second,
		PollInterval:   50 * time.Millisecond,
		FallbackPolicy: FallbackPromote,
		MaxValueBytes:  8 << 20,
	}
}

// Cache orchestrates fingerprinting, cache lookup, and single-flight
// coalescing. execute is the caller-supplied leader function: it runs
// the query via C6/C1 and returns the QueryResult to cache.
type Cache struct {
	store   Store
	opts    Options
	ownerID string

	// group deduplicates concurrent leader elections within this single
	// process even when store is a distributed backend, so the per-process
	// leader path never issues two concurrent acquireLock calls for the
	// same key from goroutines it itself is scheduling.
	group singleflight.Group
}

func New(store Store, opts Options, ownerID string) *Cache {
	return &Cache{store: store, opts: opts, ownerID: ownerID}
}

type sentinel struct {
	Error string `json:"error,omitempty"`
}

// Get fetches a cached result if present, with CacheUnavailable swallowed
// (logged by the caller, not returned) rather than surfaced as a failure.
func (c *Cache) Get(ctx context.Context, key string) (*types.QueryResult, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var s sentinel
	if json.Unmarshal(raw, &s) == nil && s.Error != "" {
		return nil, false
	}
	var result types.QueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false
	}
	result.CacheHit = true
	return &result, true
}

// Execute runs the single-flight coalescing protocol for fingerprint key,
// calling leader() at most once per coalescing window.
func (c *Cache) Execute(ctx context.Context, key string, ttl time.Duration, leader func(ctx context.Context) (*types.QueryResult, error)) (*types.QueryResult, error) {
	if res, ok := c.Get(ctx, key); ok {
		return res, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.runLeaderOrFollower(ctx, key, ttl, leader)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.QueryResult), nil
}

func (c *Cache) runLeaderOrFollower(ctx context.Context, key string, ttl time.Duration, leader func(ctx context.Context) (*types.QueryResult, error)) (*types.QueryResult, error) {
	acquired, lockErr := c.store.AcquireLock(ctx, key, c.ownerID, c.opts.LockTTL)
	if lockErr != nil {
		// Lock backend unreachable: degrade to executing without
		// coalescing rather than failing the request.
		return leader(ctx)
	}

	if acquired {
		return c.lead(ctx, key, ttl, leader)
	}
	result, err := c.follow(ctx, key)
	if err == errPromoted {
		return c.lead(ctx, key, ttl, leader)
	}
	return result, err
}

func (c *Cache) lead(ctx context.Context, key string, ttl time.Duration, leader func(ctx context.Context) (*types.QueryResult, error)) (result *types.QueryResult, err error) {
	defer func() {
		_ = c.store.ReleaseLock(ctx, key, c.ownerID)
	}()

	if res, ok := c.Get(ctx, key); ok {
		return res, nil
	}

	result, err = leader(ctx)
	if err != nil {
		sentinelBytes, _ := json.Marshal(sentinel{Error: err.Error()})
		_ = c.store.SetWithTTL(ctx, key, sentinelBytes, 5*time.Second)
		return nil, err
	}

	result.Fingerprint = key
	b, marshalErr := json.Marshal(result)
	if marshalErr == nil && (c.opts.MaxValueBytes <= 0 || len(b) <= c.opts.MaxValueBytes) {
		_ = c.store.SetWithTTL(ctx, key, b, ttl)
	}
	return result, nil
}

func (c *Cache) follow(ctx context.Context, key string) (*types.QueryResult, error) {
	deadline := time.Now().Add(c.opts.WaitTimeout)
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		if res, ok := c.Get(ctx, key); ok {
			return res, nil
		}
		if time.Now().After(deadline) {
			if c.opts.FallbackPolicy == FallbackFail {
				return nil, errors.NewCoalesceTimeout(key)
			}
			acquired, err := c.store.AcquireLock(ctx, key, c.ownerID, c.opts.LockTTL)
			if err == nil && acquired {
				return nil, errPromoted // caller must re-invoke Execute's leader path
			}
			return nil, errors.NewCoalesceTimeout(key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// errPromoted signals the follower path should retry as leader. It never
// escapes this package — runLeaderOrFollower handles it.
var errPromoted = errors.NewInternal("promoted to leader", nil)
