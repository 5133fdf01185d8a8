// Package bigquery provides the Google BigQuery engine adapter. BigQuery
// has no database/sql driver in general use, so unlike the other engines
// this adapter talks to cloud.google.com/go/bigquery directly. Placeholders
// are named `@p0, @p1, ...`; internal/sql's AtP placeholder format already
// renders them that way, so Execute just maps the positional args slice
// onto query parameters of the same name.
package bigquery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/capabilities"
	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/types"
)

func init() {
	adapters.RegisterFactory("bigquery", newFactory)
}

func newFactory(cfg adapters.SourceConfig) (adapters.EngineAdapter, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("bigquery: project is required")
	}
	var opts []option.ClientOption
	if key := cfg.Extra["credentialsJSON"]; key != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(key)))
	}
	client, err := bigquery.NewClient(context.Background(), cfg.Project, opts...)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client, dataset: cfg.Dataset, location: cfg.Extra["location"]}, nil
}

// Adapter implements adapters.EngineAdapter for BigQuery.
type Adapter struct {
	mu       sync.RWMutex
	client   *bigquery.Client
	dataset  string
	location string
	closed   bool
}

func (a *Adapter) Name() string { return "bigquery" }

func (a *Adapter) Capabilities() capabilities.CapabilitySet {
	return capabilities.NewCapabilitySet([]capabilities.Capability{
		capabilities.CapabilityRead,
		capabilities.CapabilityAggregate,
		capabilities.CapabilityWindow,
		capabilities.CapabilityCTE,
		capabilities.CapabilityTimeTravel, // BigQuery supports up to 7 days
	})
}

func (a *Adapter) Execute(ctx context.Context, query string, args []interface{}) (*types.QueryResult, error) {
	a.mu.RLock()
	if a.closed || a.client == nil {
		a.mu.RUnlock()
		return nil, errors.NewConnectionError("bigquery", nil)
	}
	client := a.client
	a.mu.RUnlock()

	q := client.Query(query)
	if a.dataset != "" {
		q.DefaultDatasetID = a.dataset
	}
	if a.location != "" {
		q.Location = a.location
	}
	q.Parameters = make([]bigquery.QueryParameter, len(args))
	for i, v := range args {
		q.Parameters[i] = bigquery.QueryParameter{Name: fmt.Sprintf("p%d", i), Value: v}
	}

	start := time.Now()
	it, err := q.Read(ctx)
	if err != nil {
		return nil, errors.NewQueryError("bigquery", err)
	}
	result, err := collectResults(it)
	if err != nil {
		return nil, err
	}
	result.ExecutionMs = time.Since(start).Milliseconds()
	return result, nil
}

func collectResults(it *bigquery.RowIterator) (*types.QueryResult, error) {
	cols := make([]types.Column, len(it.Schema))
	for i, f := range it.Schema {
		cols[i] = types.Column{Name: f.Name, Type: string(f.Type)}
	}

	var result types.QueryResult
	result.Columns = cols
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.NewQueryError("bigquery", err)
		}
		m := make(map[string]interface{}, len(cols))
		for i, v := range row {
			m[cols[i].Name] = v
		}
		result.Rows = append(result.Rows, m)
	}
	result.RowCount = len(result.Rows)
	return &result, nil
}

func (a *Adapter) CheckHealth(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed || a.client == nil {
		return errors.NewConnectionError("bigquery", nil)
	}
	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	it, err := a.client.Query("SELECT 1").Read(healthCtx)
	if err != nil {
		return errors.NewConnectionError("bigquery", err)
	}
	var row []bigquery.Value
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return errors.NewConnectionError("bigquery", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}
