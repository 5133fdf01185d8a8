// Package sqlbase provides a reusable EngineAdapter built on database/sql,
// shared by every engine whose Go driver speaks that interface. Per-engine
// packages supply the driver import, DSN handling, and capability set; this
// package supplies the common Execute/CheckHealth/Close machinery so each
// engine package stays a thin, stateless, replaceable wrapper.
package sqlbase

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/canonica-labs/semgate/internal/capabilities"
	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/types"
)

// Adapter wraps a *sql.DB with the EngineAdapter contract. HealthQuery
// defaults to "SELECT 1" when empty; Oracle and others that reject it
// supply their own (e.g. "SELECT 1 FROM DUAL").
type Adapter struct {
	mu     sync.RWMutex
	db     *sql.DB
	name   string
	caps   capabilities.CapabilitySet
	health string
	closed bool
}

// New wraps an already-opened *sql.DB. Opening is left to the caller since
// driver registration and DSN parsing are engine-specific.
func New(name string, db *sql.DB, caps capabilities.CapabilitySet, healthQuery string) *Adapter {
	if healthQuery == "" {
		healthQuery = "SELECT 1"
	}
	return &Adapter{name: name, db: db, caps: caps, health: healthQuery}
}

func (a *Adapter) Name() string                           { return a.name }
func (a *Adapter) Capabilities() capabilities.CapabilitySet { return a.caps }

func (a *Adapter) Execute(ctx context.Context, query string, args []interface{}) (*types.QueryResult, error) {
	a.mu.RLock()
	if a.closed || a.db == nil {
		a.mu.RUnlock()
		return nil, errors.NewConnectionError(a.name, nil)
	}
	db := a.db
	a.mu.RUnlock()

	start := time.Now()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewQueryError(a.name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.NewQueryError(a.name, err)
	}

	var result types.QueryResult
	result.Columns = make([]types.Column, len(cols))
	colTypes, _ := rows.ColumnTypes()
	for i, c := range cols {
		result.Columns[i] = types.Column{Name: c}
		if i < len(colTypes) {
			result.Columns[i].Type = colTypes[i].DatabaseTypeName()
		}
	}

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.NewQueryError(a.name, err)
		}
		row := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryError(a.name, err)
	}

	result.RowCount = len(result.Rows)
	result.ExecutionMs = time.Since(start).Milliseconds()
	return &result, nil
}

func (a *Adapter) CheckHealth(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed || a.db == nil {
		return errors.NewConnectionError(a.name, nil)
	}
	if _, err := a.db.ExecContext(ctx, a.health); err != nil {
		return errors.NewConnectionError(a.name, err)
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
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
