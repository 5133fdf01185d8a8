// Package duckdb provides the embedded file-store engine adapter: DuckDB
// queries Parquet/CSV files directly off disk or object storage without a
// separate server process, and also serves as the default
// local-development engine.
package duckdb

import (
	"database/sql"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/adapters/sqlbase"
	"github.com/canonica-labs/semgate/internal/capabilities"
)

func init() {
	adapters.RegisterFactory("duckdb", newFactory)
}

func newFactory(cfg adapters.SourceConfig) (adapters.EngineAdapter, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	caps := capabilities.NewCapabilitySet([]capabilities.Capability{
		capabilities.CapabilityRead,
		capabilities.CapabilityAggregate,
		capabilities.CapabilityWindow,
		capabilities.CapabilityCTE,
	})
	return sqlbase.New("duckdb", db, caps, "SELECT 1"), nil
}
