// Package postgresfamily provides one adapter implementation shared by every
// engine that speaks the Postgres wire protocol and placeholder form:
// PostgreSQL itself, Redshift, TimescaleDB, and CockroachDB. They differ
// only in DSN shape and which capabilities their SQL dialect actually
// supports.
package postgresfamily

import (
	"database/sql"

	_ "github.com/lib/pq" // postgres wire protocol driver, shared by the whole family

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/adapters/sqlbase"
	"github.com/canonica-labs/semgate/internal/capabilities"
)

func init() {
	adapters.RegisterFactory("postgres", newFactory("postgres", fullCaps()))
	adapters.RegisterFactory("redshift", newFactory("redshift", redshiftCaps()))
	adapters.RegisterFactory("timescaledb", newFactory("timescaledb", fullCaps()))
	adapters.RegisterFactory("cockroachdb", newFactory("cockroachdb", fullCaps()))
}

func fullCaps() capabilities.CapabilitySet {
	return capabilities.NewCapabilitySet([]capabilities.Capability{
		capabilities.CapabilityRead,
		capabilities.CapabilityAggregate,
		capabilities.CapabilityWindow,
		capabilities.CapabilityCTE,
	})
}

// redshiftCaps drops CTE: Redshift's CTE support historically lags behind
// vanilla Postgres on recursive/materialized forms, so the dataset-level
// capability check treats it conservatively.
func redshiftCaps() capabilities.CapabilitySet {
	return capabilities.NewCapabilitySet([]capabilities.Capability{
		capabilities.CapabilityRead,
		capabilities.CapabilityAggregate,
		capabilities.CapabilityWindow,
	})
}

func newFactory(name string, caps capabilities.CapabilitySet) adapters.Factory {
	return func(cfg adapters.SourceConfig) (adapters.EngineAdapter, error) {
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, err
		}
		return sqlbase.New(name, db, caps, "SELECT 1"), nil
	}
}
