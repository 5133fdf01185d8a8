// Package trino provides the Trino/Presto engine adapter. Parameter
// support varies across Trino connectors, so internal/sql's builder
// renders this dialect's statements with bind args inlined as literals
// (DialectTrino.InlineValues) rather than passed through the driver; this
// adapter receives an already-literal statement and forwards it with a
// nil arg slice.
package trino

import (
	"database/sql"

	_ "github.com/trinodb/trino-go-client/trino"

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/adapters/sqlbase"
	"github.com/canonica-labs/semgate/internal/capabilities"
)

func init() {
	adapters.RegisterFactory("trino", newFactory)
}

func newFactory(cfg adapters.SourceConfig) (adapters.EngineAdapter, error) {
	db, err := sql.Open("trino", cfg.DSN)
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
	return sqlbase.New("trino", db, caps, "SELECT 1"), nil
}
