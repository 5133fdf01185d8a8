// Package clickhouse provides the ClickHouse engine adapter. ClickHouse
// uses named placeholders (`{name}`) with type hints; the clickhouse-go
// driver accepts the standard `?`-positional form through
// database/sql, so no placeholder rewriting is needed here beyond what
// internal/sql already renders.
package clickhouse

import (
	"database/sql"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/adapters/sqlbase"
	"github.com/canonica-labs/semgate/internal/capabilities"
)

func init() {
	adapters.RegisterFactory("clickhouse", newFactory)
}

func newFactory(cfg adapters.SourceConfig) (adapters.EngineAdapter, error) {
	db, err := sql.Open("clickhouse", cfg.DSN)
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
	})
	return sqlbase.New("clickhouse", db, caps, "SELECT 1"), nil
}
