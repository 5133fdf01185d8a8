// Package oracle provides the Oracle engine adapter. Oracle uses `:n`
// placeholders (rendered by internal/sql's Colon PlaceholderFormat) and a
// DUAL-table health check, since Oracle has no bare `SELECT 1`.
package oracle

import (
	"database/sql"

	_ "github.com/sijms/go-ora/v2"

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/adapters/sqlbase"
	"github.com/canonica-labs/semgate/internal/capabilities"
)

func init() {
	adapters.RegisterFactory("oracle", newFactory)
}

func newFactory(cfg adapters.SourceConfig) (adapters.EngineAdapter, error) {
	db, err := sql.Open("oracle", cfg.DSN)
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
	return sqlbase.New("oracle", db, caps, "SELECT 1 FROM DUAL"), nil
}
