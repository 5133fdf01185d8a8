// Package sqlserver provides the SQL Server engine adapter. SQL Server
// supports positional `?` via ODBC or `%s` via TDS; go-mssqldb's TDS path
// accepts the standard database/sql `?`-positional form.
package sqlserver

import (
	"database/sql"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/adapters/sqlbase"
	"github.com/canonica-labs/semgate/internal/capabilities"
)

func init() {
	adapters.RegisterFactory("sqlserver", newFactory)
}

func newFactory(cfg adapters.SourceConfig) (adapters.EngineAdapter, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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
	return sqlbase.New("sqlserver", db, caps, "SELECT 1"), nil
}
