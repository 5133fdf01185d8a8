// Package mysqlfamily provides the adapter for MySQL and MariaDB, the
// MySQL-dialect family, both served by the same wire-compatible driver.
package mysqlfamily

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql"

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/adapters/sqlbase"
	"github.com/canonica-labs/semgate/internal/capabilities"
)

func init() {
	adapters.RegisterFactory("mysql", newFactory("mysql"))
	adapters.RegisterFactory("mariadb", newFactory("mariadb"))
}

func newFactory(name string) adapters.Factory {
	return func(cfg adapters.SourceConfig) (adapters.EngineAdapter, error) {
		db, err := sql.Open("mysql", cfg.DSN)
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
		return sqlbase.New(name, db, caps, "SELECT 1"), nil
	}
}
