// Command canonic is the semantic analytics gateway's CLI: it drives the
// in-process pipeline directly, with no server to start and no network
// hop between command and pipeline.
package main

import (
	"os"

	"github.com/canonica-labs/semgate/internal/cli"

	_ "github.com/canonica-labs/semgate/internal/adapters/bigquery"
	_ "github.com/canonica-labs/semgate/internal/adapters/clickhouse"
	_ "github.com/canonica-labs/semgate/internal/adapters/databricks"
	_ "github.com/canonica-labs/semgate/internal/adapters/duckdb"
	_ "github.com/canonica-labs/semgate/internal/adapters/mysqlfamily"
	_ "github.com/canonica-labs/semgate/internal/adapters/oracle"
	_ "github.com/canonica-labs/semgate/internal/adapters/postgresfamily"
	_ "github.com/canonica-labs/semgate/internal/adapters/snowflake"
	_ "github.com/canonica-labs/semgate/internal/adapters/sqlitefile"
	_ "github.com/canonica-labs/semgate/internal/adapters/sqlserver"
	_ "github.com/canonica-labs/semgate/internal/adapters/trino"
)

// Set at build time via -ldflags.
var (
	version   = ""
	gitCommit = ""
	buildDate = ""
)

func main() {
	cli.SetVersionInfo(version, gitCommit, buildDate)
	os.Exit(cli.New().Execute())
}
