package sql

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect names the target SQL engine for rendering. Each dialect owns its
// identifier-quoting character and placeholder format.
type Dialect struct {
	Name              string
	QuoteChar         string
	PlaceholderFormat sq.PlaceholderFormat

	// InlineValues, when set, means the driver's parameter binding can't be
	// trusted (Trino's connector support is uneven), so Build renders bind
	// args as literals in the statement text instead of passing them
	// through the driver.
	InlineValues bool
}

var (
	DialectPostgres  = Dialect{Name: "postgres", QuoteChar: `"`, PlaceholderFormat: sq.Dollar}
	DialectRedshift  = Dialect{Name: "redshift", QuoteChar: `"`, PlaceholderFormat: sq.Dollar}
	DialectTimescale = Dialect{Name: "timescaledb", QuoteChar: `"`, PlaceholderFormat: sq.Dollar}
	DialectCockroach = Dialect{Name: "cockroachdb", QuoteChar: `"`, PlaceholderFormat: sq.Dollar}
	DialectMySQL     = Dialect{Name: "mysql", QuoteChar: "`", PlaceholderFormat: sq.Question}
	DialectMariaDB   = Dialect{Name: "mariadb", QuoteChar: "`", PlaceholderFormat: sq.Question}
	DialectSnowflake = Dialect{Name: "snowflake", QuoteChar: `"`, PlaceholderFormat: sq.Question}
	DialectBigQuery  = Dialect{Name: "bigquery", QuoteChar: "`", PlaceholderFormat: sq.AtP}
	DialectSpark     = Dialect{Name: "databricks", QuoteChar: "`", PlaceholderFormat: sq.Question}
	DialectClickHouse = Dialect{Name: "clickhouse", QuoteChar: `"`, PlaceholderFormat: sq.Question}
	DialectTrino     = Dialect{Name: "trino", QuoteChar: `"`, PlaceholderFormat: sq.Question, InlineValues: true}
	DialectSQLServer = Dialect{Name: "sqlserver", QuoteChar: `"`, PlaceholderFormat: sq.Question}
	DialectOracle    = Dialect{Name: "oracle", QuoteChar: `"`, PlaceholderFormat: sq.Colon}
	DialectDuckDB    = Dialect{Name: "duckdb", QuoteChar: `"`, PlaceholderFormat: sq.Question}
	DialectSQLite    = Dialect{Name: "sqlite", QuoteChar: `"`, PlaceholderFormat: sq.Question}
)

var byName = map[string]Dialect{
	DialectPostgres.Name:   DialectPostgres,
	DialectRedshift.Name:   DialectRedshift,
	DialectTimescale.Name:  DialectTimescale,
	DialectCockroach.Name:  DialectCockroach,
	DialectMySQL.Name:      DialectMySQL,
	DialectMariaDB.Name:    DialectMariaDB,
	DialectSnowflake.Name:  DialectSnowflake,
	DialectBigQuery.Name:   DialectBigQuery,
	DialectSpark.Name:      DialectSpark,
	DialectClickHouse.Name: DialectClickHouse,
	DialectTrino.Name:      DialectTrino,
	DialectSQLServer.Name:  DialectSQLServer,
	DialectOracle.Name:     DialectOracle,
	DialectDuckDB.Name:     DialectDuckDB,
	DialectSQLite.Name:     DialectSQLite,
}

// DialectByName resolves an engine tag (as stored in Dataset.Engine) to its
// Dialect. Unknown engines fall back to the ANSI-ish postgres-flavored
// defaults rather than failing, since quoting/placeholder choice alone
// never determines correctness of a given engine's SQL acceptance.
func DialectByName(name string) Dialect {
	if d, ok := byName[name]; ok {
		return d
	}
	return DialectPostgres
}

// Quote wraps an identifier in the dialect's quote character, escaping any
// embedded quote character by doubling it.
func (d Dialect) Quote(ident string) string {
	q := d.QuoteChar
	escaped := ident
	if strings.Contains(ident, q) {
		escaped = strings.ReplaceAll(ident, q, q+q)
	}
	return q + escaped + q
}
