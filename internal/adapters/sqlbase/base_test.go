package sqlbase

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"testing"

	"github.com/canonica-labs/semgate/internal/capabilities"
	gatewayerrors "github.com/canonica-labs/semgate/internal/errors"
)

// fakeDriver/fakeConn/fakeStmt/fakeRows implement the minimal legacy
// database/sql/driver interfaces so Adapter can be exercised against a
// real *sql.DB without a live database connection.
type fakeDriver struct {
	failOpen bool
}

func (d *fakeDriver) Open(name string) (driver.Conn, error) {
	if d.failOpen {
		return nil, errors.New("connection refused")
	}
	return &fakeConn{}, nil
}

type fakeConn struct {
	failQuery bool
	failExec  bool
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{conn: c}, nil
}
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions not supported") }

type fakeStmt struct {
	conn *fakeConn
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }
func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	if s.conn.failExec {
		return nil, errors.New("exec failed")
	}
	return driver.RowsAffected(0), nil
}
func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	if s.conn.failQuery {
		return nil, errors.New("query failed")
	}
	return &fakeRows{
		cols:    []string{"id", "name"},
		dbTypes: []string{"INTEGER", "TEXT"},
		data:    [][]driver.Value{{int64(1), "alice"}, {int64(2), "bob"}},
	}, nil
}

type fakeRows struct {
	cols    []string
	dbTypes []string
	data    [][]driver.Value
	pos     int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }
func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}

// ColumnTypeDatabaseTypeName implements driver.RowsColumnTypeDatabaseTypeName
// so Adapter.Execute can propagate engine-native column types.
func (r *fakeRows) ColumnTypeDatabaseTypeName(index int) string { return r.dbTypes[index] }

func openFakeDB(t *testing.T, driverName string) *sql.DB {
	t.Helper()
	sql.Register(driverName, &fakeDriver{})
	db, err := sql.Open(driverName, "fake")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	return db
}

func TestAdapter_Execute_ReturnsRowsAndColumns(t *testing.T) {
	db := openFakeDB(t, "fake-ok-1")
	a := New("testengine", db, capabilities.NewCapabilitySet([]capabilities.Capability{capabilities.CapabilityRead}), "")

	result, err := a.Execute(context.Background(), "SELECT id, name FROM users", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", result.RowCount)
	}
	if len(result.Columns) != 2 || result.Columns[0].Name != "id" {
		t.Errorf("Columns = %+v, want [id name]", result.Columns)
	}
	if result.Columns[0].Type != "INTEGER" || result.Columns[1].Type != "TEXT" {
		t.Errorf("Columns types = [%q %q], want [INTEGER TEXT]", result.Columns[0].Type, result.Columns[1].Type)
	}
	if result.Rows[0]["name"] != "alice" {
		t.Errorf("Rows[0][name] = %v, want alice", result.Rows[0]["name"])
	}
	if result.ExecutionMs < 0 {
		t.Errorf("ExecutionMs = %d, want >= 0", result.ExecutionMs)
	}
}

func TestAdapter_Execute_QueryErrorWrapsAsQueryError(t *testing.T) {
	sql.Register("fake-queryerr", &failingDriver{})
	db, err := sql.Open("fake-queryerr", "fake")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	a := New("testengine", db, capabilities.NewCapabilitySet(nil), "")

	_, err = a.Execute(context.Background(), "SELECT 1", nil)
	if err == nil {
		t.Fatal("Execute() error = nil, want QueryError")
	}
	if kind, ok := gatewayerrors.KindOf(err); !ok || kind != gatewayerrors.KindQueryError {
		t.Errorf("Kind = %v (ok=%v), want %v", kind, ok, gatewayerrors.KindQueryError)
	}
}

// failingDriver always opens a conn whose Query fails, for testing the
// QueryError translation path.
type failingDriver struct{}

func (d *failingDriver) Open(name string) (driver.Conn, error) {
	return &fakeConn{failQuery: true}, nil
}

func TestAdapter_CheckHealth_Success(t *testing.T) {
	db := openFakeDB(t, "fake-ok-2")
	a := New("testengine", db, capabilities.NewCapabilitySet(nil), "")

	if err := a.CheckHealth(context.Background()); err != nil {
		t.Errorf("CheckHealth() error = %v, want nil", err)
	}
}

func TestAdapter_CheckHealth_FailsAfterClose(t *testing.T) {
	db := openFakeDB(t, "fake-ok-3")
	a := New("testengine", db, capabilities.NewCapabilitySet(nil), "")

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	err := a.CheckHealth(context.Background())
	if err == nil {
		t.Fatal("CheckHealth() error = nil after Close(), want ConnectionError")
	}
	if kind, ok := gatewayerrors.KindOf(err); !ok || kind != gatewayerrors.KindConnectionError {
		t.Errorf("Kind = %v (ok=%v), want %v", kind, ok, gatewayerrors.KindConnectionError)
	}
}

func TestAdapter_Close_IsIdempotent(t *testing.T) {
	db := openFakeDB(t, "fake-ok-4")
	a := New("testengine", db, capabilities.NewCapabilitySet(nil), "")

	if err := a.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil (idempotent)", err)
	}
}

func TestAdapter_Name_And_Capabilities(t *testing.T) {
	db := openFakeDB(t, "fake-ok-5")
	caps := capabilities.NewCapabilitySet([]capabilities.Capability{capabilities.CapabilityWindow})
	a := New("bigquery", db, caps, "")

	if a.Name() != "bigquery" {
		t.Errorf("Name() = %q, want bigquery", a.Name())
	}
	if !a.Capabilities().Has(capabilities.CapabilityWindow) {
		t.Error("Capabilities() missing CapabilityWindow")
	}
}

func TestAdapter_DefaultHealthQuery(t *testing.T) {
	db := openFakeDB(t, "fake-ok-6")
	a := New("testengine", db, capabilities.NewCapabilitySet(nil), "")
	if a.health != "SELECT 1" {
		t.Errorf("health = %q, want default SELECT 1", a.health)
	}
}
