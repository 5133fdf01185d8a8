package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bootstrap.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

const validDoc = `
sources:
  local:
    engine: duckdb
    dsn: ":memory:"

datasets:
  orders:
    sourceId: local
    baseTable: orders
    rls:
      enabled: true
      column: tenant_id
      allowAdminBypass: true
    fields:
      tenant_id:
        kind: dimension
        type: string
      city:
        kind: dimension
        type: string
      amount:
        kind: measure
        type: decimal
      total_revenue:
        kind: measure
        type: decimal
        aggregation: SUM
        expression: amount

erd:
  local:
    edges:
      - sourceTable: orders
        sourceCol: customer_id
        targetTable: customers
        targetCol: id
        cardinality: many_to_one
        joinType: left

tokens:
  dev-token:
    tenant: acme-corp
    role: admin
`

func TestLoad_ParsesWellFormedDocument(t *testing.T) {
	path := writeDoc(t, validDoc)
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(doc.Sources) != 1 || len(doc.Datasets) != 1 {
		t.Errorf("doc = %+v, want one source and one dataset", doc)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeDoc(t, "sources:\n  local:\n    engine: duckdb\n    bogusField: x\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil, want rejection of unknown field bogusField")
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("Load() error = nil, want error for missing file")
	}
}

func TestValidate_AcceptsWellFormedDocument(t *testing.T) {
	doc, err := Load(writeDoc(t, validDoc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !doc.IsValidated() {
		t.Error("IsValidated() = false after a successful Validate()")
	}
}

func TestValidate_RejectsDatasetWithUnknownSource(t *testing.T) {
	content := `
sources:
  local:
    engine: duckdb
datasets:
  orders:
    sourceId: missing-source
    baseTable: orders
    fields:
      city:
        kind: dimension
`
	doc, err := Load(writeDoc(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := doc.Validate(); err == nil {
		t.Error("Validate() error = nil, want rejection of unknown sourceId reference")
	}
}

func TestValidate_RejectsDatasetWithNoFields(t *testing.T) {
	content := `
sources:
  local:
    engine: duckdb
datasets:
  orders:
    sourceId: local
    baseTable: orders
    fields: {}
`
	doc, err := Load(writeDoc(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := doc.Validate(); err == nil {
		t.Error("Validate() error = nil, want rejection of a dataset with zero fields")
	}
}

func TestValidate_RejectsInvalidFieldKind(t *testing.T) {
	content := `
sources:
  local:
    engine: duckdb
datasets:
  orders:
    sourceId: local
    baseTable: orders
    fields:
      city:
        kind: bogus_kind
`
	doc, err := Load(writeDoc(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := doc.Validate(); err == nil {
		t.Error("Validate() error = nil, want rejection of an invalid field kind")
	}
}

func TestValidate_RejectsRLSEnabledWithoutColumn(t *testing.T) {
	content := `
sources:
  local:
    engine: duckdb
datasets:
  orders:
    sourceId: local
    baseTable: orders
    rls:
      enabled: true
    fields:
      city:
        kind: dimension
`
	doc, err := Load(writeDoc(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := doc.Validate(); err == nil {
		t.Error("Validate() error = nil, want rejection of rls.enabled without rls.column")
	}
}

func TestValidate_RejectsRLSColumnNotADeclaredField(t *testing.T) {
	content := `
sources:
  local:
    engine: duckdb
datasets:
  orders:
    sourceId: local
    baseTable: orders
    rls:
      enabled: true
      column: tenant_id
    fields:
      city:
        kind: dimension
`
	doc, err := Load(writeDoc(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := doc.Validate(); err == nil {
		t.Error("Validate() error = nil, want rejection when rls.column names no declared field")
	}
}

func TestValidate_RejectsERDWithUnknownSource(t *testing.T) {
	content := `
sources:
  local:
    engine: duckdb
datasets:
  orders:
    sourceId: local
    baseTable: orders
    fields:
      city:
        kind: dimension
erd:
  missing-source:
    edges: []
`
	doc, err := Load(writeDoc(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := doc.Validate(); err == nil {
		t.Error("Validate() error = nil, want rejection of an erd block referencing an unknown source")
	}
}

func TestValidate_RejectsInvalidCardinality(t *testing.T) {
	content := `
sources:
  local:
    engine: duckdb
datasets:
  orders:
    sourceId: local
    baseTable: orders
    fields:
      city:
        kind: dimension
erd:
  local:
    edges:
      - sourceTable: orders
        sourceCol: a
        targetTable: customers
        targetCol: b
        cardinality: bogus
        joinType: left
`
	doc, err := Load(writeDoc(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := doc.Validate(); err == nil {
		t.Error("Validate() error = nil, want rejection of an invalid cardinality tag")
	}
}

func TestValidate_RejectsTokenWithoutTenant(t *testing.T) {
	content := `
sources:
  local:
    engine: duckdb
datasets:
  orders:
    sourceId: local
    baseTable: orders
    fields:
      city:
        kind: dimension
tokens:
  sometoken:
    role: admin
`
	doc, err := Load(writeDoc(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := doc.Validate(); err == nil {
		t.Error("Validate() error = nil, want rejection of a token with no tenant")
	}
}

func TestApply_RequiresValidationFirst(t *testing.T) {
	doc, err := Load(writeDoc(t, validDoc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := doc.Apply(); err == nil {
		t.Error("Apply() error = nil, want rejection before Validate() has run")
	}
}

func TestApply_MaterializesCatalogERDAndTokens(t *testing.T) {
	doc, err := Load(writeDoc(t, validDoc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	applied, err := doc.Apply()
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	ds, ok := applied.Catalog.Datasets["orders"]
	if !ok {
		t.Fatal("Catalog has no orders dataset registered")
	}
	if ds.Engine != "duckdb" {
		t.Errorf("Engine = %q, want duckdb inherited from source", ds.Engine)
	}
	if !ds.RLS.Enabled || ds.RLS.Column != "tenant_id" {
		t.Errorf("RLS = %+v, want enabled on tenant_id", ds.RLS)
	}
	if len(ds.Fields) != 4 {
		t.Errorf("len(Fields) = %d, want 4", len(ds.Fields))
	}

	model, ok := applied.ERDStore.Models["local"]
	if !ok || len(model.Edges) != 1 {
		t.Errorf("ERDStore model = %+v, want one edge under 'local'", model)
	}

	if len(applied.Sources) != 1 || applied.Sources[0].SourceID != "local" {
		t.Errorf("Sources = %+v, want one source 'local'", applied.Sources)
	}

	tctx, err := applied.Authenticator.ValidateToken(context.Background(), "dev-token")
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if tctx.Tenant != "acme-corp" {
		t.Errorf("Tenant = %q, want acme-corp", tctx.Tenant)
	}
}

func TestWriteExample_ProducesLoadableDocument(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteExample(dir)
	if err != nil {
		t.Fatalf("WriteExample() error = %v", err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of generated example error = %v", err)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("Validate() of generated example error = %v", err)
	}
}
