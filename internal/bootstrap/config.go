// Package bootstrap loads the declarative, GitOps-friendly YAML document
// that wires together everything the in-process pipeline needs to run
// standalone: datasets, their RLS policy and fields, the sources they read
// from, and the ERD edges the join planner walks. It plays the role the
// catalog, source-config, and ERD-store collaborators play in a networked
// deployment, adapted for a single-binary CLI that has no external control
// plane to talk to.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/auth"
	"github.com/canonica-labs/semgate/internal/semantic"
	"github.com/canonica-labs/semgate/internal/types"
)

// Document is the top-level shape of a bootstrap YAML file.
type Document struct {
	Sources  map[string]SourceSpec  `yaml:"sources"`
	Datasets map[string]DatasetSpec `yaml:"datasets"`
	ERD      map[string]ERDSpec     `yaml:"erd"` // keyed by sourceId
	Tokens   map[string]TokenSpec   `yaml:"tokens,omitempty"`

	path      string
	validated bool
}

// TokenSpec binds a static bearer token to the tenant context it resolves
// to, loaded into a StaticTokenAuthenticator at apply time.
type TokenSpec struct {
	Tenant string `yaml:"tenant"`
	Role   string `yaml:"role"`
	KeyID  string `yaml:"keyId,omitempty"`
}

// SourceSpec declares one adapter connection, matching adapters.SourceConfig.
type SourceSpec struct {
	Engine  string            `yaml:"engine"`
	DSN     string            `yaml:"dsn,omitempty"`
	Project string            `yaml:"project,omitempty"`
	Dataset string            `yaml:"dataset,omitempty"`
	Catalog string            `yaml:"catalog,omitempty"`
	Extra   map[string]string `yaml:"extra,omitempty"`
}

// FieldSpec declares one dataset field.
type FieldSpec struct {
	PhysicalColumn       string `yaml:"physicalColumn,omitempty"`
	Kind                 string `yaml:"kind"`
	Type                 string `yaml:"type,omitempty"`
	Aggregation          string `yaml:"aggregation,omitempty"`
	Expression           string `yaml:"expression,omitempty"`
	CalculatedExpression string `yaml:"calculatedExpression,omitempty"`
	SourceTable          string `yaml:"sourceTable,omitempty"`
}

// RLSSpec declares a dataset's row-level-security policy.
type RLSSpec struct {
	Enabled          bool   `yaml:"enabled"`
	Column           string `yaml:"column,omitempty"`
	Mode             string `yaml:"mode,omitempty"`
	AllowAdminBypass bool   `yaml:"allowAdminBypass,omitempty"`
}

// DatasetSpec declares one logical dataset.
type DatasetSpec struct {
	SourceID       string               `yaml:"sourceId"`
	Engine         string               `yaml:"engine"`
	BaseTable      string               `yaml:"baseTable"`
	Fields         map[string]FieldSpec `yaml:"fields"`
	RLS            RLSSpec              `yaml:"rls"`
	AllowedRoles   []string             `yaml:"allowedRoles,omitempty"`
	QueryTimeout   string               `yaml:"queryTimeout,omitempty"`
	CacheTTL       string               `yaml:"cacheTtl,omitempty"`
	AllowCrossJoin bool                 `yaml:"allowCrossJoin,omitempty"`
	DefaultLimit   int                  `yaml:"defaultLimit,omitempty"`
}

// ERDEdgeSpec declares one join edge.
type ERDEdgeSpec struct {
	SourceSchema string `yaml:"sourceSchema,omitempty"`
	SourceTable  string `yaml:"sourceTable"`
	SourceCol    string `yaml:"sourceCol"`
	TargetSchema string `yaml:"targetSchema,omitempty"`
	TargetTable  string `yaml:"targetTable"`
	TargetCol    string `yaml:"targetCol"`
	Cardinality  string `yaml:"cardinality"`
	JoinType     string `yaml:"joinType"`
	Active       *bool  `yaml:"active,omitempty"` // nil means true
}

// ERDSpec is the set of edges for one source's join graph.
type ERDSpec struct {
	Edges []ERDEdgeSpec `yaml:"edges"`
}

// Load reads and structurally parses path, but does not yet validate
// cross-references (that's Validate's job, mirroring the two-phase
// load-then-validate split the rest of the ambient stack uses).
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bootstrap file: %w", err)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true) // unknown fields MUST fail
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap YAML (unknown or malformed fields): %w", err)
	}
	doc.path = path
	return &doc, nil
}

// Validate performs the structural checks a dry-run needs before Apply:
// every dataset's sourceId must resolve, every RLS column must name a
// declared field, every field kind and aggregation must be a known tag.
// A field's declared type is not checked.
func (d *Document) Validate() error {
	for id, src := range d.Sources {
		if src.Engine == "" {
			return fmt.Errorf("source %q: engine is required", id)
		}
	}

	for name, ds := range d.Datasets {
		if ds.SourceID == "" {
			return fmt.Errorf("dataset %q: sourceId is required", name)
		}
		src, ok := d.Sources[ds.SourceID]
		if !ok {
			return fmt.Errorf("dataset %q: references unknown source %q", name, ds.SourceID)
		}
		if ds.Engine == "" && src.Engine == "" {
			return fmt.Errorf("dataset %q: engine could not be determined from source %q", name, ds.SourceID)
		}
		if ds.BaseTable == "" {
			return fmt.Errorf("dataset %q: baseTable is required", name)
		}
		if len(ds.Fields) == 0 {
			return fmt.Errorf("dataset %q: at least one field is required", name)
		}
		for fname, f := range ds.Fields {
			if err := validateFieldKind(f.Kind); err != nil {
				return fmt.Errorf("dataset %q field %q: %w", name, fname, err)
			}
			if f.Kind == "measure" && f.Aggregation != "" {
				if err := validateAggregation(f.Aggregation); err != nil {
					return fmt.Errorf("dataset %q field %q: %w", name, fname, err)
				}
			}
		}
		if ds.RLS.Enabled {
			if ds.RLS.Column == "" {
				return fmt.Errorf("dataset %q: rls.enabled requires rls.column", name)
			}
			if _, ok := ds.Fields[ds.RLS.Column]; !ok {
				found := false
				for _, f := range ds.Fields {
					if f.PhysicalColumn == ds.RLS.Column {
						found = true
						break
					}
				}
				if !found {
					return fmt.Errorf("dataset %q: rls.column %q does not name a declared field", name, ds.RLS.Column)
				}
			}
		}
	}

	for sourceID, erd := range d.ERD {
		if _, ok := d.Sources[sourceID]; !ok {
			return fmt.Errorf("erd %q: does not reference a declared source", sourceID)
		}
		for i, e := range erd.Edges {
			if e.SourceTable == "" || e.TargetTable == "" {
				return fmt.Errorf("erd %q edge %d: sourceTable and targetTable are required", sourceID, i)
			}
			if err := validateCardinality(e.Cardinality); err != nil {
				return fmt.Errorf("erd %q edge %d: %w", sourceID, i, err)
			}
			if err := validateJoinType(e.JoinType); err != nil {
				return fmt.Errorf("erd %q edge %d: %w", sourceID, i, err)
			}
		}
	}

	for token, spec := range d.Tokens {
		if token == "" {
			return fmt.Errorf("tokens: empty token value is not allowed")
		}
		if spec.Tenant == "" {
			return fmt.Errorf("token %q: tenant is required", token)
		}
	}

	d.validated = true
	return nil
}

func validateFieldKind(k string) error {
	switch types.FieldKind(k) {
	case types.FieldDimension, types.FieldMeasure, types.FieldTime:
		return nil
	default:
		return fmt.Errorf("invalid field kind %q", k)
	}
}

func validateAggregation(a string) error {
	switch types.Aggregation(strings.ToUpper(a)) {
	case types.AggSum, types.AggCount, types.AggCountDistinct, types.AggAvg, types.AggMin,
		types.AggMax, types.AggMedian, types.AggStddev, types.AggVariance, types.AggFirst,
		types.AggLast, types.AggNone:
		return nil
	default:
		return fmt.Errorf("invalid aggregation %q", a)
	}
}

func validateCardinality(c string) error {
	switch types.Cardinality(c) {
	case types.CardinalityOneToOne, types.CardinalityOneToMany, types.CardinalityManyToOne, types.CardinalityManyToMany:
		return nil
	default:
		return fmt.Errorf("invalid cardinality %q", c)
	}
}

func validateJoinType(j string) error {
	switch types.JoinType(j) {
	case types.JoinInner, types.JoinLeft, types.JoinRight, types.JoinFull, types.JoinCross:
		return nil
	default:
		return fmt.Errorf("invalid join type %q", j)
	}
}

// IsValidated reports whether Validate has succeeded on this document.
func (d *Document) IsValidated() bool { return d.validated }

// Applied is the set of live collaborators an Apply call materializes.
type Applied struct {
	Catalog       *semantic.StaticCatalog
	ERDStore      *semantic.StaticERDStore
	Sources       []adapters.SourceConfig
	Authenticator *auth.StaticTokenAuthenticator
}

// Apply materializes the validated document into the live collaborators the
// pipeline reads from: a catalog, an ERD store, adapter source configs, and
// a token authenticator. Validate must have succeeded first, mirroring the
// declarative config model's validate-then-apply split.
func (d *Document) Apply() (*Applied, error) {
	if !d.validated {
		return nil, fmt.Errorf("bootstrap document must be validated before apply")
	}

	catalog := semantic.NewStaticCatalog()
	for name, ds := range d.Datasets {
		engine := ds.Engine
		if engine == "" {
			engine = d.Sources[ds.SourceID].Engine
		}
		queryTimeout, err := parseDuration(ds.QueryTimeout)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: queryTimeout: %w", name, err)
		}
		cacheTTL, err := parseDuration(ds.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: cacheTtl: %w", name, err)
		}

		dataset := &types.Dataset{
			ID:             name,
			SourceID:       ds.SourceID,
			Engine:         engine,
			BaseTable:      ds.BaseTable,
			AllowCrossJoin: ds.AllowCrossJoin,
			QueryTimeout:   queryTimeout,
			CacheTTL:       cacheTTL,
			DefaultLimit:   ds.DefaultLimit,
			RLS: types.RLSPolicy{
				Enabled:          ds.RLS.Enabled,
				Column:           ds.RLS.Column,
				Mode:             types.RLSMode(orDefault(ds.RLS.Mode, string(types.RLSModeEquals))),
				AllowAdminBypass: ds.RLS.AllowAdminBypass,
			},
		}
		for fname, f := range ds.Fields {
			dataset.Fields = append(dataset.Fields, types.Field{
				Name:                 fname,
				PhysicalColumn:       orDefault(f.PhysicalColumn, fname),
				Kind:                 types.FieldKind(f.Kind),
				Type:                 types.FieldType(f.Type),
				Aggregation:          types.Aggregation(strings.ToUpper(f.Aggregation)),
				Expression:           f.Expression,
				CalculatedExpression: f.CalculatedExpression,
				SourceTable:          f.SourceTable,
			})
		}
		for _, r := range ds.AllowedRoles {
			dataset.AllowedRoles = append(dataset.AllowedRoles, types.Role(r))
		}
		catalog.Register(dataset)
	}

	erdStore := semantic.NewStaticERDStore()
	for sourceID, spec := range d.ERD {
		model := &types.ERDModel{}
		for _, e := range spec.Edges {
			active := true
			if e.Active != nil {
				active = *e.Active
			}
			model.Edges = append(model.Edges, types.ERDEdge{
				Source:      types.TableRef{Schema: e.SourceSchema, Table: e.SourceTable},
				Target:      types.TableRef{Schema: e.TargetSchema, Table: e.TargetTable},
				SourceCol:   e.SourceCol,
				TargetCol:   e.TargetCol,
				Cardinality: types.Cardinality(e.Cardinality),
				JoinType:    types.JoinType(e.JoinType),
				Active:      active,
			})
		}
		erdStore.Register(sourceID, model)
	}

	var sourceConfigs []adapters.SourceConfig
	for id, s := range d.Sources {
		sourceConfigs = append(sourceConfigs, adapters.SourceConfig{
			SourceID: id,
			Engine:   s.Engine,
			DSN:      s.DSN,
			Project:  s.Project,
			Dataset:  s.Dataset,
			Catalog:  s.Catalog,
			Extra:    s.Extra,
		})
	}

	authenticator := auth.NewStaticTokenAuthenticator()
	for token, spec := range d.Tokens {
		authenticator.RegisterToken(token, types.TenantContext{
			Tenant: spec.Tenant,
			Role:   auth.ParseRole(spec.Role),
			KeyID:  spec.KeyID,
		}, time.Time{})
	}

	return &Applied{
		Catalog:       catalog,
		ERDStore:      erdStore,
		Sources:       sourceConfigs,
		Authenticator: authenticator,
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	return time.ParseDuration(v)
}

// WriteExample writes a minimal, runnable bootstrap document to dir/bootstrap.yaml.
func WriteExample(dir string) (string, error) {
	path := filepath.Join(dir, "bootstrap.yaml")
	example := `# semgate bootstrap document
# Generated by 'canonic bootstrap init'

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
      order_date:
        kind: time
        type: date
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
    edges: []

tokens:
  dev-admin-token:
    tenant: acme-corp
    role: admin
`
	if err := os.WriteFile(path, []byte(example), 0644); err != nil {
		return "", fmt.Errorf("failed to write bootstrap file: %w", err)
	}
	return path, nil
}
