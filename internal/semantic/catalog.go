// Package semantic implements the Semantic Compiler (C3): name resolution
// against a catalog-declared dataset, measure and calculated-field
// expression building, join planning over an ERD, and compiled-plan
// assembly. It treats the catalog, source-config, and ERD store as
// external read-only collaborators — this package never persists any of
// them.
package semantic

import (
	"context"

	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/types"
)

// Catalog is the read-only dataset lookup collaborator.
type Catalog interface {
	GetDataset(ctx context.Context, id string) (*types.Dataset, error)
}

// ERDStore is the read-only join-graph lookup collaborator, keyed by the
// same sourceId as the dataset whose tables it describes.
type ERDStore interface {
	GetERD(ctx context.Context, sourceID string) (*types.ERDModel, error)
}

// SourceConfig is the decrypted, adapter-specific connection config for a
// source. Re-invocation of the collaborator that produces this MUST be
// cheap; the core caches the last result (see adapters.Registry).
type SourceConfig struct {
	Engine    string
	ConfigMap map[string]string
}

// SourceConfigStore resolves a sourceId to its adapter configuration.
type SourceConfigStore interface {
	GetSource(ctx context.Context, sourceID string) (SourceConfig, error)
}

// StaticCatalog is an in-memory Catalog, used for tests, the CLI's
// bootstrap-driven demo mode, and the reference implementation of the
// external collaborator.
type StaticCatalog struct {
	Datasets map[string]*types.Dataset
}

func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{Datasets: make(map[string]*types.Dataset)}
}

func (c *StaticCatalog) Register(ds *types.Dataset) { c.Datasets[ds.ID] = ds }

func (c *StaticCatalog) GetDataset(ctx context.Context, id string) (*types.Dataset, error) {
	ds, ok := c.Datasets[id]
	if !ok {
		return nil, errors.NewDatasetNotFound(id)
	}
	return ds, nil
}

// StaticERDStore is an in-memory ERDStore.
type StaticERDStore struct {
	Models map[string]*types.ERDModel
}

func NewStaticERDStore() *StaticERDStore {
	return &StaticERDStore{Models: make(map[string]*types.ERDModel)}
}

func (s *StaticERDStore) Register(sourceID string, erd *types.ERDModel) { s.Models[sourceID] = erd }

func (s *StaticERDStore) GetERD(ctx context.Context, sourceID string) (*types.ERDModel, error) {
	erd, ok := s.Models[sourceID]
	if !ok {
		return &types.ERDModel{}, nil
	}
	return erd, nil
}
