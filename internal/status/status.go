// Package status reports the operational readiness of the collaborators a
// running gateway depends on: configured sources and the catalog. The
// ERD store and the cache backend are not probed. It backs the CLI's
// doctor and status commands.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/semantic"
)

// ComponentStatus is the readiness of one dependency.
type ComponentStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// ReadinessResult aggregates every component's status into one verdict.
type ReadinessResult struct {
	Ready      bool                       `json:"ready"`
	Components map[string]ComponentStatus `json:"components"`
}

// Checker is anything that can report gateway readiness. The production
// path is Probe below; tests and the CLI's offline mode use MockChecker.
type Checker interface {
	Check(ctx context.Context) *ReadinessResult
}

// Probe checks every configured source's adapter health plus the catalog's
// presence; the ERDStore field is not consulted. A source whose adapter hasn't been constructed
// yet is probed by Registry.Get, so doctor/status always exercise a real
// connection attempt rather than reporting "unknown".
type Probe struct {
	Registry   *adapters.Registry
	Catalog    semantic.Catalog
	ERDStore   semantic.ERDStore
	DatasetIDs []string
	Timeout    time.Duration
}

func (p *Probe) Check(ctx context.Context) *ReadinessResult {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	result := &ReadinessResult{Ready: true, Components: make(map[string]ComponentStatus)}

	for _, sourceID := range p.Registry.ConfiguredSources() {
		status := p.checkSource(ctx, sourceID, timeout)
		result.Components["source:"+sourceID] = status
		if !status.Ready {
			result.Ready = false
		}
	}

	catalogStatus := p.checkCatalog(ctx)
	result.Components["catalog"] = catalogStatus
	if !catalogStatus.Ready {
		result.Ready = false
	}

	return result
}

func (p *Probe) checkSource(ctx context.Context, sourceID string, timeout time.Duration) ComponentStatus {
	adapter, err := p.Registry.Get(sourceID)
	if err != nil {
		return ComponentStatus{Ready: false, Message: fmt.Sprintf("construct failed: %v", err)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// A source that's still booting looks identical to one that's down; a
	// bounded retry gives it a chance to come up before doctor reports it
	// unhealthy.
	result := adapters.ExecuteWithRetry(checkCtx, adapters.DefaultRetryConfig(), func() error {
		return adapter.CheckHealth(checkCtx)
	})
	if !result.Success {
		return ComponentStatus{Ready: false, Message: fmt.Sprintf("health check failed: %v", result)}
	}
	return ComponentStatus{Ready: true, Message: "reachable"}
}

func (p *Probe) checkCatalog(ctx context.Context) ComponentStatus {
	if p.Catalog == nil {
		return ComponentStatus{Ready: false, Message: "no catalog configured"}
	}
	if len(p.DatasetIDs) == 0 {
		return ComponentStatus{Ready: true, Message: "catalog present, no datasets to probe"}
	}
	if _, err := p.Catalog.GetDataset(ctx, p.DatasetIDs[0]); err != nil {
		return ComponentStatus{Ready: false, Message: fmt.Sprintf("lookup failed for %s: %v", p.DatasetIDs[0], err)}
	}
	return ComponentStatus{Ready: true, Message: fmt.Sprintf("%d dataset(s) registered", len(p.DatasetIDs))}
}

// MockChecker is a test double for Checker, letting tests pin component
// status without constructing real adapters.
type MockChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentStatus
}

func NewMockChecker() *MockChecker {
	return &MockChecker{components: make(map[string]ComponentStatus)}
}

func (m *MockChecker) Set(component string, ready bool, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[component] = ComponentStatus{Ready: ready, Message: message}
}

func (m *MockChecker) Check(ctx context.Context) *ReadinessResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := &ReadinessResult{Ready: true, Components: make(map[string]ComponentStatus, len(m.components))}
	for name, status := range m.components {
		result.Components[name] = status
		if !status.Ready {
			result.Ready = false
		}
	}
	return result
}

