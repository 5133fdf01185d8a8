package bigquery

import (
	"testing"

	"github.com/canonica-labs/semgate/internal/adapters"
	"github.com/canonica-labs/semgate/internal/capabilities"
)

func TestNewFactory_RequiresProject(t *testing.T) {
	_, err := newFactory(adapters.SourceConfig{SourceID: "bq1", Engine: "bigquery"})
	if err == nil {
		t.Error("newFactory() error = nil, want error when Project is empty")
	}
}

func TestAdapter_Capabilities_IncludesTimeTravel(t *testing.T) {
	a := &Adapter{}
	if !a.Capabilities().Has(capabilities.CapabilityTimeTravel) {
		t.Error("Capabilities() missing time-travel support, want BigQuery to advertise it")
	}
}

func TestAdapter_Execute_FailsWhenClosed(t *testing.T) {
	a := &Adapter{closed: true}
	if _, err := a.Execute(nil, "SELECT 1", nil); err == nil {
		t.Error("Execute() error = nil on a closed adapter, want ConnectionError")
	}
}

func TestAdapter_CheckHealth_FailsWhenNoClient(t *testing.T) {
	a := &Adapter{}
	if err := a.CheckHealth(nil); err == nil {
		t.Error("CheckHealth() error = nil with no client configured, want ConnectionError")
	}
}
