package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/semgate/internal/status"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run readiness diagnostics against every configured collaborator",
		Long: `Run the readiness probe: construct (or reuse) every configured
source's adapter and call its health check, then confirm the catalog
resolves at least one dataset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDoctor(cmd.Context())
		},
	}
}

func (c *CLI) runDoctor(ctx context.Context) error {
	rt, err := c.runtime()
	if err != nil {
		return withExitCode(ExitInternal, err)
	}

	datasetIDs := make([]string, 0, len(rt.Catalog.Datasets))
	for id := range rt.Catalog.Datasets {
		datasetIDs = append(datasetIDs, id)
	}

	timeout := rt.Config.Guards.HealthTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	probe := &status.Probe{
		Registry:   rt.Registry,
		Catalog:    rt.Catalog,
		ERDStore:   rt.ERDStore,
		DatasetIDs: datasetIDs,
		Timeout:    timeout,
	}

	result := probe.Check(ctx)
	return c.printReadiness(result)
}

func (c *CLI) printReadiness(result *status.ReadinessResult) error {
	if c.jsonOutput {
		return c.outputJSON(result)
	}

	for name, comp := range result.Components {
		mark := "✗"
		if comp.Ready {
			mark = "✓"
		}
		c.printf("%s %s: %s\n", mark, name, comp.Message)
	}

	c.println("")
	if result.Ready {
		c.println("✓ All checks passed")
		return nil
	}
	c.println("✗ Some checks failed - see above for details")
	return withExitCode(ExitEngine, errNotReady)
}

var errNotReady = notReadyError{}

type notReadyError struct{}

func (notReadyError) Error() string { return "one or more components are not ready" }

// newStatusCmd reports the active configuration at a glance: sources,
// datasets, and cache backend, without exercising any adapter connection.
// doctor is the connectivity check; status is the configuration summary.
func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus()
		},
	}
}

func (c *CLI) runStatus() error {
	rt, err := c.runtime()
	if err != nil {
		return withExitCode(ExitInternal, err)
	}

	sources := rt.Registry.ConfiguredSources()

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"sources":      sources,
			"datasetCount": len(rt.Catalog.Datasets),
			"cacheBackend": orDefaultStr(rt.Config.Cache.Backend, "in-process"),
		})
	}

	c.println("Configuration summary:")
	c.printf("  Sources:  %d configured\n", len(sources))
	c.printf("  Datasets: %d declared\n", len(rt.Catalog.Datasets))
	c.printf("  Cache:    %s\n", orDefaultStr(rt.Config.Cache.Backend, "in-process"))
	return nil
}

func orDefaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
