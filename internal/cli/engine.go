package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *CLI) newEngineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Inspect configured sources and their adapters",
	}
	cmd.AddCommand(c.newEngineListCmd())
	cmd.AddCommand(c.newEngineHealthCmd())
	return cmd
}

func (c *CLI) newEngineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEngineList()
		},
	}
}

// EngineInfo is one configured source's engine and, once constructed,
// the capabilities its adapter reports.
type EngineInfo struct {
	SourceID     string   `json:"sourceId"`
	Engine       string   `json:"engine"`
	Capabilities []string `json:"capabilities,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func (c *CLI) runEngineList() error {
	rt, err := c.runtime()
	if err != nil {
		return withExitCode(ExitInternal, err)
	}

	ids := rt.Registry.ConfiguredSources()
	sort.Strings(ids)

	infos := make([]EngineInfo, 0, len(ids))
	for _, id := range ids {
		info := EngineInfo{SourceID: id}
		adapter, err := rt.Registry.Get(id)
		if err != nil {
			info.Error = err.Error()
		} else {
			info.Engine = adapter.Name()
			for _, cap := range adapter.Capabilities().Slice() {
				info.Capabilities = append(info.Capabilities, string(cap))
			}
			sort.Strings(info.Capabilities)
		}
		infos = append(infos, info)
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{"sources": infos})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tENGINE\tCAPABILITIES")
	fmt.Fprintln(w, "------\t------\t------------")
	for _, info := range infos {
		if info.Error != "" {
			fmt.Fprintf(w, "%s\t(error)\t%s\n", info.SourceID, info.Error)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.SourceID, info.Engine, strings.Join(info.Capabilities, ", "))
	}
	w.Flush()
	return nil
}

func (c *CLI) newEngineHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health <sourceId>",
		Short: "Check one configured source's connectivity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEngineHealth(cmd.Context(), args[0])
		},
	}
}

func (c *CLI) runEngineHealth(ctx context.Context, sourceID string) error {
	rt, err := c.runtime()
	if err != nil {
		return withExitCode(ExitInternal, err)
	}

	adapter, err := rt.Registry.Get(sourceID)
	if err != nil {
		if c.jsonOutput {
			return c.outputJSON(map[string]interface{}{"sourceId": sourceID, "healthy": false, "error": err.Error()})
		}
		c.errorf("✗ %s: %v\n", sourceID, err)
		return withExitCode(ExitEngine, err)
	}

	healthErr := adapter.CheckHealth(ctx)
	if healthErr != nil {
		if c.jsonOutput {
			return c.outputJSON(map[string]interface{}{"sourceId": sourceID, "healthy": false, "error": healthErr.Error()})
		}
		c.errorf("✗ %s: %v\n", sourceID, healthErr)
		return withExitCode(ExitEngine, healthErr)
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{"sourceId": sourceID, "healthy": true})
	}
	c.printf("✓ %s: healthy\n", sourceID)
	return nil
}
