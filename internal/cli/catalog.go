package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/semgate/internal/types"
)

func (c *CLI) newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the dataset catalog",
	}
	cmd.AddCommand(c.newCatalogListCmd())
	cmd.AddCommand(c.newCatalogGetCmd())
	return cmd
}

func (c *CLI) newCatalogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every dataset registered in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCatalogList()
		},
	}
}

func (c *CLI) runCatalogList() error {
	rt, err := c.runtime()
	if err != nil {
		return withExitCode(ExitInternal, err)
	}

	ids := make([]string, 0, len(rt.Catalog.Datasets))
	for id := range rt.Catalog.Datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{"datasets": ids})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATASET\tSOURCE\tENGINE\tRLS")
	fmt.Fprintln(w, "-------\t------\t------\t---")
	for _, id := range ids {
		ds := rt.Catalog.Datasets[id]
		rls := "disabled"
		if ds.RLS.Enabled {
			rls = fmt.Sprintf("enabled (%s)", ds.RLS.Column)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ds.ID, ds.SourceID, ds.Engine, rls)
	}
	w.Flush()
	return nil
}

func (c *CLI) newCatalogGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <datasetId>",
		Short: "Describe one dataset's fields and RLS policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCatalogGet(cmd.Context(), args[0])
		},
	}
}

func (c *CLI) runCatalogGet(ctx context.Context, datasetID string) error {
	rt, err := c.runtime()
	if err != nil {
		return withExitCode(ExitInternal, err)
	}

	ds, err := rt.Catalog.GetDataset(ctx, datasetID)
	if err != nil {
		if c.jsonOutput {
			return c.outputJSON(map[string]interface{}{"error": err.Error()})
		}
		c.errorf("✗ %v\n", err)
		return withExitCode(ExitValidation, err)
	}

	if c.jsonOutput {
		return c.outputJSON(ds)
	}

	c.printf("Dataset: %s\n", ds.ID)
	c.printf("  Source:     %s\n", ds.SourceID)
	c.printf("  Engine:     %s\n", ds.Engine)
	c.printf("  Base table: %s\n", ds.BaseTable)
	if ds.RLS.Enabled {
		c.printf("  RLS:        enabled, column=%s, mode=%s, adminBypass=%v\n", ds.RLS.Column, ds.RLS.Mode, ds.RLS.AllowAdminBypass)
	} else {
		c.println("  RLS:        disabled")
	}
	c.println("  Fields:")
	for _, f := range ds.Fields {
		switch {
		case f.IsCalculated():
			c.printf("    %s (%s, calculated: %s)\n", f.Name, f.Kind, f.CalculatedExpression)
		case f.Kind == types.FieldMeasure:
			c.printf("    %s (%s, %s)\n", f.Name, f.Kind, f.Aggregation)
		default:
			c.printf("    %s (%s)\n", f.Name, f.Kind)
		}
	}
	return nil
}
