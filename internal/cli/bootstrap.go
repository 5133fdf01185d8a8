package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/semgate/internal/bootstrap"
)

func (c *CLI) newBootstrapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Generate and validate a declarative bootstrap document",
		Long: `A bootstrap document declares sources, datasets, ERD edges, and
tokens as one YAML file, which Load/Validate/Apply turn into a catalog,
ERD store, source list, and token authenticator.

  init     write an example bootstrap.yaml
  validate load and check a document without constructing anything
  apply    load, validate, and build the runtime collaborators`,
	}
	cmd.AddCommand(c.newBootstrapInitCmd())
	cmd.AddCommand(c.newBootstrapValidateCmd())
	cmd.AddCommand(c.newBootstrapApplyCmd())
	return cmd
}

func (c *CLI) newBootstrapInitCmd() *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example bootstrap.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBootstrapInit(outputDir)
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory to write bootstrap.yaml into")
	return cmd
}

func (c *CLI) runBootstrapInit(outputDir string) error {
	path, err := bootstrap.WriteExample(outputDir)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return withExitCode(ExitInternal, err)
	}

	abs, _ := filepath.Abs(path)
	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{"status": "created", "path": abs})
	}

	c.printf("✓ Wrote %s\n", abs)
	c.println("\nNext steps:")
	c.println("  1. Edit the document to match your sources and datasets")
	c.println("  2. Run 'canonic bootstrap validate --file " + abs + "'")
	c.println("  3. Point config.yaml's bootstrap field (or --bootstrap) at it")
	return nil
}

func (c *CLI) newBootstrapValidateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a bootstrap document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBootstrapValidate(path)
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "bootstrap.yaml", "bootstrap document path")
	return cmd
}

func (c *CLI) runBootstrapValidate(path string) error {
	doc, err := bootstrap.Load(path)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return withExitCode(ExitValidation, err)
	}

	if err := doc.Validate(); err != nil {
		c.errorf("Validation failed: %v\n", err)
		return withExitCode(ExitValidation, err)
	}

	erdEdgeCount := 0
	for _, spec := range doc.ERD {
		erdEdgeCount += len(spec.Edges)
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"status":        "valid",
			"path":          path,
			"sourceCount":   len(doc.Sources),
			"datasetCount":  len(doc.Datasets),
			"erdEdgeCount":  erdEdgeCount,
			"tokenCount":    len(doc.Tokens),
		})
	}

	c.printf("✓ %s is valid\n", path)
	c.println("\nSummary:")
	c.printf("  Sources:  %d\n", len(doc.Sources))
	c.printf("  Datasets: %d\n", len(doc.Datasets))
	c.printf("  ERD edges: %d\n", erdEdgeCount)
	c.printf("  Tokens:   %d\n", len(doc.Tokens))
	return nil
}

func (c *CLI) newBootstrapApplyCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Load, validate, and build catalog/ERD/source/token collaborators",
		Long: `apply runs the same Load -> Validate -> Apply sequence the CLI runs
internally whenever a command builds its runtime; it exists standalone so a deployer can
confirm a document builds cleanly before pointing config.yaml at it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBootstrapApply(path)
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "bootstrap.yaml", "bootstrap document path")
	return cmd
}

func (c *CLI) runBootstrapApply(path string) error {
	doc, err := bootstrap.Load(path)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return withExitCode(ExitValidation, err)
	}

	if err := doc.Validate(); err != nil {
		c.errorf("Validation failed: %v\n", err)
		return withExitCode(ExitValidation, err)
	}

	applied, err := doc.Apply()
	if err != nil {
		c.errorf("Apply failed: %v\n", err)
		return withExitCode(ExitInternal, err)
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"status":       "applied",
			"datasetCount": len(applied.Catalog.Datasets),
			"sourceCount":  len(applied.Sources),
		})
	}

	c.printf("✓ Applied %s\n", path)
	c.printf("  Datasets: %d\n", len(applied.Catalog.Datasets))
	c.printf("  Sources:  %d\n", len(applied.Sources))
	return nil
}

func (c *CLI) newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect aggregated query audit statistics",
	}
	cmd.AddCommand(c.newAuditSummaryCmd())
	return cmd
}

func (c *CLI) newAuditSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show accepted/rejected counts and top offenders",
		Long: `Reports the logger's in-memory AuditSummary: accepted vs rejected
query counts, top rejection reasons, and top queried datasets. No raw
row data is exposed, matching the no-payload-in-audit-output invariant
C6 enforces on every stats record.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAuditSummary()
		},
	}
}

func (c *CLI) runAuditSummary() error {
	rt, err := c.runtime()
	if err != nil {
		return withExitCode(ExitInternal, err)
	}

	summary := rt.Logger.AuditSummary()
	if c.jsonOutput {
		return c.outputJSON(summary)
	}

	c.println("Query summary:")
	c.printf("  Accepted: %d\n", summary.AcceptedCount)
	c.printf("  Rejected: %d\n", summary.RejectedCount)

	if len(summary.TopRejectionReasons) > 0 {
		c.println("\nTop rejection reasons:")
		for _, r := range summary.TopRejectionReasons {
			c.printf("  - %s: %d\n", r.Reason, r.Count)
		}
	}

	if len(summary.TopQueriedDatasets) > 0 {
		c.println("\nTop queried datasets:")
		for _, d := range summary.TopQueriedDatasets {
			c.printf("  - %s: %d\n", d.Dataset, d.Count)
		}
	}

	return nil
}
