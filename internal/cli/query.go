package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	gatewayerrors "github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/sql"
	"github.com/canonica-labs/semgate/internal/types"
)

func (c *CLI) newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Build and run semantic queries against the pipeline",
	}
	cmd.AddCommand(c.newQueryRunCmd())
	cmd.AddCommand(c.newQueryValidateCmd())
	return cmd
}

type queryRunFlags struct {
	dataset  string
	dims     []string
	metrics  []string
	filter   string
	orderBy  []string
	limit    int
	offset   int
	noCache  bool
}

func (c *CLI) newQueryRunCmd() *cobra.Command {
	f := &queryRunFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile and execute a semantic query against a dataset",
		Long: `Build a SemanticQuery from flags and run it through the full pipeline:
guards, RLS, compilation, cache lookup/coalescing, and adapter dispatch.

Example:
  canonic query run --dataset orders --dim city --metric total_revenue \
    --filter '{"field":"order_date","op":"gte","value":"2026-01-01"}' \
    --tenant acme-corp --role admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQueryRun(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.dataset, "dataset", "", "dataset id to query (required)")
	cmd.Flags().StringSliceVar(&f.dims, "dim", nil, "dimension field name (repeatable)")
	cmd.Flags().StringSliceVar(&f.metrics, "metric", nil, "measure field name (repeatable)")
	cmd.Flags().StringVar(&f.filter, "filter", "", "JSON-encoded filter tree (types.FilterNode shape)")
	cmd.Flags().StringSliceVar(&f.orderBy, "order-by", nil, "field[:asc|desc] (repeatable)")
	cmd.Flags().IntVar(&f.limit, "limit", 100, "row limit")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "row offset")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "bypass cache lookup and single-flight coalescing")
	cmd.MarkFlagRequired("dataset")

	return cmd
}

func (c *CLI) runQueryRun(ctx context.Context, f *queryRunFlags) error {
	rt, err := c.runtime()
	if err != nil {
		return withExitCode(ExitInternal, err)
	}

	tctx, err := c.resolveTenant(ctx, rt)
	if err != nil {
		c.errorf("Authentication failed: %v\n", err)
		return withExitCode(ExitAuth, err)
	}

	q := &types.SemanticQuery{
		Dataset:    f.dataset,
		Dimensions: f.dims,
		Metrics:    f.metrics,
		Limit:      f.limit,
		Offset:     f.offset,
		NoCache:    f.noCache,
	}

	if f.filter != "" {
		var node types.FilterNode
		if err := json.Unmarshal([]byte(f.filter), &node); err != nil {
			err = fmt.Errorf("invalid --filter JSON: %w", err)
			c.errorf("%v\n", err)
			return withExitCode(ExitValidation, err)
		}
		q.Filters = &node
	}

	for _, spec := range f.orderBy {
		field, dir, _ := strings.Cut(spec, ":")
		direction := types.Asc
		if strings.EqualFold(dir, "desc") {
			direction = types.Desc
		}
		q.OrderBy = append(q.OrderBy, types.OrderBy{Field: field, Direction: direction})
	}

	result, err := rt.Pipeline.Run(ctx, q, tctx)
	if err != nil {
		if c.jsonOutput {
			return c.outputJSON(map[string]interface{}{"success": false, "error": err.Error()})
		}
		c.errorf("Query failed: %v\n", err)
		return withExitCode(exitCodeForQueryError(err), err)
	}

	if c.jsonOutput {
		return c.outputJSON(result)
	}

	c.printf("Engine: %s\n", result.Engine)
	c.printf("Rows: %d (cache hit: %v)\n", result.RowCount, result.CacheHit)
	c.println("")

	if len(result.Columns) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	names := make([]string, len(result.Columns))
	for i, col := range result.Columns {
		names[i] = col.Name
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))
	for _, row := range result.Rows {
		values := make([]string, len(names))
		for i, name := range names {
			values[i] = formatValue(row[name])
		}
		fmt.Fprintln(w, strings.Join(values, "\t"))
	}
	w.Flush()

	return nil
}

func exitCodeForQueryError(err error) int {
	kind, ok := gatewayerrors.KindOf(err)
	if !ok {
		return ExitInternal
	}
	switch kind {
	case gatewayerrors.KindValidation:
		return ExitValidation
	case gatewayerrors.KindAuthRequired, gatewayerrors.KindForbidden:
		return ExitAuth
	case gatewayerrors.KindConnectionError, gatewayerrors.KindQueryError, gatewayerrors.KindTimeout:
		return ExitEngine
	default:
		return ExitInternal
	}
}

func formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	s := fmt.Sprintf("%v", v)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return s
}

func (c *CLI) newQueryValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <SQL>",
		Short: "Validate a raw SQL statement without executing it",
		Long: `Validate that a raw SQL statement is a single read-only SELECT, the
same check C2/C6 apply to any native-SQL path before RLS and dialect
rendering ever touch it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQueryValidate(args[0])
		},
	}
}

func (c *CLI) runQueryValidate(rawSQL string) error {
	if err := sql.Validate(rawSQL); err != nil {
		if c.jsonOutput {
			return c.outputJSON(map[string]interface{}{"valid": false, "error": err.Error()})
		}
		c.errorf("✗ Invalid: %v\n", err)
		return withExitCode(ExitValidation, err)
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{"valid": true})
	}
	c.println("✓ Valid")
	return nil
}
