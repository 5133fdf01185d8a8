package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/semgate/internal/auth"
	"github.com/canonica-labs/semgate/internal/types"
)

// resolveTenant produces the TenantContext a query or diagnostic command
// runs under: --token resolved through the bootstrap-declared authenticator
// if present, else --tenant/--role taken directly (the offline path for a
// CLI that has no separate login step).
func (c *CLI) resolveTenant(ctx context.Context, rt *Runtime) (types.TenantContext, error) {
	if c.token != "" {
		return rt.Authenticator.ValidateToken(ctx, c.token)
	}
	if c.tenant == "" {
		return types.TenantContext{}, fmt.Errorf("--tenant or --token is required")
	}
	return types.TenantContext{Tenant: c.tenant, Role: auth.ParseRole(c.role)}, nil
}

func (c *CLI) newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Resolve and inspect caller identity",
		Long:  `Resolve the tenant context a query would run under, given --token or --tenant/--role.`,
	}
	cmd.AddCommand(c.newAuthWhoamiCmd())
	return cmd
}

func (c *CLI) newAuthWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the tenant context the current credentials resolve to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAuthWhoami(cmd.Context())
		},
	}
}

func (c *CLI) runAuthWhoami(ctx context.Context) error {
	rt, err := c.runtime()
	if err != nil {
		return withExitCode(ExitInternal, err)
	}

	tctx, err := c.resolveTenant(ctx, rt)
	if err != nil {
		if c.jsonOutput {
			return c.outputJSON(map[string]interface{}{"authenticated": false, "error": err.Error()})
		}
		c.errorf("Not authenticated: %v\n", err)
		return withExitCode(ExitAuth, err)
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"authenticated": true,
			"tenant":        tctx.Tenant,
			"role":          string(tctx.Role),
			"keyId":         tctx.KeyID,
		})
	}

	c.println("Tenant context:")
	c.printf("  Tenant: %s\n", tctx.Tenant)
	c.printf("  Role:   %s\n", tctx.Role)
	if tctx.KeyID != "" {
		c.printf("  KeyID:  %s\n", tctx.KeyID)
	}
	return nil
}
