// Package cli provides the canonic command-line interface: a control and
// query surface wired directly to the in-process pipeline rather than a
// network gateway. There is no HTTP framing in this project — every
// subcommand builds a Runtime from config + an optional bootstrap document
// and calls straight into pipeline.Pipeline.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/semgate/internal/config"
)

// Exit codes.
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitAuth       = 2
	ExitEngine     = 3
	ExitInternal   = 4
)

// Version information, set at build time via -ldflags.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CLI holds command-line interface state shared across subcommands.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config

	configPath    string
	bootstrapPath string
	token         string
	tenant        string
	role          string
	jsonOutput    bool
	quiet         bool
	debug         bool
}

// New creates a new CLI instance.
func New() *CLI {
	c := &CLI{}
	c.rootCmd = c.newRootCmd()
	return c
}

// Execute runs the CLI and returns a process exit code.
func (c *CLI) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		if kind := exitKindFor(err); kind != 0 {
			return kind
		}
		return ExitInternal
	}
	return ExitSuccess
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canonic",
		Short: "canonic - semantic analytics gateway CLI",
		Long: `canonic drives a semantic analytics gateway: dataset-scoped queries
compiled to dialect-correct SQL, with row-level security and cache
coalescing applied before any adapter is touched.

This CLI talks to the pipeline in-process. There is no server to start
and no separate client/server version skew to manage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ~/.semgate/config.yaml)")
	cmd.PersistentFlags().StringVar(&c.bootstrapPath, "bootstrap", "", "bootstrap document path (overrides config's bootstrap field)")
	cmd.PersistentFlags().StringVar(&c.token, "token", "", "bearer token to resolve via the configured authenticator")
	cmd.PersistentFlags().StringVar(&c.tenant, "tenant", "", "tenant id (used when --token is not set)")
	cmd.PersistentFlags().StringVar(&c.role, "role", "user", "caller role: admin, service, or user (used when --token is not set)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "verbose debug logs")

	cmd.AddCommand(c.newAuthCmd())
	cmd.AddCommand(c.newQueryCmd())
	cmd.AddCommand(c.newEngineCmd())
	cmd.AddCommand(c.newCatalogCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newStatusCmd())
	cmd.AddCommand(c.newVersionCmd())
	cmd.AddCommand(c.newBootstrapCmd())
	cmd.AddCommand(c.newAuditCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// runtime builds a fresh Runtime for the current invocation.
func (c *CLI) runtime() (*Runtime, error) {
	if c.cfg == nil {
		if err := c.initConfig(); err != nil {
			return nil, err
		}
	}
	return buildRuntime(c.cfg, c.bootstrapPath)
}

// Output helpers, matching the rest of the ambient CLI texture: printf/
// println respect --quiet, errorf always writes, debugf only under --debug.

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Printf(format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Println(args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func (c *CLI) debugf(format string, args ...interface{}) {
	if c.debug {
		fmt.Printf("[DEBUG] "+format, args...)
	}
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCodeError lets subcommands attach an exit code to a returned error
// without changing cobra's error-handling contract.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitCodeError{code: code, err: err}
}

func exitKindFor(err error) int {
	var ece *exitCodeError
	for err != nil {
		if e, ok := err.(*exitCodeError); ok {
			ece = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ece == nil {
		return 0
	}
	return ece.code
}
