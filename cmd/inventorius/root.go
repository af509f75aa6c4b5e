package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/bootstrap"
	"github.com/inventorius/inventorius-web/config"
	"github.com/inventorius/inventorius-web/web"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	apiURL  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "inventorius",
	Short: "Web shell and command line client for the inventorius API",
	Long: `Inventorius renders bins, SKUs and batches served by the inventorius
REST API, and drives the same API from the command line.

Quick start:
  inventorius serve --demo --open   # Shell over a seeded in-memory API
  inventorius serve                 # Shell over the API in inventorius.yaml

Client:
  inventorius get BIN000001
  inventorius next bin --create
  inventorius receive BIN000001 SKU000001 10
  inventorius search "hex bolt"`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "inventory API base URL (overrides api.url)")
}

// newClient builds an API client from the configuration and flags. Logs go
// to stderr so command output stays parseable.
func newClient() (*remote.Client, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.API.URL = apiURL
	}

	logger := bootstrap.NewLogger(cfg.Logging, os.Stderr)
	return remote.NewClient(remote.Config{
		Hostname: cfg.API.URL,
		Timeout:  cfg.API.Timeout,
		Headers:  cfg.API.Headers,
		Logger:   logger,
	}), nil
}

// clientCommand wraps a client operation as a cobra RunE.
func clientCommand(run func(ctx context.Context, c *remote.Client, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return run(cmd.Context(), c, cmd.OutOrStdout(), args)
	}
}

// stdoutNotifier prints notices one per line.
func stdoutNotifier(out io.Writer) web.Notifier {
	return web.NotifierFunc(func(ctx context.Context, n web.Notice) {
		fmt.Fprintf(out, "%s: %s\n", n.Level, n.Message)
	})
}
