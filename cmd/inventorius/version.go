package main

import (
	"context"
	"fmt"
	"io"

	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/spf13/cobra"
)

var (
	// Set via ldflags at build time
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "inventorius %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", buildDate)
		if !versionAPI {
			return nil
		}
		return clientCommand(runAPIVersion)(cmd, args)
	},
}

var versionAPI bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionAPI, "remote", false, "also print the inventory API version")
}

func runAPIVersion(ctx context.Context, c *remote.Client, out io.Writer, args []string) error {
	v, err := c.GetVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  api:     %s (%s)\n", v, c.Hostname())
	return nil
}
