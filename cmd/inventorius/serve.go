package main

import (
	"github.com/inventorius/inventorius-web/bootstrap"
	"github.com/spf13/cobra"
)

var (
	serveDemo     bool
	serveDev      bool
	serveNoClient bool
	serveOpen     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web shell",
	Long: `Start the inventorius web shell.

The shell will:
  - Load configuration from inventorius.yaml (or --config)
  - Or load configuration from INVENTORIUS_* environment variables
  - Wait for the inventory API to answer, up to api.wait_timeout
  - Render bins, SKUs and batches and proxy /api to the backend

Environment variables (for container deployments):
  INVENTORIUS_API_URL      - Inventory API URL (default: http://127.0.0.1:8081)
  INVENTORIUS_SERVER_PORT  - Server port (default: 8080)
  INVENTORIUS_LOG_LEVEL    - Log level: debug, info, warn, error
  INVENTORIUS_DEMO         - Serve an in-process demo API

Examples:
  inventorius serve
  inventorius serve --config /etc/inventorius/config.yaml
  inventorius serve --demo --dev --open`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDemo, "demo", false, "serve a seeded in-memory inventory API")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "development rendering, no page caching")
	serveCmd.Flags().BoolVar(&serveNoClient, "noclient", false, "omit the client script from pages")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "open a browser once serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := bootstrap.Options{
		ConfigPath: cfgFile,
		Version:    version,
		APIURL:     apiURL,
		Demo:       serveDemo,
		Dev:        serveDev,
		NoClient:   serveNoClient,
		Open:       serveOpen,
	}

	app, err := bootstrap.New(opts)
	if err != nil {
		return err
	}

	// Run (blocks until shutdown)
	return app.Run()
}
