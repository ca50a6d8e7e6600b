// Command leadctl runs one-off lead routing operations against the configured
// store: bulk imports, assignment sweeps, queue rebuilds and exports.
package main

import (
	"context"
	"fmt"
	"os"

	"lead-routing/app"
	"lead-routing/config"
)

func main() {
	root := newRootCmd(openApp)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*app.App, error) {
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig
	return app.New(ctx, cfg, app.NewLogger(cfg))
}
