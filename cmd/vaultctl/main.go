// Command vaultctl manages a docvault store from the shell.
package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"docvault/internal/bootstrap"
	"docvault/internal/config"
	"docvault/internal/logging"
)

func main() {
	root := newRootCmd(openFromEnv)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// openFromEnv assembles the service from the environment. Logs go to stderr
// so command output on stdout stays machine readable.
func openFromEnv(ctx context.Context, opts bootstrap.Options) (*bootstrap.App, error) {
	cfg := config.Load()
	log := logging.New(os.Stderr, logging.Location(cfg.Timezone), slog.LevelWarn)
	slog.SetDefault(log)
	return bootstrap.New(ctx, cfg, log, opts)
}
