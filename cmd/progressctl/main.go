// Package main implements progressctl, the operator CLI for the MajorPath
// progress store.
//
// Usage:
//
//	progressctl migrate
//	progressctl show <user-id> [--json]
//	progressctl evaluate <user-id>
//	progressctl catalog dump
//	progressctl token <user-id> [--ttl 24h]
//	progressctl hash-key <admin-key>
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/majorpath/majorpath-hub/config"
	"github.com/majorpath/majorpath-hub/internal/infrastructure/persistence"
	"github.com/majorpath/majorpath-hub/pkg/logger"
)

var (
	verbose bool
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "progressctl",
	Short:         "Operate the MajorPath progress store",
	Long:          `Runs migrations, inspects user records and prints the active catalog using the same configuration as the API server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	catalogCmd.AddCommand(catalogDumpCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(hashKeyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is what every store-backed command needs.
type env struct {
	cfg     *config.Config
	log     *logger.Logger
	backend *persistence.Backend
}

// openEnv loads configuration and opens the store. Logs go to stderr so
// command output stays machine readable.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	opts := logger.DefaultOptions()
	opts.Output = os.Stderr
	opts.Format = "console"
	opts.Level = logger.LevelWarn
	if verbose {
		opts.Level = logger.LevelDebug
	}
	log := logger.New(opts)

	backend, err := persistence.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, backend: backend}, nil
}

func (e *env) close() {
	if err := e.backend.Close(context.Background()); err != nil {
		e.log.Warn("failed to close store", logger.Err(err))
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
