// Package main provides the embedded engine's optional CLI entry point:
// a single command with a transport-mode selector and the positional
// arguments the persistent facade needs to open its database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arborix/synapse/pkg/config"
	"github.com/arborix/synapse/pkg/engram"
	"github.com/arborix/synapse/pkg/facade"
)

const shutdownGracePeriod = 10 * time.Second

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var mode string

	root := &cobra.Command{
		Use:   "synapsed database_path host port",
		Short: "synapsed is the embedded associative memory engine's standalone binary",
		Long: `synapsed opens a persistent facade over the associative memory
engine and, depending on --mode, exposes it over a transport. The core
engine — graph store, plasticity, consolidation, recall, and forgetting —
never depends on a transport; this binary only wires one of them up.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), mode, args[0], args[1], args[2])
		},
	}
	root.Flags().StringVar(&mode, "mode", "none", "transport to expose: none, http, bolt")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("synapsed v%s (%s)\n", version, commit)
		},
	})

	return root
}

// host and port are accepted per the CLI surface's positional-argument
// contract but are only meaningful to a transport this binary does not
// implement; the core engine itself never opens a socket.
func run(ctx context.Context, mode, dbPath, _, _ string) error {
	cfg := config.LoadFromEnv()
	cfg.Persistence.DBPath = dbPath
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	f, err := facade.Open(cfg.Persistence, cfg.Memory)
	if err != nil {
		return fmt.Errorf("opening persistent facade: %w", err)
	}
	defer f.Close()

	switch mode {
	case "none":
		// No transport: the facade is opened, validated, and held open
		// until interrupted. Useful for warming a database file or for
		// embedders that talk to the facade in-process.
	case "http", "bolt":
		return fmt.Errorf("transport %q is outside the core engine's scope; wire it up as an external collaborator against pkg/facade", mode)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	saveCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := f.ForceSave(saveCtx); err != nil {
		return fmt.Errorf("%w: draining on shutdown", engram.ErrPersistenceFailure)
	}
	return nil
}
