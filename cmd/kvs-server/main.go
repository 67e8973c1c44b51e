// Command kvs-server runs the TCP front end over a kvs storage engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iamNilotpal/kvs/internal/engine"
	"github.com/iamNilotpal/kvs/internal/server"
	"github.com/iamNilotpal/kvs/internal/workerpool"
	"github.com/iamNilotpal/kvs/pkg/filesys"
	"github.com/iamNilotpal/kvs/pkg/logger"
	"github.com/iamNilotpal/kvs/pkg/options"
)

const version = "0.1.0"

const engineMarkerFile = "engine"

func main() {
	var (
		addr       string
		engineName string
		showVer    bool
	)

	root := &cobra.Command{
		Use:           "kvs-server",
		Short:         "a multi-threaded key-value store server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVer {
				fmt.Println(version)
				return nil
			}
			return run(addr, engineName)
		},
	}

	root.Flags().StringVar(&addr, "addr", options.DefaultListenAddr, "IP_ADDR:PORT to listen on")
	root.Flags().StringVar(&engineName, "engine", options.DefaultEngineName, "storage engine to use")
	root.Flags().BoolVarP(&showVer, "version", "V", false, "print the version")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addr, engineName string) error {
	log := logger.New("kvs-server")
	defer log.Sync()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}

	resolvedEngine, err := resolveEngine(cwd, engineName)
	if err != nil {
		return err
	}

	markerPath := filepath.Join(cwd, engineMarkerFile)
	if err := filesys.WriteFile(markerPath, 0644, []byte(resolvedEngine)); err != nil {
		return fmt.Errorf("failed to persist engine marker: %w", err)
	}

	log.Infow("kvs-server", "version", version, "engine", resolvedEngine, "addr", addr)

	opts := options.NewDefaultOptions()
	opts.DataDir = cwd
	opts.ListenAddr = addr
	opts.EngineName = resolvedEngine

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := engine.Open(ctx, &engine.Config{Options: &opts, Logger: log})
	if err != nil {
		return fmt.Errorf("failed to open storage engine: %w", err)
	}
	defer store.Close()

	pool, err := workerpool.NewSharedQueuePool(opts.WorkerPoolSize, log)
	if err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	defer pool.Close()

	srv, err := server.New(&server.Config{Store: store, Pool: pool, Logger: log})
	if err != nil {
		return fmt.Errorf("failed to construct server: %w", err)
	}

	return srv.Run(ctx, addr)
}

// resolveEngine accepts only the one engine this repository implements
// (options.DefaultEngineName, which an omitted --engine flag also stands
// for) and enforces that a second run against an existing data directory
// requests the persisted value; a mismatch is a fatal startup error.
func resolveEngine(dir, requested string) (string, error) {
	if requested != options.DefaultEngineName {
		return "", fmt.Errorf("unsupported engine %q: only %q is implemented", requested, options.DefaultEngineName)
	}

	raw, err := filesys.ReadFile(filepath.Join(dir, engineMarkerFile))
	if err != nil {
		if os.IsNotExist(err) {
			return requested, nil
		}
		return "", fmt.Errorf("failed to read engine marker: %w", err)
	}

	current := strings.TrimSpace(string(raw))
	if current == "" {
		return requested, nil
	}
	if requested != current {
		return "", fmt.Errorf(
			"the requested engine %q does not match the engine currently in use: %q", requested, current,
		)
	}
	return current, nil
}
