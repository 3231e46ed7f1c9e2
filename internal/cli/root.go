// Package cli implements the crater command-line surface: experiment
// create/edit/list/get/delete/run/abort, worker register/list, token
// mint, and the server subcommand — a near-literal mapping of
// original_source/src/cli/args.rs's Commands enum onto Cobra.
//
// Grounded on re-cinq-detergent/internal/cli's one-file-per-command
// layout (package-level var<Cmd> = &cobra.Command{...}, init() wiring
// flags and AddCommand against a shared rootCmd).
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LuuuXXX/crater-ohos/internal/auth"
	"github.com/LuuuXXX/crater-ohos/internal/config"
	"github.com/LuuuXXX/crater-ohos/internal/experiment"
	"github.com/LuuuXXX/crater-ohos/internal/pkgselect"
	"github.com/LuuuXXX/crater-ohos/internal/result"
	"github.com/LuuuXXX/crater-ohos/internal/store"
	"github.com/LuuuXXX/crater-ohos/internal/worker"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "crater",
	Short: "A tool for testing third-party libraries in OHOS environments",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: $RP_DB_PATH or data/crater.sqlite)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openRegistries opens the configured store and wires the registries the
// experiment/worker/token commands share, leaving the caller responsible
// for closing the returned *store.Store.
func openRegistries() (*store.Store, *experiment.Registry, *result.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	path := dbPath
	if path == "" {
		path = cfg.DatabasePath
	}
	db, err := store.Open(store.SQLite, path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store %s: %w", path, err)
	}
	exps := experiment.NewRegistry(db, nil, pkgselect.NewResolver())
	results := result.NewStore(db)
	return db, exps, results, nil
}

// openDB opens just the store, for commands (worker/token) that only
// need one registry of their own.
func openDB() (*store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	path := dbPath
	if path == "" {
		path = cfg.DatabasePath
	}
	db, err := store.Open(store.SQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return db, nil
}

func openWorkerRegistry() (*store.Store, *worker.Registry, error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	return db, worker.NewRegistry(db), nil
}

func openTokenRegistry() (*store.Store, *auth.Registry, error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	return db, auth.NewRegistry(db), nil
}
