// Package daemon wires the Store, the C2-C9 registries/adapters, the
// HTTP API surface and the metrics endpoint into one running server
// process. Platform adapters are built once at startup from the TOML
// config file; a later reload of that file does not change them.
//
// Grounded on the teacher's cmd/releaseparty-api/main.go bootstrap shape
// (config.Load, store.Open, srv.Router, http.Server with a
// ReadHeaderTimeout, signal-triggered graceful shutdown), extended with
// the config.Watcher, metrics.Registry and platform.Registry wiring
// spec.md §6's server subcommand adds.
package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LuuuXXX/crater-ohos/internal/api"
	"github.com/LuuuXXX/crater-ohos/internal/auth"
	"github.com/LuuuXXX/crater-ohos/internal/config"
	"github.com/LuuuXXX/crater-ohos/internal/experiment"
	"github.com/LuuuXXX/crater-ohos/internal/metrics"
	"github.com/LuuuXXX/crater-ohos/internal/pkgselect"
	"github.com/LuuuXXX/crater-ohos/internal/platform"
	"github.com/LuuuXXX/crater-ohos/internal/result"
	"github.com/LuuuXXX/crater-ohos/internal/store"
	"github.com/LuuuXXX/crater-ohos/internal/worker"
)

// Options overrides the env-derived config.Config for callers (like the
// CLI's "server" subcommand) that take --addr/--config flags explicitly.
type Options struct {
	Addr           string
	DatabasePath   string
	TOMLConfigPath string
}

// Run opens the store, wires every registry and the HTTP API behind it,
// and blocks serving until ctx is cancelled or a terminating signal
// arrives. It always returns a non-nil error except on clean shutdown.
func Run(ctx context.Context, opts Options) error {
	logger := log.New(os.Stdout, "craterd ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("daemon: load config: %w", err)
	}
	addr := firstNonEmpty(opts.Addr, cfg.Addr)
	dbPath := firstNonEmpty(opts.DatabasePath, cfg.DatabasePath)
	tomlPath := firstNonEmpty(opts.TOMLConfigPath, cfg.TOMLConfigPath)

	db, err := store.Open(store.SQLite, dbPath)
	if err != nil {
		return fmt.Errorf("daemon: open store: %w", err)
	}
	defer db.Close()

	watcher, err := config.NewWatcher(tomlPath, func(err error) {
		logger.Printf("config reload error: %v", err)
	})
	if err != nil {
		logger.Printf("platform config %q not loaded: %v (webhooks disabled)", tomlPath, err)
	} else {
		defer watcher.Close()
	}

	platforms := platform.NewRegistry()
	if watcher != nil {
		for tag, p := range watcher.Current().Platforms {
			adapter, err := newAdapter(tag, p)
			if err != nil {
				logger.Printf("platform %q: github app client: %v (falling back to webhook-only adapter)", tag, err)
				adapter = newAdapter0(tag, p.APIBaseURL, p.WebhookSecret)
			}
			platforms.Register(adapter)
		}
	}

	experiments := experiment.NewRegistry(db, nil, pkgselect.NewResolver())
	workers := worker.NewRegistry(db)
	results := result.NewStore(db)
	tokens := auth.NewRegistry(db)

	reg := prometheus.NewRegistry()
	metricsRegistry := metrics.NewRegistry(reg)

	srv := api.New(experiments, workers, results, tokens, platforms, pkgselect.NewResolver(), logger)

	mux := http.NewServeMux()
	mux.Handle("/", srv.Router())
	mux.Handle("/metrics", metrics.Handler(reg))

	metricsCtx, stopMetricsLoop := context.WithCancel(ctx)
	defer stopMetricsLoop()
	go sampleWorkerGauge(metricsCtx, workers, metricsRegistry, logger)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-ctx.Done():
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("daemon: serve: %w", err)
	}

	logger.Printf("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// sampleWorkerGauge refreshes crater_workers{status} every interval
// until ctx is cancelled, so the gauge reflects live registry state
// rather than only changing on register/heartbeat calls.
func sampleWorkerGauge(ctx context.Context, workers *worker.Registry, reg *metrics.Registry, logger *log.Logger) {
	const interval = 15 * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			all, err := workers.List(ctx)
			if err != nil {
				logger.Printf("metrics: list workers: %v", err)
				continue
			}
			counts := map[worker.Status]int{}
			for _, w := range all {
				counts[w.Status]++
			}
			for _, status := range []worker.Status{worker.StatusIdle, worker.StatusBusy, worker.StatusOffline} {
				reg.WorkersByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
			}
		}
	}
}

// newAdapter builds tag's adapter, attaching a GitHub App installation
// client (able to post tracking comments) when platforms.github.github-app-id
// is configured. Falls through to newAdapter0 for every other tag, and
// for github itself whenever no app credentials are set.
func newAdapter(tag string, p config.Platform) (platform.Adapter, error) {
	if tag == "github" && p.GitHubAppID != 0 {
		return platform.NewGitHubApp(p.APIBaseURL, p.WebhookSecret, p.GitHubAppID, p.GitHubInstallationID, []byte(p.GitHubPrivateKeyPEM))
	}
	return newAdapter0(tag, p.APIBaseURL, p.WebhookSecret), nil
}

func newAdapter0(tag, apiBaseURL, secret string) platform.Adapter {
	switch tag {
	case "gitlab":
		return platform.NewGitLab(apiBaseURL, secret)
	case "gitee":
		return platform.NewGitee(apiBaseURL, secret)
	case "gitcode":
		return platform.NewGitCode(apiBaseURL, secret)
	default:
		return platform.NewGitHub(apiBaseURL, secret)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
