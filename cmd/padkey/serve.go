package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haukened/padkey/internal/app"
	"github.com/haukened/padkey/internal/config"
	"github.com/haukened/padkey/internal/httpx"
	"github.com/haukened/padkey/internal/metrics"
	"github.com/haukened/padkey/internal/pool"
	"github.com/haukened/padkey/internal/scheduler"
	"github.com/haukened/padkey/internal/store"
	"github.com/haukened/padkey/internal/store/filesystem"
	"github.com/haukened/padkey/internal/store/sqlite"
	"github.com/haukened/padkey/web"
)

// realClock implements app.Clock using time.Now.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// serveFlags maps command-line flags onto configuration keys.
var serveFlags = []struct{ flag, key, usage string }{
	{"addr", "addr", "listen address (ip:port)"},
	{"data-dir", "data_dir", "directory holding pools and the ledger database"},
	{"config-file", "config_file", "JSON settings file (daysToKeep, serverDataMode)"},
	{"mode", "server_data_mode", "pool mode: daily or single"},
	{"days-to-keep", "days_to_keep", "daily pools kept (-1 keeps all)"},
	{"pool-size", "pool_size", "bytes per pool (accepts KiB/MiB)"},
	{"max-upload", "max_upload", "largest file accepted by /api/encode"},
	{"log-level", "log_level", "debug, info, warn or error"},
	{"log-format", "log_format", "text or json"},
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pool server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flagOverrides(cmd.Flags()))
		},
	}
	for _, f := range serveFlags {
		cmd.Flags().String(f.flag, "", f.usage)
	}
	return cmd
}

// flagOverrides returns only the flags the user set, keyed by config key.
func flagOverrides(flags *pflag.FlagSet) map[string]any {
	out := map[string]any{}
	for _, f := range serveFlags {
		if fl := flags.Lookup(f.flag); fl != nil && fl.Changed {
			out[f.key] = fl.Value.String()
		}
	}
	return out
}

func loadConfig(overrides map[string]any) (*config.Config, error) {
	cfg, err := config.Load(config.WithOverrides(overrides), config.WithBootstrap())
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func ensureDataDir(dir string) (string, error) {
	st, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", fmt.Errorf("create data directory: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("stat data directory: %w", err)
	case !st.IsDir():
		return "", fmt.Errorf("data path %s is not a directory", dir)
	}
	return dir, nil
}

func openDatabase(dsn string) (*sql.DB, *sqlite.Ledger, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite driver: %w", err)
	}
	ledger, err := sqlite.New(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return db, ledger, nil
}

// server bundles the wired components of a running padkey server.
type server struct {
	cfg       *config.Config
	db        *sql.DB
	store     *store.Store
	service   *app.Service
	scheduler *scheduler.Scheduler
	metrics   *metrics.Manager
	handler   http.Handler
}

// buildServer wires storage, service, scheduler, metrics, and HTTP for cfg.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, gen pool.Generator) (*server, error) {
	dataDir, err := ensureDataDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	files, err := filesystem.New(dataDir)
	if err != nil {
		return nil, fmt.Errorf("init pool storage: %w", err)
	}
	db, ledger, err := openDatabase(cfg.SQLiteDSN())
	if err != nil {
		return nil, err
	}
	clock := realClock{}
	st := store.New(files, ledger, clock, gen, int(cfg.PoolSize))
	if err := st.Reconcile(ctx); err != nil {
		logger.Warn("ledger reconcile failed", "domain", "store", "error", err)
	}
	mm := metrics.New(db, metrics.Config{Logger: logger})
	if err := mm.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init metrics schema: %w", err)
	}
	svc := app.NewService(st, clock, app.Options{
		Mode:       cfg.Mode,
		DaysToKeep: cfg.DaysToKeep,
		MaxInput:   cfg.MaxUpload.Int64(),
		CachePools: cfg.CachePools,
		Metrics:    mm,
	})
	sched := scheduler.New(st, mm, scheduler.Config{
		Mode:       cfg.Mode,
		DaysToKeep: cfg.DaysToKeep,
		Clock:      clock,
		Logger:     logger,
		Evictor:    svc,
	})
	h, err := buildHandler(cfg, svc, mm, db, dataDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &server{cfg: cfg, db: db, store: st, service: svc, scheduler: sched, metrics: mm, handler: h}, nil
}

func buildHandler(cfg *config.Config, svc *app.Service, mm *metrics.Manager, db *sql.DB, dataDir string) (http.Handler, error) {
	readiness := func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if _, err := os.ReadDir(dataDir); err != nil {
			return err
		}
		return svc.Ready(ctx)
	}
	tmpl, err := httpx.ParseIndex(web.Assets)
	if err != nil {
		return nil, err
	}
	css, err := fs.Sub(web.Assets, "css")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}
	h := httpx.New(svc, cfg.MaxUpload.Int64(), readiness)
	h.IndexTmpl = tmpl
	h.Assets = http.FS(css)
	h.Metrics = metrics.Handler(mm, cfg.MetricsToken)
	h.Limiter = httpx.NewLimiter(cfg.DownloadRate, cfg.DownloadBurst)
	return h.Router(), nil
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second, ReadTimeout: 60 * time.Second, WriteTimeout: 120 * time.Second, IdleTimeout: 120 * time.Second}
}

// logStartup reports the mode and validity window, the way operators check
// what keys issued now will be good for.
func logStartup(logger *slog.Logger, cfg *config.Config) {
	logger.Info("server started", "addr", cfg.Addr, "pid", os.Getpid())
	logger.Info("pool settings",
		"mode", cfg.Mode,
		"days_to_keep", cfg.DaysToKeep,
		"retention", cfg.RetentionSummary(),
		"data_dir", cfg.DataDir,
		"pool_size", cfg.PoolSize.Int64(),
	)
}

func runServe(ctx context.Context, overrides map[string]any) error {
	cfg, err := loadConfig(overrides)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.LogFormat, cfg.SlogLevel())
	slog.SetDefault(logger)

	srv, err := buildServer(ctx, cfg, logger, pool.CryptoGenerator{})
	if err != nil {
		return err
	}
	defer srv.db.Close()

	srv.metrics.Start(ctx)
	srv.scheduler.RunStartup(ctx)
	srv.scheduler.Start(ctx)

	httpSrv := newServer(cfg, srv.handler)
	serveErr := make(chan error, 1)
	var wg conc.WaitGroup
	wg.Go(func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	})
	logStartup(logger, cfg)

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
	case err = <-serveErr:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if sErr := httpSrv.Shutdown(shutdownCtx); sErr != nil {
		logger.Warn("http shutdown", "error", sErr)
	}
	wg.Wait()

	// The scheduler reports into metrics, so it stops first.
	srv.scheduler.Stop()
	if mErr := srv.metrics.Stop(shutdownCtx); mErr != nil {
		logger.Warn("metrics flush on shutdown", "error", mErr)
	}
	return err
}
