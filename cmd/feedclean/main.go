// Command feedclean hides reels, stories, suggested posts and blacklisted
// posts from a social feed.
//
// Usage:
//
//	feedclean -scan page.html [-out clean.html]  # one static pass, report on stdout
//	feedclean -url https://www.facebook.com/     # live page, watcher and bridge
//	feedclean -serve                             # settings panel and bridge only
//	feedclean -mcp                               # MCP tools on stdio
//	feedclean -url https://... -mcp              # live page plus its MCP tools on stdio
//	feedclean -notify http://127.0.0.1:7788      # tell a running engine to reload
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/feedclean/bridge"
	"github.com/hazyhaar/feedclean/browser"
	"github.com/hazyhaar/feedclean/cleaner"
	"github.com/hazyhaar/feedclean/config"
	"github.com/hazyhaar/feedclean/settings"
	"github.com/hazyhaar/feedclean/watch"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "path to feedclean.yaml config file")
	scanPath := flag.String("scan", "", "run one pass over a saved HTML page")
	outPath := flag.String("out", "", "with -scan: write the cleaned page here")
	pageURL := flag.String("url", "", "clean a live page")
	serve := flag.Bool("serve", false, "serve the settings panel and messaging bridge")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools on stdio")
	notify := flag.String("notify", "", "send reloadSettings to the engine at this base URL")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			logger.Error("feedclean: fatal", "error", err)
			os.Exit(1)
		}
	}
	if *pageURL != "" {
		cfg.Page.URL = *pageURL
	}

	var err error
	switch {
	case *notify != "":
		bridge.NewClient(*notify, bridge.WithClientLogger(logger)).Notify(ctx)
	case *scanPath != "":
		err = runScan(ctx, logger, cfg, *scanPath, *outPath, os.Stdout)
	case cfg.Page.URL != "":
		err = runLive(ctx, logger, cfg, *mcpMode)
	case *mcpMode:
		err = runMCP(ctx, logger)
	case *serve:
		err = runServe(ctx, logger, cfg)
	default:
		fmt.Fprintln(os.Stderr, "usage: feedclean -scan <file> | -url <url> | -serve | -mcp | -notify <addr>")
		os.Exit(2)
	}
	if err != nil {
		logger.Error("feedclean: fatal", "error", err)
		os.Exit(1)
	}
}

// settingsStore is a settings.Store that can be closed and watched for
// changes, whichever process made them.
type settingsStore struct {
	settings.Store
	close func() error
	watch func(ctx context.Context, onChange func()) error
	// stats reports the change poller, nil when the backend has none.
	stats func() watch.Stats
}

func openStore(cfg *config.Config, logger *slog.Logger) (*settingsStore, error) {
	switch cfg.Settings.Backend {
	case config.BackendYAML:
		fs := settings.NewFileStore(cfg.Settings.Path)
		return &settingsStore{
			Store: fs,
			close: func() error { return nil },
			watch: func(ctx context.Context, onChange func()) error {
				return fs.Watch(ctx, cfg.Debounce.Window, logger, onChange)
			},
		}, nil
	default:
		db, err := settings.OpenSQLite(cfg.Settings.Path)
		if err != nil {
			return nil, err
		}
		poller := watch.New(db, watch.Options{
			Interval: cfg.Settings.PollInterval,
			Debounce: cfg.Debounce.Window,
			Logger:   logger,
		})
		return &settingsStore{
			Store: db,
			close: db.Close,
			watch: func(ctx context.Context, onChange func()) error {
				poller.OnChange(ctx, func() error {
					onChange()
					return nil
				})
				return nil
			},
			stats: poller.Stats,
		}, nil
	}
}

func runScan(ctx context.Context, logger *slog.Logger, cfg *config.Config, path, out string, stdout io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	defer f.Close()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()
	cache := settings.NewCache(store, settings.WithDefaults(cfg.BaseSettings()), settings.WithCacheLogger(logger))
	cache.Refresh(ctx)

	rep, host, err := cleaner.Scan(ctx, f, cache.Current(), logger)
	if err != nil {
		return err
	}

	if out != "" {
		w, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := host.Render(w); err != nil {
			w.Close()
			return fmt.Errorf("scan: render: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func newMCPServer() *mcp.Server {
	return mcp.NewServer(&mcp.Implementation{Name: "feedclean", Version: version}, nil)
}

func runMCP(ctx context.Context, logger *slog.Logger) error {
	srv := newMCPServer()
	cleaner.RegisterMCP(srv, logger)
	logger.Info("feedclean: mcp server on stdio")
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	// Without a local engine, reload messages are only logged.
	logOnly := settings.NotifierFunc(func() {
		logger.Info("feedclean: reload requested, no engine attached")
	})
	handler := bridge.NewHandler(bridge.Config{
		Notifier: logOnly,
		Panel:    settings.NewPanel(store, nil, logger),
		Logger:   logger,
	})
	return serveHTTP(ctx, logger, cfg.Listen, handler)
}

func runLive(ctx context.Context, logger *slog.Logger, cfg *config.Config, withMCP bool) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Headful:          cfg.Browser.Headful,
		Stealth:          cfg.Browser.Stealth,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	tab, err := browser.OpenTab(ctx, mgr, cfg.Page.URL)
	if err != nil {
		return err
	}
	defer tab.Close()

	cl := cleaner.New(cleaner.Config{
		Host:     browser.NewHost(tab, logger),
		Settings: settings.NewCache(store, settings.WithDefaults(cfg.BaseSettings()), settings.WithCacheLogger(logger)),
		Window:   cfg.Debounce.Window,
		Logger:   logger,
	})

	handler := liveHandler(store, cl, func() any {
		rep, _ := cl.LastReport()
		status := map[string]any{"watcher": cl.Watcher().Stats(), "last_report": rep}
		if store.stats != nil {
			status["store_watch"] = store.stats()
		}
		return status
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cl.Start(gctx) })
	g.Go(func() error { return serveHTTP(gctx, logger, cfg.Listen, handler) })
	g.Go(func() error { return store.watch(gctx, cl.NotifyConfigurationChanged) })
	if withMCP {
		srv := newMCPServer()
		cl.RegisterMCP(srv)
		g.Go(func() error { return srv.Run(gctx, &mcp.StdioTransport{}) })
	}

	logger.Info("feedclean: cleaning", "url", cfg.Page.URL, "listen", cfg.Listen)
	return g.Wait()
}

// liveHandler serves the bridge for a running engine. Panel writes reach
// the engine through store.watch only, like writes from any other process,
// so each edit triggers a single pass. reloadSettings messages still notify
// the engine directly.
func liveHandler(store *settingsStore, engine settings.Notifier, status func() any, logger *slog.Logger) http.Handler {
	return bridge.NewHandler(bridge.Config{
		Notifier: engine,
		Panel:    settings.NewPanel(store, nil, logger),
		Status:   status,
		Logger:   logger,
	})
}

func serveHTTP(ctx context.Context, logger *slog.Logger, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("feedclean: bridge listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("bridge: listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("feedclean: bridge shutdown", "error", err)
	}
	return nil
}
