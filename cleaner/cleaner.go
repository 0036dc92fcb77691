// Package cleaner runs classification passes against a host page: refresh
// the settings, snapshot the page, classify, apply the suppressions and
// report. In live mode a debounced observer schedules the passes.
package cleaner

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/feedclean/classify"
	"github.com/hazyhaar/feedclean/kit"
	"github.com/hazyhaar/feedclean/observer"
	"github.com/hazyhaar/feedclean/settings"
)

// Config for creating a Cleaner.
type Config struct {
	Host     Host
	Settings *settings.Cache
	// Window is the mutation debounce. Default: observer.DefaultWindow.
	Window time.Duration
	// OnReport, when set, receives every completed pass.
	OnReport func(Report)
	Logger   *slog.Logger
}

// Cleaner wires a Host, the settings cache and the mutation watcher.
type Cleaner struct {
	cfg     Config
	watcher *observer.Watcher
	excerpt *excerpter
	last    atomic.Pointer[Report]
}

// New creates a Cleaner.
func New(cfg Config) *Cleaner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Settings == nil {
		cfg.Settings = settings.NewCache(nil, settings.WithCacheLogger(cfg.Logger))
	}
	c := &Cleaner{cfg: cfg, excerpt: newExcerpter()}
	c.watcher = observer.New(observer.Config{
		Window: cfg.Window,
		Pass: func(ctx context.Context, _ observer.Trigger) error {
			_, err := c.RunPass(ctx)
			return err
		},
		Logger: cfg.Logger,
	})
	return c
}

// Watcher exposes the mutation watcher, mostly for its Stats.
func (c *Cleaner) Watcher() *observer.Watcher { return c.watcher }

// RunPass executes one full pass. Callers outside Start must not run it
// concurrently with a started Cleaner.
func (c *Cleaner) RunPass(ctx context.Context) (Report, error) {
	started := time.Now()
	passID := uuid.NewString()
	ctx = kit.WithPassID(ctx, passID)

	c.cfg.Settings.Refresh(ctx)
	cfg := c.cfg.Settings.Current()

	doc, err := c.cfg.Host.Snapshot(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("cleaner: snapshot: %w", err)
	}
	res := classify.Pass(doc, cfg)

	applied, err := c.cfg.Host.Apply(ctx, res.Keys())
	if err != nil {
		return Report{}, fmt.Errorf("cleaner: apply: %w", err)
	}

	rep := c.excerpt.report(passID, started, res, applied)
	c.last.Store(&rep)

	c.cfg.Logger.Info("cleaner: pass complete",
		"pass_id", passID,
		"suppressed", rep.Total(),
		"applied", applied,
		"reels", rep.Counts[classify.Reels],
		"stories", rep.Counts[classify.Stories],
		"suggested", rep.Counts[classify.Suggested],
		"blacklist", rep.Counts[classify.Blacklist],
		"duration", rep.Duration)

	if c.cfg.OnReport != nil {
		c.cfg.OnReport(rep)
	}
	return rep, nil
}

// LastReport returns the most recent pass report.
func (c *Cleaner) LastReport() (Report, bool) {
	if r := c.last.Load(); r != nil {
		return *r, true
	}
	return Report{}, false
}

// NotifyConfigurationChanged schedules an immediate pass on the watcher.
// It is the reloadSettings entry point.
func (c *Cleaner) NotifyConfigurationChanged() {
	c.cfg.Logger.Info("cleaner: configuration changed, re-running")
	c.watcher.Reload()
}

// Start runs the initial pass, attaches the mutation observer when the host
// supports one, then drives passes until ctx is cancelled.
func (c *Cleaner) Start(ctx context.Context) error {
	if _, err := c.RunPass(ctx); err != nil {
		c.cfg.Logger.Warn("cleaner: initial pass failed", "error", err)
	}

	if obs, ok := c.cfg.Host.(Observable); ok {
		if w, ok := c.cfg.Host.(bodyWaiter); ok {
			if err := w.WaitBody(ctx); err != nil {
				return fmt.Errorf("cleaner: %w", err)
			}
		}
		if err := obs.Observe(ctx, c.watcher.Notify); err != nil {
			return fmt.Errorf("cleaner: observe: %w", err)
		}
	}
	return c.watcher.Run(ctx)
}
