// Package observer turns a stream of DOM mutation notifications into
// debounced classification passes. A burst of mutations produces one pass,
// run once the page has been quiet for the debounce window.
package observer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultWindow is the quiet period after the last mutation before a pass.
const DefaultWindow = 100 * time.Millisecond

// ErrRunning is returned by Run when the loop is already active.
var ErrRunning = errors.New("observer: already running")

// State is the debouncer state.
type State int32

const (
	// Idle: no pass scheduled.
	Idle State = iota
	// PendingRun: a pass is scheduled for when the window expires.
	PendingRun
)

func (s State) String() string {
	if s == PendingRun {
		return "pending_run"
	}
	return "idle"
}

// Trigger says why a pass ran.
type Trigger string

const (
	TriggerMutation Trigger = "mutation"
	TriggerReload   Trigger = "reload"
)

// PassFunc executes one full classification pass.
type PassFunc func(ctx context.Context, trigger Trigger) error

// Config for creating a Watcher.
type Config struct {
	// Window is the debounce time. Default: DefaultWindow.
	Window time.Duration
	// Pass runs on the watcher goroutine; passes never overlap.
	Pass PassFunc
	// Buffer bounds queued notifications. Default: 1024.
	Buffer int
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Watcher owns the Idle/PendingRun state machine. Notify and Reload are
// safe to call from any goroutine; every pass executes inside Run.
type Watcher struct {
	cfg      Config
	notifyCh chan struct{}
	reloadCh chan struct{}
	stopped  chan struct{}

	state   atomic.Int32
	running atomic.Bool

	mutations atomic.Int64
	reloads   atomic.Int64
	passes    atomic.Int64
	failures  atomic.Int64
	passNs    atomic.Int64
	lastPass  atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	State       string        `json:"state"`
	Mutations   int64         `json:"mutations"`
	Reloads     int64         `json:"reloads"`
	Passes      int64         `json:"passes"`
	Failures    int64         `json:"failures"`
	AvgPassTime time.Duration `json:"avg_pass_time"`
	LastPass    time.Time     `json:"last_pass,omitzero"`
}

// New creates a Watcher. Call Run to start it.
func New(cfg Config) *Watcher {
	cfg.defaults()
	return &Watcher{
		cfg:      cfg,
		notifyCh: make(chan struct{}, cfg.Buffer),
		reloadCh: make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
}

// Window returns the effective debounce window.
func (w *Watcher) Window() time.Duration { return w.cfg.Window }

// State returns the current debouncer state.
func (w *Watcher) State() State { return State(w.state.Load()) }

// Notify records one mutation. It blocks only while the queue is full and
// the loop is alive; after Run returns it is a no-op.
func (w *Watcher) Notify() {
	select {
	case w.notifyCh <- struct{}{}:
	case <-w.stopped:
	}
}

// Reload asks for an immediate pass, independent of the debounce timer.
// Reloads requested while one is queued coalesce.
func (w *Watcher) Reload() {
	select {
	case w.reloadCh <- struct{}{}:
	default:
	}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		State:     w.State().String(),
		Mutations: w.mutations.Load(),
		Reloads:   w.reloads.Load(),
		Passes:    w.passes.Load(),
		Failures:  w.failures.Load(),
	}
	if s.Passes > 0 {
		s.AvgPassTime = time.Duration(w.passNs.Load() / s.Passes)
	}
	if ns := w.lastPass.Load(); ns > 0 {
		s.LastPass = time.Unix(0, ns)
	}
	return s
}

// Run is the watcher loop. It blocks until ctx is cancelled; a pass in
// flight when that happens completes first. A Watcher runs at most once.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(w.stopped)

	log := w.cfg.Logger
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		w.state.Store(int32(Idle))
	}()

	log.Debug("observer: started", "window", w.cfg.Window)
	for {
		select {
		case <-ctx.Done():
			log.Debug("observer: stopped", "passes", w.passes.Load())
			return nil

		case <-w.notifyCh:
			w.mutations.Add(1)
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.cfg.Window)
			timerC = timer.C
			w.state.Store(int32(PendingRun))

		case <-timerC:
			timer, timerC = nil, nil
			w.state.Store(int32(Idle))
			w.pass(ctx, TriggerMutation)

		case <-w.reloadCh:
			w.reloads.Add(1)
			w.pass(ctx, TriggerReload)
		}
	}
}

func (w *Watcher) pass(ctx context.Context, trigger Trigger) {
	if w.cfg.Pass == nil {
		return
	}
	start := time.Now()
	err := w.cfg.Pass(ctx, trigger)
	elapsed := time.Since(start)

	w.passes.Add(1)
	w.passNs.Add(int64(elapsed))
	w.lastPass.Store(start.UnixNano())
	if err != nil {
		w.failures.Add(1)
		w.cfg.Logger.Warn("observer: pass failed", "trigger", trigger, "error", err)
		return
	}
	w.cfg.Logger.Debug("observer: pass complete", "trigger", trigger, "duration", elapsed)
}
