package browser

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/feedclean/dom"
)

const bindingName = "__feedclean_mutation"

var (
	//go:embed observer.js
	observerJS string
	//go:embed probe.js
	probeJS string
	//go:embed apply.js
	applyJS string
)

// Host exposes a live tab to the cleaner: snapshot the page with layout
// stamps, apply suppressions by node key, and report mutations.
type Host struct {
	tab    *Tab
	logger *slog.Logger
}

// NewHost wraps an open tab.
func NewHost(tab *Tab, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{tab: tab, logger: logger}
}

// WaitBody blocks until document.body exists.
func (h *Host) WaitBody(ctx context.Context) error {
	if _, err := h.tab.Page.Context(ctx).Element("body"); err != nil {
		return fmt.Errorf("browser: wait body: %w", err)
	}
	return nil
}

// Snapshot stamps every element with its key, rendered height and (for
// images) computed border radius, then parses the resulting markup.
func (h *Host) Snapshot(ctx context.Context) (*dom.Document, error) {
	res, err := h.tab.Page.Context(ctx).Eval(probeJS)
	if err != nil {
		return nil, fmt.Errorf("browser: probe: %w", err)
	}
	doc, err := dom.ParseString(res.Value.Str())
	if err != nil {
		return nil, fmt.Errorf("browser: snapshot: %w", err)
	}
	return doc, nil
}

// Apply hides the live nodes behind keys and returns how many changed.
func (h *Host) Apply(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	res, err := h.tab.Page.Context(ctx).Eval(applyJS, keys)
	if err != nil {
		return 0, fmt.Errorf("browser: apply: %w", err)
	}
	return res.Value.Int(), nil
}

// Observe injects a MutationObserver on document.body (child list, whole
// subtree) and calls onMutation for every batch it reports. It returns once
// the observer is installed; events stop when ctx is cancelled.
func (h *Host) Observe(ctx context.Context, onMutation func()) error {
	page := h.tab.Page.Context(ctx)
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		h.logger.Warn("browser: addBinding failed (may already exist)", "error", err)
	}

	wait := page.EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name == bindingName {
			onMutation()
		}
	})
	go wait()

	if _, err := page.Eval(observerJS); err != nil {
		return fmt.Errorf("browser: inject observer: %w", err)
	}
	h.logger.Debug("browser: observer injected", "url", h.tab.PageURL)
	return nil
}
