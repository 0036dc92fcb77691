package cleaner

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hazyhaar/feedclean/dom"
)

// Host is the page a Cleaner works on.
type Host interface {
	// Snapshot returns the current document with whatever layout stamps the
	// host can provide.
	Snapshot(ctx context.Context) (*dom.Document, error)
	// Apply hides the nodes behind keys and returns how many it found.
	Apply(ctx context.Context, keys []string) (int, error)
}

// Observable hosts report DOM mutations.
type Observable interface {
	Observe(ctx context.Context, onMutation func()) error
}

// bodyWaiter hosts can defer observation until the page has a body.
type bodyWaiter interface {
	WaitBody(ctx context.Context) error
}

// StaticHost serves one parsed document. Classification mutates it in
// place, so Apply only has to confirm each key resolves.
type StaticHost struct {
	mu  sync.Mutex
	doc *dom.Document
}

// NewStaticHost wraps doc.
func NewStaticHost(doc *dom.Document) *StaticHost {
	return &StaticHost{doc: doc}
}

// LoadStaticHost parses r into a StaticHost.
func LoadStaticHost(r io.Reader) (*StaticHost, error) {
	doc, err := dom.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("cleaner: load: %w", err)
	}
	return NewStaticHost(doc), nil
}

// Document returns the served document.
func (h *StaticHost) Document() *dom.Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc
}

// Snapshot returns the served document.
func (h *StaticHost) Snapshot(context.Context) (*dom.Document, error) {
	return h.Document(), nil
}

// Apply hides each keyed node that is still visible.
func (h *StaticHost) Apply(_ context.Context, keys []string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	found := 0
	for _, k := range keys {
		if n := h.doc.FindByKey(k); n != nil {
			dom.Hide(n)
			found++
		}
	}
	return found, nil
}

// Restore makes each keyed node visible again and returns how many were
// hidden. Nothing but the display declaration is touched.
func (h *StaticHost) Restore(_ context.Context, keys []string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	restored := 0
	for _, k := range keys {
		if n := h.doc.FindByKey(k); n != nil && dom.Unhide(n) {
			restored++
		}
	}
	return restored, nil
}

// Render writes the document with its suppressions.
func (h *StaticHost) Render(w io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Render(w)
}
