package cleaner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/feedclean/classify"
	"github.com/hazyhaar/feedclean/dom"
	"github.com/hazyhaar/feedclean/settings"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func fixtureConfig() settings.Configuration {
	cfg := settings.Defaults()
	cfg.EnableBlacklist = true
	cfg.BlacklistWords = []string{"Crypto"}
	return cfg
}

func openFixture(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Open("testdata/feed.html")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func hidden(t *testing.T, doc *dom.Document, id string) bool {
	t.Helper()
	n := dom.Query(doc.Root, dom.MustSelector("#"+id))
	if n == nil {
		t.Fatalf("#%s not found", id)
	}
	return dom.IsHidden(n)
}

func TestScan_FixtureFeed(t *testing.T) {
	rep, host, err := Scan(context.Background(), openFixture(t), fixtureConfig(), quiet)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	doc := host.Document()

	for _, id := range []string{"reel", "tray", "post-suggested", "post-spam"} {
		if !hidden(t, doc, id) {
			t.Errorf("#%s should be hidden", id)
		}
	}
	for _, id := range []string{"root", "main", "feed", "avatar", "post-friend", "post-other"} {
		if hidden(t, doc, id) {
			t.Errorf("#%s should stay visible", id)
		}
	}

	want := map[classify.Classifier]int{classify.Reels: 1, classify.Stories: 1, classify.Suggested: 1, classify.Blacklist: 1}
	for c, n := range want {
		if rep.Counts[c] != n {
			t.Errorf("count %s: got %d, want %d", c, rep.Counts[c], n)
		}
	}
	if rep.Total() != 4 || rep.Applied != 4 {
		t.Errorf("total=%d applied=%d, want 4 and 4", rep.Total(), rep.Applied)
	}
	if rep.PassID == "" {
		t.Error("missing pass id")
	}

	var spam *Entry
	for i := range rep.Entries {
		if rep.Entries[i].Classifier == classify.Blacklist {
			spam = &rep.Entries[i]
		}
	}
	if spam == nil || !strings.Contains(spam.Excerpt, "CRYPTO trick") || !strings.Contains(spam.Excerpt, "### Quick Cash") {
		t.Errorf("blacklist excerpt: %+v", spam)
	}

	var out strings.Builder
	if err := host.Render(&out); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(out.String(), "display: none"); got != 4 {
		t.Errorf("rendered suppressions: got %d, want 4", got)
	}
}

func TestStaticHost_Restore(t *testing.T) {
	rep, host, err := Scan(context.Background(), openFixture(t), fixtureConfig(), quiet)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	keys := make([]string, 0, len(rep.Entries))
	for _, e := range rep.Entries {
		keys = append(keys, e.Key)
	}
	n, err := host.Restore(context.Background(), keys)
	if err != nil || n != len(keys) {
		t.Fatalf("Restore: got %d, %v; want %d", n, err, len(keys))
	}
	doc := host.Document()
	for _, id := range []string{"reel", "tray", "post-suggested", "post-spam"} {
		if hidden(t, doc, id) {
			t.Errorf("#%s still hidden", id)
		}
	}
	if n, _ := host.Restore(context.Background(), keys); n != 0 {
		t.Errorf("second Restore: got %d, want 0", n)
	}
}

func TestScan_AllSwitchesOff(t *testing.T) {
	cfg := settings.Configuration{BlacklistWords: []string{"crypto"}}
	rep, _, err := Scan(context.Background(), openFixture(t), cfg, quiet)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if rep.Total() != 0 {
		t.Fatalf("suppressed %d nodes with every switch off", rep.Total())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	got := truncate(strings.Repeat("é", 20), 10)
	if n := len([]rune(got)); n != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("truncate: got %q (%d runes)", got, n)
	}
}

// fakeHost serves one document across passes, so earlier suppressions
// persist the way they do on a live page.
type fakeHost struct {
	mu        sync.Mutex
	doc       *dom.Document
	snapshots int
	applied   [][]string
	failSnap  error
	onMut     func()
}

func (h *fakeHost) Snapshot(context.Context) (*dom.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshots++
	if h.failSnap != nil {
		return nil, h.failSnap
	}
	return h.doc, nil
}

func (h *fakeHost) Apply(_ context.Context, keys []string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.applied = append(h.applied, keys)
	return len(keys), nil
}

func (h *fakeHost) Observe(_ context.Context, onMutation func()) error {
	h.mu.Lock()
	h.onMut = onMutation
	h.mu.Unlock()
	return nil
}

func (h *fakeHost) mutate() {
	h.mu.Lock()
	fn := h.onMut
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *fakeHost) observed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.onMut != nil
}

func (h *fakeHost) snapshotCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshots
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	doc, err := dom.Parse(openFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	return &fakeHost{doc: doc}
}

func TestRunPass_SnapshotError(t *testing.T) {
	h := newFakeHost(t)
	h.failSnap = errors.New("tab crashed")
	c := New(Config{Host: h, Logger: quiet})
	if _, err := c.RunPass(context.Background()); err == nil || !strings.Contains(err.Error(), "tab crashed") {
		t.Fatalf("RunPass: got %v", err)
	}
	if _, ok := c.LastReport(); ok {
		t.Fatal("failed pass produced a report")
	}
}

func TestRunPass_SettingsFailureUsesDefaults(t *testing.T) {
	h := newFakeHost(t)
	failing := settings.ProviderFunc(func(context.Context, settings.Configuration) (settings.Configuration, error) {
		return settings.Configuration{}, errors.New("store locked")
	})
	c := New(Config{
		Host:     h,
		Settings: settings.NewCache(failing, settings.WithCacheLogger(quiet)),
		Logger:   quiet,
	})
	rep, err := c.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	// Defaults: reels, stories, suggested on; blacklist off.
	if rep.Total() != 3 || rep.Counts[classify.Blacklist] != 0 {
		t.Fatalf("report: %+v", rep.Counts)
	}
}

func TestStart_InitialPassThenMutationsAndReload(t *testing.T) {
	h := newFakeHost(t)
	reports := make(chan Report, 8)
	c := New(Config{
		Host:     h,
		Settings: settings.NewCache(settings.Fixed(fixtureConfig()), settings.WithCacheLogger(quiet)),
		Window:   20 * time.Millisecond,
		OnReport: func(r Report) { reports <- r },
		Logger:   quiet,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	first := waitReport(t, reports)
	if first.Total() != 4 {
		t.Fatalf("initial pass: suppressed %d, want 4", first.Total())
	}
	deadline := time.Now().Add(2 * time.Second)
	for !h.observed() {
		if time.Now().After(deadline) {
			t.Fatal("host never observed")
		}
		time.Sleep(time.Millisecond)
	}

	for i := 0; i < 5; i++ {
		h.mutate()
	}
	second := waitReport(t, reports)
	if second.Total() != 0 {
		t.Fatalf("second pass re-suppressed %d nodes", second.Total())
	}

	c.NotifyConfigurationChanged()
	waitReport(t, reports)

	select {
	case r := <-reports:
		t.Fatalf("unexpected extra pass %s", r.PassID)
	case <-time.After(100 * time.Millisecond):
	}
	if got := h.snapshotCount(); got != 3 {
		t.Fatalf("snapshots: got %d, want 3", got)
	}
	if s := c.Watcher().Stats(); s.Mutations != 5 || s.Reloads != 1 || s.Passes != 2 {
		t.Fatalf("watcher stats: %+v", s)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func waitReport(t *testing.T, ch <-chan Report) Report {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no pass completed")
		return Report{}
	}
}
