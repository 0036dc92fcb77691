package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hazyhaar/feedclean/settings"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) NotifyConfigurationChanged() { c.n.Add(1) }

func newTestHandler(t *testing.T) (http.Handler, *countingNotifier) {
	t.Helper()
	store, err := settings.OpenSQLite(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	n := &countingNotifier{}
	h := NewHandler(Config{
		Notifier: n,
		Panel:    settings.NewPanel(store, n, quiet),
		Status:   func() any { return map[string]int{"passes": 3} },
		Logger:   quiet,
	})
	return h, n
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestMessage_Validate(t *testing.T) {
	if err := (Message{Action: ActionReloadSettings}).Validate(); err != nil {
		t.Fatalf("reloadSettings: %v", err)
	}
	if err := (Message{Action: "hideEverything"}).Validate(); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("unknown: got %v, want ErrUnknownAction", err)
	}
}

func TestHandler_ReloadMessage(t *testing.T) {
	h, n := newTestHandler(t)

	w := do(h, "POST", "/message", `{"action":"reloadSettings"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", w.Code)
	}
	if got := n.n.Load(); got != 1 {
		t.Fatalf("notifications: got %d, want 1", got)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" || len(w.Header().Get("X-Trace-ID")) != 8 {
		t.Errorf("missing middleware headers: %v", w.Header())
	}
}

func TestHandler_BadMessages(t *testing.T) {
	h, n := newTestHandler(t)
	for _, body := range []string{`{"action":"other"}`, `not json`, `{}`} {
		if w := do(h, "POST", "/message", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", body, w.Code)
		}
	}
	if got := n.n.Load(); got != 0 {
		t.Fatalf("notifications: got %d, want 0", got)
	}
}

func TestHandler_SettingsPanel(t *testing.T) {
	h, n := newTestHandler(t)

	w := do(h, "GET", "/settings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /settings: %d", w.Code)
	}
	var cfg settings.Configuration
	if err := json.NewDecoder(w.Body).Decode(&cfg); err != nil {
		t.Fatal(err)
	}
	if !cfg.HideReels || cfg.EnableBlacklist {
		t.Fatalf("initial config: %+v", cfg)
	}

	if w := do(h, "PUT", "/settings/toggles/enableBlacklist", `{"enabled":true}`); w.Code != http.StatusOK {
		t.Fatalf("PUT toggle: %d %s", w.Code, w.Body)
	}
	if w := do(h, "PUT", "/settings/toggles/hideAds", `{"enabled":true}`); w.Code != http.StatusNotFound {
		t.Fatalf("PUT unknown toggle: %d", w.Code)
	}
	if w := do(h, "PUT", "/settings/toggles/hideReels", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("PUT without enabled: %d", w.Code)
	}

	w = do(h, "POST", "/settings/words", `{"word":"  Rock Roll "}`)
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), `"rock roll"`) {
		t.Fatalf("POST word: %d %s", w.Code, w.Body)
	}
	if w := do(h, "GET", "/settings/words", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"rock roll"`) {
		t.Fatalf("GET words: %d %s", w.Code, w.Body)
	}
	if w := do(h, "POST", "/settings/words", `{"word":"rock roll"}`); w.Code != http.StatusConflict {
		t.Fatalf("duplicate word: %d", w.Code)
	}
	if w := do(h, "POST", "/settings/words", `{"word":"   "}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty word: %d", w.Code)
	}
	if w := do(h, "DELETE", "/settings/words/rock%20roll", ""); w.Code != http.StatusNoContent {
		t.Fatalf("DELETE word: %d", w.Code)
	}

	w = do(h, "GET", "/settings", "")
	cfg = settings.Configuration{}
	if err := json.NewDecoder(w.Body).Decode(&cfg); err != nil {
		t.Fatal(err)
	}
	if !cfg.EnableBlacklist || len(cfg.BlacklistWords) != 0 {
		t.Fatalf("final config: %+v", cfg)
	}
	// toggle + add + remove
	if got := n.n.Load(); got != 3 {
		t.Fatalf("notifications: got %d, want 3", got)
	}
}

func TestHandler_RemoveWordDecodesOnce(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, word := range []string{"50%20off", "a/b"} {
		if w := do(h, "POST", "/settings/words", `{"word":"`+word+`"}`); w.Code != http.StatusCreated {
			t.Fatalf("POST %q: %d %s", word, w.Code, w.Body)
		}
	}
	for _, path := range []string{"/settings/words/50%2520off", "/settings/words/a%2Fb"} {
		if w := do(h, "DELETE", path, ""); w.Code != http.StatusNoContent {
			t.Fatalf("DELETE %s: %d", path, w.Code)
		}
	}
	w := do(h, "GET", "/settings/words", "")
	var body struct {
		Words []string `json:"words"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Words) != 0 {
		t.Fatalf("words after delete: got %q, want none", body.Words)
	}
}

func TestHandler_Status(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(h, "GET", "/status", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"passes":3`) {
		t.Fatalf("GET /status: %d %s", w.Code, w.Body)
	}
}

func TestClient_NotifyDelivers(t *testing.T) {
	n := &countingNotifier{}
	srv := httptest.NewServer(NewHandler(Config{Notifier: n, Logger: quiet}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithClientLogger(quiet))
	if err := c.Send(context.Background(), Message{Action: ActionReloadSettings}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	c.NotifyConfigurationChanged()
	if got := n.n.Load(); got != 2 {
		t.Fatalf("notifications: got %d, want 2", got)
	}
	if err := c.Send(context.Background(), Message{Action: "nope"}); err == nil {
		t.Fatal("Send with unknown action: expected HTTP 400 error")
	}
}

func TestClient_NotifyWithoutListener(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(addr, WithClientLogger(quiet))
	// Must return quietly.
	c.Notify(context.Background())
	if err := c.Send(context.Background(), Message{Action: ActionReloadSettings}); err == nil {
		t.Fatal("Send to a closed server should fail")
	}
}
