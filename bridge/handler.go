package bridge

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/feedclean/settings"
)

// Config for NewHandler.
type Config struct {
	// Notifier receives reloadSettings messages. Required.
	Notifier settings.Notifier
	// Panel serves the /settings routes. Nil disables them.
	Panel *settings.Panel
	// Status, when set, is served as JSON on GET /status.
	Status func() any
	Logger *slog.Logger
}

// NewHandler returns the bridge router:
//
//	GET    /health
//	GET    /status
//	POST   /message                  {"action": "reloadSettings"}
//	GET    /settings
//	PUT    /settings/toggles/{name}  {"enabled": true}
//	GET    /settings/words
//	POST   /settings/words           {"word": "spam"}
//	DELETE /settings/words/{word}
func NewHandler(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(securityHeaders, limitBody, traceID(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Status != nil {
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, cfg.Status())
		})
	}

	r.Post("/message", func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := msg.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		requestLogger(r.Context()).Info("bridge: message received", "action", msg.Action)
		cfg.Notifier.NotifyConfigurationChanged()
		w.WriteHeader(http.StatusNoContent)
	})

	if cfg.Panel != nil {
		r.Route("/settings", func(r chi.Router) {
			p := cfg.Panel

			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				c, err := p.Load(r.Context())
				if err != nil {
					writeError(w, http.StatusInternalServerError, err)
					return
				}
				writeJSON(w, http.StatusOK, c)
			})

			r.Put("/toggles/{name}", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Enabled *bool `json:"enabled"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				if req.Enabled == nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
					return
				}
				err := p.SetToggle(r.Context(), chi.URLParam(r, "name"), *req.Enabled)
				switch {
				case errors.Is(err, settings.ErrUnknownToggle):
					writeError(w, http.StatusNotFound, err)
					return
				case err != nil:
					writeError(w, http.StatusInternalServerError, err)
					return
				}
				c, err := p.Load(r.Context())
				if err != nil {
					writeError(w, http.StatusInternalServerError, err)
					return
				}
				writeJSON(w, http.StatusOK, c)
			})

			r.Get("/words", func(w http.ResponseWriter, r *http.Request) {
				words, err := p.Words(r.Context())
				if err != nil {
					writeError(w, http.StatusInternalServerError, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string][]string{"words": words})
			})

			r.Post("/words", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Word string `json:"word"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				word, err := p.AddWord(r.Context(), req.Word)
				switch {
				case errors.Is(err, settings.ErrEmptyWord):
					writeError(w, http.StatusBadRequest, err)
				case errors.Is(err, settings.ErrDuplicateWord):
					writeError(w, http.StatusConflict, err)
				case err != nil:
					writeError(w, http.StatusInternalServerError, err)
				default:
					writeJSON(w, http.StatusCreated, map[string]string{"word": word})
				}
			})

			r.Delete("/words/{word}", func(w http.ResponseWriter, r *http.Request) {
				// chi matches on RawPath when the request carries one (an
				// escaped '/'), and on the decoded Path otherwise.
				word := chi.URLParam(r, "word")
				if r.URL.RawPath != "" {
					u, err := url.PathUnescape(word)
					if err != nil {
						writeError(w, http.StatusBadRequest, err)
						return
					}
					word = u
				}
				if err := p.RemoveWord(r.Context(), word); err != nil {
					writeError(w, http.StatusInternalServerError, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
		})
	}

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
