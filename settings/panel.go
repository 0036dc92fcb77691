package settings

import (
	"context"
	"html"
	"log/slog"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Panel implements the settings panel operations on top of a Store: flip a
// switch, add or remove a blacklist word. Every successful write notifies
// the engine so the change applies without waiting for the next mutation.
type Panel struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	strict   *bluemonday.Policy
}

// NewPanel creates a Panel. notifier may be nil.
func NewPanel(store Store, notifier Notifier, logger *slog.Logger) *Panel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{
		store:    store,
		notifier: notifier,
		logger:   logger,
		strict:   bluemonday.StrictPolicy(),
	}
}

// Load returns the stored configuration over the defaults.
func (p *Panel) Load(ctx context.Context) (Configuration, error) {
	return p.store.Get(ctx, Defaults())
}

// Words returns the stored blacklist in insertion order.
func (p *Panel) Words(ctx context.Context) ([]string, error) {
	cfg, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.BlacklistWords, nil
}

// SetToggle writes one boolean switch by its stored name.
func (p *Panel) SetToggle(ctx context.Context, name string, on bool) error {
	update, err := ToggleUpdate(name, on)
	if err != nil {
		return err
	}
	if err := p.store.Set(ctx, update); err != nil {
		return err
	}
	p.logger.Info("settings: toggle changed", "name", name, "enabled", on)
	p.notify()
	return nil
}

// CleanWord turns raw panel input into a stored blacklist word: markup is
// stripped, then the result is trimmed and lowercased.
func (p *Panel) CleanWord(raw string) string {
	text := html.UnescapeString(p.strict.Sanitize(raw))
	return strings.ToLower(strings.TrimSpace(text))
}

// AddWord appends a word to the blacklist. Empty input is rejected with
// ErrEmptyWord and an existing word with ErrDuplicateWord.
func (p *Panel) AddWord(ctx context.Context, raw string) (string, error) {
	word := p.CleanWord(raw)
	if word == "" {
		return "", ErrEmptyWord
	}
	cfg, err := p.Load(ctx)
	if err != nil {
		return "", err
	}
	if slices.Contains(cfg.BlacklistWords, word) {
		return word, ErrDuplicateWord
	}
	words := append(slices.Clone(cfg.BlacklistWords), word)
	if err := p.store.Set(ctx, Partial{BlacklistWords: &words}); err != nil {
		return "", err
	}
	p.logger.Info("settings: word added", "word", word, "count", len(words))
	p.notify()
	return word, nil
}

// RemoveWord drops every exact occurrence of word. Removing an absent word
// still rewrites the list and notifies.
func (p *Panel) RemoveWord(ctx context.Context, word string) error {
	cfg, err := p.Load(ctx)
	if err != nil {
		return err
	}
	words := slices.DeleteFunc(slices.Clone(cfg.BlacklistWords), func(w string) bool { return w == word })
	if err := p.store.Set(ctx, Partial{BlacklistWords: &words}); err != nil {
		return err
	}
	p.logger.Info("settings: word removed", "word", word, "count", len(words))
	p.notify()
	return nil
}

func (p *Panel) notify() {
	if p.notifier != nil {
		p.notifier.NotifyConfigurationChanged()
	}
}
