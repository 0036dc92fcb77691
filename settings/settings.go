// Package settings owns the user configuration: its shape and defaults, the
// cache a classification pass reads from, the persistence stores (SQLite or
// a YAML file) and the panel operations that edit it.
package settings

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// Configuration is the full set of user switches.
type Configuration struct {
	HideReels       bool     `json:"hideReels" yaml:"hideReels"`
	HideStories     bool     `json:"hideStories" yaml:"hideStories"`
	HideSuggested   bool     `json:"hideSuggested" yaml:"hideSuggested"`
	EnableBlacklist bool     `json:"enableBlacklist" yaml:"enableBlacklist"`
	BlacklistWords  []string `json:"blacklistWords" yaml:"blacklistWords"`
}

// Defaults is the configuration used before anything is stored and whenever
// the store cannot be read.
func Defaults() Configuration {
	return Configuration{
		HideReels:       true,
		HideStories:     true,
		HideSuggested:   true,
		EnableBlacklist: false,
		BlacklistWords:  []string{},
	}
}

// Clone returns a copy that shares no memory with c.
func (c Configuration) Clone() Configuration {
	out := c
	out.BlacklistWords = slices.Clone(c.BlacklistWords)
	if out.BlacklistWords == nil {
		out.BlacklistWords = []string{}
	}
	return out
}

// NormalizeWords lowercases and trims every word and drops the empty ones,
// keeping order.
func NormalizeWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Toggle names, as stored.
const (
	KeyHideReels       = "hideReels"
	KeyHideStories     = "hideStories"
	KeyHideSuggested   = "hideSuggested"
	KeyEnableBlacklist = "enableBlacklist"
	KeyBlacklistWords  = "blacklistWords"
)

// Keys lists every stored key.
var Keys = []string{KeyHideReels, KeyHideStories, KeyHideSuggested, KeyEnableBlacklist, KeyBlacklistWords}

var (
	ErrUnknownToggle = errors.New("settings: unknown toggle")
	ErrEmptyWord     = errors.New("settings: empty word")
	ErrDuplicateWord = errors.New("settings: word already in blacklist")
)

// Partial is a sparse update; nil fields are left untouched.
type Partial struct {
	HideReels       *bool     `json:"hideReels,omitempty" yaml:"hideReels,omitempty"`
	HideStories     *bool     `json:"hideStories,omitempty" yaml:"hideStories,omitempty"`
	HideSuggested   *bool     `json:"hideSuggested,omitempty" yaml:"hideSuggested,omitempty"`
	EnableBlacklist *bool     `json:"enableBlacklist,omitempty" yaml:"enableBlacklist,omitempty"`
	BlacklistWords  *[]string `json:"blacklistWords,omitempty" yaml:"blacklistWords,omitempty"`
}

// ToggleUpdate builds a Partial setting one boolean switch by name.
func ToggleUpdate(name string, on bool) (Partial, error) {
	var p Partial
	switch name {
	case KeyHideReels:
		p.HideReels = &on
	case KeyHideStories:
		p.HideStories = &on
	case KeyHideSuggested:
		p.HideSuggested = &on
	case KeyEnableBlacklist:
		p.EnableBlacklist = &on
	default:
		return p, ErrUnknownToggle
	}
	return p, nil
}

// Apply merges p over c.
func (c Configuration) Apply(p Partial) Configuration {
	out := c.Clone()
	if p.HideReels != nil {
		out.HideReels = *p.HideReels
	}
	if p.HideStories != nil {
		out.HideStories = *p.HideStories
	}
	if p.HideSuggested != nil {
		out.HideSuggested = *p.HideSuggested
	}
	if p.EnableBlacklist != nil {
		out.EnableBlacklist = *p.EnableBlacklist
	}
	if p.BlacklistWords != nil && *p.BlacklistWords != nil {
		out.BlacklistWords = slices.Clone(*p.BlacklistWords)
	} else if p.BlacklistWords != nil {
		out.BlacklistWords = []string{}
	}
	return out
}

// Provider reads the stored configuration, merging stored values over
// defaults for any key never written.
type Provider interface {
	Get(ctx context.Context, defaults Configuration) (Configuration, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, defaults Configuration) (Configuration, error)

func (f ProviderFunc) Get(ctx context.Context, defaults Configuration) (Configuration, error) {
	return f(ctx, defaults)
}

// Fixed is a Provider that always returns cfg.
func Fixed(cfg Configuration) Provider {
	cfg = cfg.Clone()
	return ProviderFunc(func(context.Context, Configuration) (Configuration, error) {
		return cfg.Clone(), nil
	})
}

// Store is a Provider that can also be written.
type Store interface {
	Provider
	Set(ctx context.Context, p Partial) error
}

// Notifier is told whenever the stored configuration changes.
type Notifier interface {
	NotifyConfigurationChanged()
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func()

func (f NotifierFunc) NotifyConfigurationChanged() { f() }
