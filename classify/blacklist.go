package classify

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/feedclean/dom"
	"github.com/hazyhaar/feedclean/settings"
)

// MatchesBlacklist reports whether the lowercased text of n contains any of
// words as a substring. words must already be normalized.
func MatchesBlacklist(n *html.Node, words []string) bool {
	text := strings.ToLower(dom.TextContent(n))
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// HideBlacklisted suppresses article posts whose text mentions a blacklisted
// word. It does nothing unless the blacklist is enabled and holds at least
// one non-empty word.
func HideBlacklisted(doc *dom.Document, cfg settings.Configuration) []Suppression {
	if !cfg.EnableBlacklist {
		return nil
	}
	words := settings.NormalizeWords(cfg.BlacklistWords)
	if len(words) == 0 {
		return nil
	}

	r := &recorder{doc: doc, class: Blacklist}
	processed := make(map[*html.Node]struct{})
	for _, post := range dom.QueryAll(doc.Root, articleRegion) {
		if _, seen := processed[post]; seen {
			continue
		}
		if dom.IsHidden(post) || !IsEligible(doc, post) {
			continue
		}
		if MatchesBlacklist(post, words) {
			r.hide(post)
			processed[post] = struct{}{}
		}
	}
	return r.out
}
