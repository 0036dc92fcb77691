package classify

import (
	"github.com/hazyhaar/feedclean/dom"
	"github.com/hazyhaar/feedclean/settings"
)

var (
	reelLink = dom.MustSelector(`a[href*="/reels/"]`)
	reelTray = dom.MustSelector(`div[aria-label="Reels"]`)
)

// HideReels suppresses links into /reels/ and containers labelled exactly
// "Reels". The link pattern is unambiguous, so the guard is the only check.
func HideReels(doc *dom.Document, _ settings.Configuration) []Suppression {
	r := &recorder{doc: doc, class: Reels}
	for _, n := range dom.QueryAll(doc.Root, reelLink) {
		r.hideEligible(n)
	}
	for _, n := range dom.QueryAll(doc.Root, reelTray) {
		r.hideEligible(n)
	}
	return r.out
}
