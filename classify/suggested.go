package classify

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/feedclean/dom"
	"github.com/hazyhaar/feedclean/settings"
)

const (
	// maxAncestorWalk caps each upward search in FindPostContainer.
	maxAncestorWalk = 25

	// Geometric fallback: a generic block needs this many children and this
	// rendered height to pass as a post card.
	minPostChildren = 3
	minPostHeight   = 200

	followLabel = "Follow"
)

var (
	anyButton = dom.MustSelector(`[role="button"]`)
	feedUnit  = dom.MustSelector(`div[data-pagelet*="FeedUnit"]`)
	feedStory = dom.MustSelector(`div[data-pagelet*="FeedStory"]`)
)

// IsFollowButton reports whether n is a button whose visible text is
// exactly "Follow".
func IsFollowButton(n *html.Node) bool {
	return anyButton.Match(n) && strings.TrimSpace(dom.TextContent(n)) == followLabel
}

// FindPostContainer resolves the post card enclosing start. Semantic
// boundaries win (article role, then feed-unit/feed-story markers); then a
// direct child of a feed or main region; then the first large generic block
// that does not wrap a feed. It returns nil when nothing qualifies.
func FindPostContainer(doc *dom.Document, start *html.Node) *html.Node {
	for _, m := range []cascadia.Matcher{articleRegion, feedUnit, feedStory} {
		if c := dom.Closest(start, m); c != nil {
			return c
		}
	}

	el := dom.ParentElement(start)
	for i := 0; el != nil && i < maxAncestorWalk; i, el = i+1, dom.ParentElement(el) {
		switch dom.Role(dom.ParentElement(el)) {
		case "feed", "main":
			return el
		}
	}

	el = dom.ParentElement(start)
	for i := 0; el != nil && i < maxAncestorWalk; i, el = i+1, dom.ParentElement(el) {
		if el.DataAtom != atom.Div || dom.ChildCount(el) < minPostChildren {
			continue
		}
		if doc.Height(el) > minPostHeight && !dom.Contains(el, feedRegion) {
			return el
		}
	}
	return nil
}

// HideSuggested suppresses the post card around every "Follow" button.
// Buttons without a resolvable card are left alone.
func HideSuggested(doc *dom.Document, _ settings.Configuration) []Suppression {
	r := &recorder{doc: doc, class: Suggested}
	for _, btn := range dom.QueryAll(doc.Root, anyButton) {
		if !IsFollowButton(btn) {
			continue
		}
		if post := FindPostContainer(doc, btn); post != nil {
			r.hideEligible(post)
		}
	}
	return r.out
}
