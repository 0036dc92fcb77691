// Package classify holds the heuristic pattern classifiers. Each classifier
// maps a document and a settings snapshot to a set of nodes to suppress,
// consulting the safety guard before every write. Classifiers only read
// structure and write the single visibility toggle from package dom.
package classify

import (
	"regexp"

	"golang.org/x/net/html"

	"github.com/hazyhaar/feedclean/dom"
)

// feedItemLimit is the number of children above which a feed region is
// considered the whole feed rather than a single item.
const feedItemLimit = 5

var (
	protectedID = regexp.MustCompile(`(?i)root|app|main`)
	feedRegion  = dom.MustSelector(`[role="feed"]`)
)

// IsEligible is the circuit breaker against over-suppression. It rejects
// the document, <html> and <body>, any node whose id mentions root, app or
// main, and any node wrapping a feed region with more than five children.
func IsEligible(doc *dom.Document, n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || doc.IsTopLevel(n) {
		return false
	}
	if id := dom.Attr(n, "id"); id != "" && protectedID.MatchString(id) {
		return false
	}
	if feed := dom.Query(n, feedRegion); feed != nil && dom.ChildCount(feed) > feedItemLimit {
		return false
	}
	return true
}
