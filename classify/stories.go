package classify

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/feedclean/dom"
	"github.com/hazyhaar/feedclean/settings"
)

const (
	// minTrayEntries is the least number of story entries (and children) a
	// container needs before it is treated as a tray.
	minTrayEntries = 2
	// maxAvatarChildren bounds how deep a profile-picture control may be.
	maxAvatarChildren = 3
)

var (
	labelledDiv   = dom.MustSelector(`div[aria-label]`)
	labelledBtn   = dom.MustSelector(`div[role="button"][aria-label]`)
	storyLink     = dom.MustSelector(`a[href*="/stories/"]`)
	storyDialog   = dom.MustSelector(`div[role="dialog"][aria-label]`)
	buttonControl = dom.MustSelector(`div[role="button"]`)
	articleRegion = dom.MustSelector(`div[role="article"]`)
	image         = dom.MustSelector(`img`)
)

func labelContains(n *html.Node, word string) bool {
	return strings.Contains(strings.ToLower(dom.Label(n)), word)
}

// IsProfilePicture reports whether n is a user's avatar rather than the
// story tray. Both carry "story" in their accessible name; the avatar is
// recognised by a per-user label ("'s story") or by a round image inside a
// shallow control.
func IsProfilePicture(doc *dom.Document, n *html.Node) bool {
	if labelContains(n, "'s story") {
		return true
	}
	if dom.ChildCount(n) > maxAvatarChildren {
		return false
	}
	for _, img := range dom.QueryAll(n, image) {
		br := doc.ComputedStyle(img, "border-radius")
		if strings.Contains(br, "50%") || strings.Contains(br, "999") {
			return true
		}
	}
	return false
}

// StoryEntries counts descendants of n that look like individual stories:
// a button labelled "story" or a link into /stories/.
func StoryEntries(n *html.Node) int {
	count := len(dom.QueryAll(n, storyLink))
	for _, btn := range dom.QueryAll(n, labelledBtn) {
		if labelContains(btn, "story") {
			count++
		}
	}
	return count
}

// IsStoryTray decides whether a "stories"-labelled container should go.
// The profile-picture check runs before the entry count, so an avatar-shaped
// container is kept even when it also holds enough entries.
func IsStoryTray(doc *dom.Document, n *html.Node) bool {
	if !labelContains(n, "stories") || dom.IsHidden(n) || !IsEligible(doc, n) {
		return false
	}
	if IsProfilePicture(doc, n) {
		return false
	}
	return StoryEntries(n) >= minTrayEntries && dom.ChildCount(n) >= minTrayEntries
}

// HideStories runs the three story sub-passes: trays, the full-screen viewer
// dialog, and story links embedded in feed posts.
func HideStories(doc *dom.Document, _ settings.Configuration) []Suppression {
	r := &recorder{doc: doc, class: Stories}

	for _, n := range dom.QueryAll(doc.Root, labelledDiv) {
		if IsStoryTray(doc, n) {
			r.hide(n)
		}
	}

	for _, n := range dom.QueryAll(doc.Root, storyDialog) {
		if labelContains(n, "story") {
			r.hideEligible(n)
		}
	}

	// A single link is safe to hide without the guard.
	for _, link := range dom.QueryAll(doc.Root, storyLink) {
		if btn := dom.Closest(link, buttonControl); btn != nil && IsProfilePicture(doc, btn) {
			continue
		}
		if dom.Closest(link, articleRegion) != nil {
			r.hide(link)
		}
	}

	return r.out
}
