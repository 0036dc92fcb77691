package browser

import (
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockable maps the resource classes a config may name to CDP types.
// Stylesheets and scripts are absent: the page script stamps rendered heights and
// computed border radii, and the feed only builds itself with its scripts.
var blockable = map[string]proto.NetworkResourceType{
	"images": proto.NetworkResourceTypeImage,
	"fonts":  proto.NetworkResourceTypeFont,
	"media":  proto.NetworkResourceTypeMedia,
}

// blockList is the set of CDP resource types a tab refuses to load.
type blockList map[proto.NetworkResourceType]bool

// newBlockList resolves configured class names. Names that would change
// layout, or that are unknown, are dropped with a warning.
func newBlockList(names []string, logger *slog.Logger) blockList {
	bl := make(blockList, len(names))
	for _, name := range names {
		t, ok := blockable[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			logger.Warn("browser: resource class cannot be blocked", "class", name)
			continue
		}
		bl[t] = true
	}
	return bl
}

func (bl blockList) blocks(t proto.NetworkResourceType) bool { return bl[t] }

// applyResourceBlocking hijacks the tab's requests and fails the blocked
// ones. An empty list leaves the tab untouched.
func applyResourceBlocking(page *rod.Page, bl blockList) {
	if len(bl) == 0 {
		return
	}
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if bl.blocks(h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
}
