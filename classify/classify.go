package classify

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/feedclean/dom"
	"github.com/hazyhaar/feedclean/settings"
)

// Classifier names the detector that produced a suppression.
type Classifier string

const (
	Reels     Classifier = "reels"
	Stories   Classifier = "stories"
	Suggested Classifier = "suggested"
	Blacklist Classifier = "blacklist"
)

// Suppression records one node hidden during a pass.
type Suppression struct {
	Classifier Classifier `json:"classifier"`
	Key        string     `json:"key"`
	Tag        string     `json:"tag"`
	Label      string     `json:"label,omitempty"`

	Node *html.Node `json:"-"`
}

// Result is the outcome of one classification pass. Only nodes whose
// visibility actually changed are listed, so re-running a pass over an
// already cleaned document yields an empty Result.
type Result struct {
	Suppressed []Suppression `json:"suppressed"`
}

// Count returns how many suppressions c contributed.
func (r Result) Count(c Classifier) int {
	n := 0
	for _, s := range r.Suppressed {
		if s.Classifier == c {
			n++
		}
	}
	return n
}

// Keys returns the node keys of every suppression, in pass order.
func (r Result) Keys() []string {
	keys := make([]string, len(r.Suppressed))
	for i, s := range r.Suppressed {
		keys[i] = s.Key
	}
	return keys
}

// Func is the shape shared by every classifier.
type Func func(doc *dom.Document, cfg settings.Configuration) []Suppression

// Pass runs the classifiers in order (reels, stories, suggested, blacklist),
// each gated by its switch in cfg. The blacklist gates itself.
func Pass(doc *dom.Document, cfg settings.Configuration) Result {
	steps := []struct {
		on  bool
		run Func
	}{
		{cfg.HideReels, HideReels},
		{cfg.HideStories, HideStories},
		{cfg.HideSuggested, HideSuggested},
		{true, HideBlacklisted},
	}
	var res Result
	for _, s := range steps {
		if s.on {
			res.Suppressed = append(res.Suppressed, s.run(doc, cfg)...)
		}
	}
	return res
}

// recorder applies suppression and remembers what changed.
type recorder struct {
	doc   *dom.Document
	class Classifier
	out   []Suppression
}

func (r *recorder) hide(n *html.Node) {
	if !dom.Hide(n) {
		return
	}
	r.out = append(r.out, Suppression{
		Classifier: r.class,
		Key:        dom.Key(n),
		Tag:        n.Data,
		Label:      dom.Label(n),
		Node:       n,
	})
}

func (r *recorder) hideEligible(n *html.Node) {
	if IsEligible(r.doc, n) {
		r.hide(n)
	}
}
