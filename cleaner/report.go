package cleaner

import (
	"bytes"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"

	"github.com/hazyhaar/feedclean/classify"
)

// excerptLimit caps an entry excerpt, in runes.
const excerptLimit = 160

// Entry describes one suppressed node.
type Entry struct {
	Classifier classify.Classifier `json:"classifier"`
	Key        string              `json:"key"`
	Tag        string              `json:"tag"`
	Label      string              `json:"label,omitempty"`
	Excerpt    string              `json:"excerpt,omitempty"`
}

// Report is the outcome of one pass.
type Report struct {
	PassID   string                      `json:"pass_id"`
	Started  time.Time                   `json:"started"`
	Duration time.Duration               `json:"duration"`
	Counts   map[classify.Classifier]int `json:"counts"`
	Applied  int                         `json:"applied"`
	Entries  []Entry                     `json:"entries"`
}

// Total is the number of nodes suppressed by the pass.
func (r Report) Total() int { return len(r.Entries) }

// excerpter renders suppressed nodes as short markdown snippets.
type excerpter struct {
	conv *converter.Converter
}

func newExcerpter() *excerpter {
	return &excerpter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (e *excerpter) excerpt(n *html.Node) string {
	if n == nil {
		return ""
	}
	// Render a detached copy without the suppression style and probe stamps.
	cp := *n
	cp.Parent, cp.PrevSibling, cp.NextSibling = nil, nil, nil
	cp.Attr = nil
	for _, a := range n.Attr {
		if a.Key == "style" || strings.HasPrefix(a.Key, "data-fc-") {
			continue
		}
		cp.Attr = append(cp.Attr, a)
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, &cp); err != nil {
		return ""
	}
	md, err := e.conv.ConvertString(buf.String())
	if err != nil {
		return ""
	}
	return truncate(strings.Join(strings.Fields(md), " "), excerptLimit)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit-1])) + "…"
}

func (e *excerpter) report(passID string, started time.Time, res classify.Result, applied int) Report {
	rep := Report{
		PassID:   passID,
		Started:  started,
		Duration: time.Since(started),
		Counts:   make(map[classify.Classifier]int),
		Applied:  applied,
		Entries:  make([]Entry, 0, len(res.Suppressed)),
	}
	for _, s := range res.Suppressed {
		rep.Counts[s.Classifier]++
		rep.Entries = append(rep.Entries, Entry{
			Classifier: s.Classifier,
			Key:        s.Key,
			Tag:        s.Tag,
			Label:      s.Label,
			Excerpt:    e.excerpt(s.Node),
		})
	}
	return rep
}
